package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codepathfinder/repodocs/internal/app"
	"github.com/codepathfinder/repodocs/internal/config"
	"github.com/codepathfinder/repodocs/internal/retrieve"
)

var queryTitle string

var queryCmd = &cobra.Command{
	Use:   "query <repo-id> <question...>",
	Short: "Retrieve answer context for a question",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd.Context(), args[0], strings.Join(args[1:], " "))
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryTitle, "title", "", "optional question title")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(parent context.Context, rawID, body string) error {
	repoID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("repo id must be a UUID: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	result, err := a.Retriever.Retrieve(ctx, retrieve.Query{
		RepoID: repoID,
		Title:  queryTitle,
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("retrieving context: %w", err)
	}

	if result.Empty {
		fmt.Println("No relevant documentation found.")
		return nil
	}

	for _, chunk := range result.Chunks {
		fmt.Printf("-- %s (chunk %d, similarity %.2f)\n",
			chunk.FilePath, chunk.ChunkIndex, chunk.Similarity)
	}
	fmt.Println()
	fmt.Println(result.ContextText)
	return nil
}
