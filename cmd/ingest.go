package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codepathfinder/repodocs/internal/app"
	"github.com/codepathfinder/repodocs/internal/config"
)

var ingestClean bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <repo-id> <owner/name>",
	Short: "Fetch and index a repository's documentation",
	Long: `Fetches the repository's well-known documentation files (README.md,
CONTRIBUTING.md, CODE_OF_CONDUCT.md) plus markdown files from its docs/
directory, chunks and embeds them, and stores the chunks for retrieval.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd.Context(), args[0], args[1])
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestClean, "clean", false,
		"delete previously stored chunks for the repository first")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(parent context.Context, rawID, fullName string) error {
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

	result, err := a.Syncer.SyncRepo(ctx, repoID, fullName, ingestClean)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", fullName, err)
	}

	fmt.Printf("Ingested %s: %d chunks stored\n", fullName, result.ChunksStored)
	return nil
}
