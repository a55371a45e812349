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

var clearCmd = &cobra.Command{
	Use:   "clear <repo-id>",
	Short: "Remove a repository's stored chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClear(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(parent context.Context, rawID string) error {
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

	if err := a.Pipeline.Clear(ctx, repoID); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	fmt.Printf("Cleared chunks for repo %s\n", repoID)
	return nil
}
