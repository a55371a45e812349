// Package cmd provides the CLI commands.
//
// Commands:
//   - serve: HTTP API server
//   - ingest: fetch and index one repository's documentation
//   - query: retrieve answer context for a question
//   - clear: remove a repository's stored chunks
//   - version: show version information
//
// All long-running commands handle SIGINT/SIGTERM via context cancellation.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/codepathfinder/repodocs/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "repodocs",
	Short: "Repository documentation indexing and retrieval service",
	Long: `repodocs ingests a GitHub repository's documentation into a pgvector
store and answers questions against it with similarity retrieval.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level}))

	return rootCmd.Execute()
}
