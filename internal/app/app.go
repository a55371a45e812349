// Package app provides application initialization and dependency injection.
//
// App is the container that wires configuration, the database pool, the
// Genkit embedder and the ingestion and retrieval components together.
// Setup builds everything in dependency order; Close releases it.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codepathfinder/repodocs/internal/config"
	"github.com/codepathfinder/repodocs/internal/embedding"
	"github.com/codepathfinder/repodocs/internal/ingest"
	"github.com/codepathfinder/repodocs/internal/retrieve"
	"github.com/codepathfinder/repodocs/internal/store"
)

// App is the core application container.
type App struct {
	Config *config.Config

	// Core services
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool
	Store    *store.Store

	// Domain components
	Embedding *embedding.Client
	Pipeline  *ingest.Pipeline
	Syncer    *ingest.Syncer
	Retriever *retrieve.Retriever

	// Lifecycle
	otelCleanup func()
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	slog.Info("shutting down application")

	if a.Pool != nil {
		a.Pool.Close()
		slog.Info("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
