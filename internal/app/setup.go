package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/codepathfinder/repodocs/db"
	"github.com/codepathfinder/repodocs/internal/chunker"
	"github.com/codepathfinder/repodocs/internal/config"
	"github.com/codepathfinder/repodocs/internal/embedding"
	"github.com/codepathfinder/repodocs/internal/github"
	"github.com/codepathfinder/repodocs/internal/ingest"
	"github.com/codepathfinder/repodocs/internal/log"
	"github.com/codepathfinder/repodocs/internal/observability"
	"github.com/codepathfinder/repodocs/internal/retrieve"
	"github.com/codepathfinder/repodocs/internal/store"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	a.Store = store.New(pool, cfg.EmbedderDimension, cfg.UpsertBatchSize, logger)
	a.Embedding = embedding.New(embedding.NewGenkitService(embedder, cfg.EmbedderDimension), cfg.EmbedBatchSize, logger)

	ch := chunker.New(cfg.ChunkTargetTokens, cfg.ChunkOverlapTokens)
	a.Pipeline = ingest.NewPipeline(ch, a.Embedding, a.Store, logger)

	gh := github.New(cfg.GitHubToken, logger)
	a.Syncer = ingest.NewSyncer(gh, a.Pipeline, cfg.MaxDocsFiles, logger)

	a.Retriever = retrieve.New(a.Embedding, a.Store, logger,
		retrieve.WithTopK(cfg.RetrievalTopK),
		retrieve.WithMinSimilarity(cfg.RetrievalMinSimilarity),
	)

	return a, nil
}

// provideOtelShutdown sets up OTLP tracing when enabled. Must run before
// Genkit initialization so the global TracerProvider is in place.
func provideOtelShutdown(ctx context.Context, cfg *config.Config) func() {
	if !cfg.Tracing.Enabled {
		return func() {}
	}

	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Environment: cfg.Tracing.Environment,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		slog.Warn("setting up tracing, continuing without it", "error", err)
		return func() {}
	}

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the Google AI plugin.
// GEMINI_API_KEY is read by the plugin from the environment.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with googleai plugin")
	}
	return g, nil
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool with
// pgvector types registered on every connection.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// interface conformance checks: the pipeline and syncer consume each other
// through interfaces, so drift fails compilation here rather than at runtime.
var (
	_ ingest.Embedder        = (*embedding.Client)(nil)
	_ retrieve.QueryEmbedder = (*embedding.Client)(nil)
	_ ingest.ChunkStore      = (*store.Store)(nil)
	_ retrieve.SearchStore   = (*store.Store)(nil)
	_ ingest.DocSource       = (*github.Client)(nil)
	_ ingest.Ingestor        = (*ingest.Pipeline)(nil)
)
