// Package ingest turns repository documentation into stored, embedded chunks.
//
// The pipeline runs Chunker -> Embedding Client -> Vector Store for one
// repository per call. Embedding and storage failures are fatal to the call;
// partially ingested state is acceptable residue because upserts are
// idempotent and a full retry converges.
package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codepathfinder/repodocs/internal/chunker"
	"github.com/codepathfinder/repodocs/internal/log"
	"github.com/codepathfinder/repodocs/internal/store"
)

// tracer is resolved at call time so spans follow the current global
// provider rather than whichever provider was installed first.
func tracer() trace.Tracer {
	return otel.Tracer("github.com/codepathfinder/repodocs/internal/ingest")
}

// Embedder converts texts to vectors, positionally aligned with the input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore is the persistence surface the pipeline needs.
type ChunkStore interface {
	Upsert(ctx context.Context, rows []store.ChunkRow) (int, error)
	DeleteByRepo(ctx context.Context, repoID uuid.UUID) error
}

// Pipeline orchestrates one repository's ingestion. It is stateless between
// calls and safe for concurrent use across repositories.
type Pipeline struct {
	chunker  *chunker.Chunker
	embedder Embedder
	store    ChunkStore
	logger   log.Logger
}

// NewPipeline creates a Pipeline. A nil logger falls back to a no-op logger.
func NewPipeline(c *chunker.Chunker, embedder Embedder, chunkStore ChunkStore, logger log.Logger) *Pipeline {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Pipeline{
		chunker:  c,
		embedder: embedder,
		store:    chunkStore,
		logger:   logger,
	}
}

// Ingest chunks, embeds and stores the request's documents.
//
// Documents that chunk to nothing are fine: a request whose documents are all
// empty succeeds with zero chunks stored and never touches the embedding
// service or the store.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (Result, error) {
	ctx, span := tracer().Start(ctx, "pipeline.ingest",
		trace.WithAttributes(
			attribute.String("repo.id", req.RepoID.String()),
			attribute.String("repo.full_name", req.RepoFullName),
			attribute.Int("documents.count", len(req.Documents)),
		))
	defer span.End()

	res, err := p.ingest(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ingestion failed")
		return Result{}, err
	}
	span.SetAttributes(attribute.Int("chunks.stored", res.ChunksStored))
	return res, nil
}

func (p *Pipeline) ingest(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid ingest request: %w", err)
	}

	if req.Clean {
		if err := p.store.DeleteByRepo(ctx, req.RepoID); err != nil {
			return Result{}, fmt.Errorf("clearing chunks for repo %s: %w", req.RepoID, err)
		}
	}

	// Chunk every document in input order. Indices stay per-file; identity
	// travels via the parallel rows slice, not via the embedding call.
	var rows []store.ChunkRow
	for _, doc := range req.Documents {
		for _, draft := range p.chunker.Chunk(doc.Content) {
			rows = append(rows, store.ChunkRow{
				RepoID:       req.RepoID,
				RepoFullName: req.RepoFullName,
				FilePath:     doc.FilePath,
				ChunkIndex:   draft.ChunkIndex,
				Content:      draft.Content,
				TokenCount:   draft.TokenCount,
			})
		}
	}

	if len(rows) == 0 {
		p.logger.Info("no chunks produced, skipping embedding and storage",
			"repo", req.RepoFullName, "documents", len(req.Documents))
		return Result{ChunksStored: 0}, nil
	}

	texts := make([]string, len(rows))
	for i, row := range rows {
		texts[i] = row.Content
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return Result{}, fmt.Errorf("embedding chunks for repo %s: %w", req.RepoID, err)
	}
	if len(vectors) != len(rows) {
		return Result{}, fmt.Errorf("embedding count mismatch for repo %s: %d vectors for %d chunks",
			req.RepoID, len(vectors), len(rows))
	}

	for i := range rows {
		rows[i].Embedding = vectors[i]
	}

	stored, err := p.store.Upsert(ctx, rows)
	if err != nil {
		return Result{}, fmt.Errorf("storing chunks for repo %s: %w", req.RepoID, err)
	}

	p.logger.Info("repository ingested",
		"repo", req.RepoFullName,
		"documents", len(req.Documents),
		"chunks_stored", stored,
		"clean", req.Clean)

	return Result{ChunksStored: stored}, nil
}

// Clear removes all stored chunks for a repository.
func (p *Pipeline) Clear(ctx context.Context, repoID uuid.UUID) error {
	if repoID == uuid.Nil {
		return fmt.Errorf("repo id is required")
	}
	if err := p.store.DeleteByRepo(ctx, repoID); err != nil {
		return fmt.Errorf("clearing chunks for repo %s: %w", repoID, err)
	}
	p.logger.Info("repository chunks cleared", "repo_id", repoID)
	return nil
}
