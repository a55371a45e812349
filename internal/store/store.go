// Package store persists document chunks and their embeddings in PostgreSQL
// with the pgvector extension.
//
// A chunk row is keyed by (repo_id, file_path, chunk_index); upserts replace
// the whole row for a key, so re-ingesting a repository is idempotent.
// Similarity search ranks rows for one repository by cosine similarity.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/codepathfinder/repodocs/internal/log"
)

const (
	// DefaultUpsertBatchSize caps rows per database round trip to keep
	// statement payloads bounded.
	DefaultUpsertBatchSize = 50

	// DefaultDimension matches the gemini-embedding-001 output truncated to
	// 768 dimensions, and the vector(768) column in db/migrations.
	DefaultDimension = 768

	// DefaultOpTimeout bounds a single database operation.
	DefaultOpTimeout = 30 * time.Second
)

// ChunkRow is a fully materialized chunk ready for persistence.
type ChunkRow struct {
	RepoID       uuid.UUID
	RepoFullName string
	FilePath     string
	ChunkIndex   int
	Content      string
	TokenCount   int
	Embedding    []float32
}

// SearchResult is one similarity-ranked chunk.
type SearchResult struct {
	FilePath   string
	ChunkIndex int
	Content    string
	Similarity float32
}

// Store provides chunk persistence over a pgx connection pool.
// It is safe for concurrent use; per-key upserts are last-writer-wins.
type Store struct {
	pool      *pgxpool.Pool
	dimension int
	batchSize int
	opTimeout time.Duration
	logger    log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithOpTimeout overrides the per-operation deadline.
func WithOpTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// New creates a Store. Non-positive dimension and batchSize fall back to the
// defaults; a nil logger falls back to a no-op logger.
func New(pool *pgxpool.Pool, dimension, batchSize int, logger log.Logger, opts ...Option) *Store {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	if batchSize <= 0 {
		batchSize = DefaultUpsertBatchSize
	}
	if logger == nil {
		logger = log.NewNop()
	}
	s := &Store{
		pool:      pool,
		dimension: dimension,
		batchSize: batchSize,
		opTimeout: DefaultOpTimeout,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// opContext bounds one database round trip so a stalled connection fails the
// call instead of holding it open indefinitely.
func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// NewPool opens a pgx pool with pgvector types registered on every connection.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return pool, nil
}

const upsertSQL = `
INSERT INTO repo_chunks (repo_id, repo_full_name, file_path, chunk_index, content, token_count, embedding, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (repo_id, file_path, chunk_index) DO UPDATE SET
    repo_full_name = EXCLUDED.repo_full_name,
    content        = EXCLUDED.content,
    token_count    = EXCLUDED.token_count,
    embedding      = EXCLUDED.embedding,
    updated_at     = now()`

// Upsert writes all rows in bounded batches and returns the number of rows
// written. Rows are validated up front; nothing is written if any row is
// invalid. A failing batch aborts the call, leaving earlier batches committed
// (safe because re-ingestion is idempotent).
func (s *Store) Upsert(ctx context.Context, rows []ChunkRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := s.validateRows(rows); err != nil {
		return 0, err
	}

	written := 0
	for start := 0; start < len(rows); start += s.batchSize {
		end := min(start+s.batchSize, len(rows))

		batch := &pgx.Batch{}
		for _, row := range rows[start:end] {
			batch.Queue(upsertSQL,
				row.RepoID,
				row.RepoFullName,
				row.FilePath,
				row.ChunkIndex,
				row.Content,
				row.TokenCount,
				pgvector.NewVector(row.Embedding),
			)
		}

		if err := s.sendBatch(ctx, batch); err != nil {
			return written, fmt.Errorf("upserting chunk batch %d-%d: %w", start, end, err)
		}
		written += end - start
	}

	s.logger.Debug("chunks upserted",
		"repo_id", rows[0].RepoID,
		"rows", written,
		"batch_size", s.batchSize)
	return written, nil
}

// sendBatch executes one queued batch under the operation deadline and
// surfaces the first per-statement error.
func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	results := s.pool.SendBatch(ctx, batch)
	defer func() {
		_ = results.Close()
	}()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("statement %d: %w", i, err)
		}
	}
	return nil
}

// validateRows rejects rows that violate chunk invariants before any write.
func (s *Store) validateRows(rows []ChunkRow) error {
	for i, row := range rows {
		if row.RepoID == uuid.Nil {
			return fmt.Errorf("row %d: repo id is required", i)
		}
		if row.FilePath == "" {
			return fmt.Errorf("row %d: file path is required", i)
		}
		if row.ChunkIndex < 0 {
			return fmt.Errorf("row %d: negative chunk index %d", i, row.ChunkIndex)
		}
		if strings.TrimSpace(row.Content) == "" {
			return fmt.Errorf("row %d (%s#%d): empty content", i, row.FilePath, row.ChunkIndex)
		}
		if len(row.Embedding) != s.dimension {
			return fmt.Errorf("row %d (%s#%d): embedding dimension %d, store requires %d",
				i, row.FilePath, row.ChunkIndex, len(row.Embedding), s.dimension)
		}
	}
	return nil
}

// DeleteByRepo removes all chunks for a repository. Deleting a repository
// with no chunks is a no-op.
func (s *Store) DeleteByRepo(ctx context.Context, repoID uuid.UUID) error {
	if repoID == uuid.Nil {
		return fmt.Errorf("repo id is required")
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM repo_chunks WHERE repo_id = $1`, repoID)
	if err != nil {
		return fmt.Errorf("deleting chunks for repo %s: %w", repoID, err)
	}

	s.logger.Debug("chunks deleted", "repo_id", repoID, "rows", tag.RowsAffected())
	return nil
}

// SimilaritySearch returns the top-k chunks for a repository ranked by cosine
// similarity to the query vector (higher is more relevant).
func (s *Store) SimilaritySearch(ctx context.Context, repoID uuid.UUID, query []float32, k int) ([]SearchResult, error) {
	if repoID == uuid.Nil {
		return nil, fmt.Errorf("repo id is required")
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension %d, store requires %d", len(query), s.dimension)
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
SELECT file_path, chunk_index, content, 1 - (embedding <=> $2) AS similarity
FROM repo_chunks
WHERE repo_id = $1
ORDER BY embedding <=> $2
LIMIT $3`,
		repoID, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("searching chunks for repo %s: %w", repoID, err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var similarity float64
		if err := rows.Scan(&r.FilePath, &r.ChunkIndex, &r.Content, &similarity); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		r.Similarity = float32(similarity)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search results: %w", err)
	}

	return results, nil
}

// CountByRepo returns the number of stored chunks for a repository.
func (s *Store) CountByRepo(ctx context.Context, repoID uuid.UUID) (int, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM repo_chunks WHERE repo_id = $1`, repoID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunks for repo %s: %w", repoID, err)
	}
	return count, nil
}
