// Package retrieve answers questions about a repository by similarity search
// over its stored documentation chunks.
//
// A query is embedded once, matched against the repository's chunks, filtered
// by a minimum similarity, and assembled into a single context text with
// per-chunk source attribution. A repository with no relevant chunks is a
// normal empty result, never an error.
package retrieve

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codepathfinder/repodocs/internal/log"
	"github.com/codepathfinder/repodocs/internal/store"
)

// tracer is resolved at call time so spans follow the current global
// provider rather than whichever provider was installed first.
func tracer() trace.Tracer {
	return otel.Tracer("github.com/codepathfinder/repodocs/internal/retrieve")
}

const (
	// DefaultTopK bounds how many chunks one query retrieves.
	DefaultTopK = 5

	// DefaultMinSimilarity is the cosine similarity floor below which a
	// chunk is considered irrelevant to the query.
	DefaultMinSimilarity = 0.35
)

// QueryEmbedder embeds a single query text.
type QueryEmbedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// SearchStore is the similarity search surface the retriever needs.
type SearchStore interface {
	SimilaritySearch(ctx context.Context, repoID uuid.UUID, query []float32, k int) ([]store.SearchResult, error)
}

// Query is one retrieval request. Title and Body are joined into the
// embedded query text; either may be empty, but not both.
type Query struct {
	RepoID uuid.UUID
	Title  string
	Body   string
}

// Validate rejects malformed queries before any external call is made.
func (q Query) Validate() error {
	if q.RepoID == uuid.Nil {
		return fmt.Errorf("repo id is required")
	}
	if strings.TrimSpace(q.Title) == "" && strings.TrimSpace(q.Body) == "" {
		return fmt.Errorf("query title or body is required")
	}
	return nil
}

// text joins title and body for embedding. A blank part is dropped so a
// title-only query does not embed a trailing separator.
func (q Query) text() string {
	title := strings.TrimSpace(q.Title)
	body := strings.TrimSpace(q.Body)
	switch {
	case title == "":
		return body
	case body == "":
		return title
	default:
		return title + "\n\n" + body
	}
}

// ChunkMatch is one retrieved chunk with its source attribution.
type ChunkMatch struct {
	FilePath   string
	ChunkIndex int
	Content    string
	Similarity float32
}

// Result is the assembled answer context for one query.
type Result struct {
	// Chunks are the matches above the similarity floor, best first.
	Chunks []ChunkMatch

	// ContextText is the chunks rendered as one prompt-ready block,
	// empty when no chunk cleared the floor.
	ContextText string

	// Empty reports that nothing relevant was found. Callers branch on
	// this rather than inspecting ContextText.
	Empty bool
}

// Retriever performs similarity retrieval for one query at a time. It is
// stateless between calls and safe for concurrent use.
type Retriever struct {
	embedder      QueryEmbedder
	store         SearchStore
	topK          int
	minSimilarity float32
	logger        log.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithTopK overrides how many chunks are fetched per query.
func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithMinSimilarity overrides the similarity floor.
func WithMinSimilarity(min float32) Option {
	return func(r *Retriever) {
		r.minSimilarity = min
	}
}

// New creates a Retriever with the default topK and similarity floor.
// A nil logger falls back to a no-op logger.
func New(embedder QueryEmbedder, searchStore SearchStore, logger log.Logger, opts ...Option) *Retriever {
	if logger == nil {
		logger = log.NewNop()
	}
	r := &Retriever{
		embedder:      embedder,
		store:         searchStore,
		topK:          DefaultTopK,
		minSimilarity: DefaultMinSimilarity,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve embeds the query, searches the repository's chunks and assembles
// the matches above the similarity floor into a context text.
func (r *Retriever) Retrieve(ctx context.Context, q Query) (Result, error) {
	ctx, span := tracer().Start(ctx, "retriever.retrieve",
		trace.WithAttributes(attribute.String("repo.id", q.RepoID.String())))
	defer span.End()

	res, err := r.retrieve(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return Result{}, err
	}
	span.SetAttributes(
		attribute.Int("chunks.matched", len(res.Chunks)),
		attribute.Bool("result.empty", res.Empty),
	)
	return res, nil
}

func (r *Retriever) retrieve(ctx context.Context, q Query) (Result, error) {
	if err := q.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid query: %w", err)
	}

	vector, err := r.embedder.EmbedOne(ctx, q.text())
	if err != nil {
		return Result{}, fmt.Errorf("embedding query for repo %s: %w", q.RepoID, err)
	}

	results, err := r.store.SimilaritySearch(ctx, q.RepoID, vector, r.topK)
	if err != nil {
		return Result{}, fmt.Errorf("searching chunks for repo %s: %w", q.RepoID, err)
	}

	var chunks []ChunkMatch
	for _, res := range results {
		if res.Similarity < r.minSimilarity {
			continue
		}
		chunks = append(chunks, ChunkMatch{
			FilePath:   res.FilePath,
			ChunkIndex: res.ChunkIndex,
			Content:    res.Content,
			Similarity: res.Similarity,
		})
	}

	if len(chunks) == 0 {
		r.logger.Info("no relevant chunks found",
			"repo_id", q.RepoID, "candidates", len(results), "min_similarity", r.minSimilarity)
		return Result{Empty: true}, nil
	}

	r.logger.Debug("chunks retrieved",
		"repo_id", q.RepoID, "matched", len(chunks), "candidates", len(results))

	return Result{
		Chunks:      chunks,
		ContextText: assembleContext(chunks),
	}, nil
}

// assembleContext renders matches as markdown sections headed by their source
// file, best match first. Search results arrive ordered by similarity, so the
// input order is kept.
func assembleContext(chunks []ChunkMatch) string {
	var b strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("### ")
		b.WriteString(chunk.FilePath)
		b.WriteString("\n")
		b.WriteString(chunk.Content)
	}
	return b.String()
}
