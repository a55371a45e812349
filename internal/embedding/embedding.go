// Package embedding turns batches of text into fixed-length vectors.
//
// The Client partitions input into bounded batches to respect the embedding
// service's payload limits, and realigns each batch's results by their
// request-order index so the output always matches the input positionally,
// regardless of the order the service answered in.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/codepathfinder/repodocs/internal/log"
)

const (
	// DefaultBatchSize is the maximum number of texts sent per service call.
	DefaultBatchSize = 100

	// DefaultTimeout bounds a single service call. A provider that stops
	// answering fails the call instead of blocking the ingestion forever.
	DefaultTimeout = 60 * time.Second
)

// Indexed is a single embedding tagged with its position in the request batch.
// The service may return these out of order.
type Indexed struct {
	Index  int
	Values []float32
}

// Service is the transport boundary to the external embedding provider.
// Implementations must return exactly one Indexed per input text, with Index
// referring to the position within the given batch.
type Service interface {
	EmbedBatch(ctx context.Context, texts []string) ([]Indexed, error)
}

// Client is a batching embedding client. It is safe for concurrent use.
type Client struct {
	service   Service
	batchSize int
	timeout   time.Duration
	logger    log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-call deadline applied to each service call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a Client. A non-positive batchSize falls back to
// DefaultBatchSize. A nil logger falls back to a no-op logger.
func New(service Service, batchSize int, logger log.Logger, opts ...Option) *Client {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = log.NewNop()
	}
	c := &Client{
		service:   service,
		batchSize: batchSize,
		timeout:   DefaultTimeout,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embed returns one vector per input text, positionally aligned with texts.
// Any batch failure aborts the whole call; no partial result is returned.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		batch := texts[start:end]

		vectors, err := c.embedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d of %d texts: %w", start, end, len(texts), err)
		}
		out = append(out, vectors...)
	}

	c.logger.Debug("embedded texts", "count", len(texts), "batch_size", c.batchSize)
	return out, nil
}

// embedBatch issues a single deadline-bounded service call and re-sorts the
// results by their request-order index.
func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results, err := c.service.EmbedBatch(ctx, batch)
	if err != nil {
		return nil, err
	}

	if len(results) != len(batch) {
		return nil, fmt.Errorf("service returned %d embeddings for %d texts", len(results), len(batch))
	}

	vectors := make([][]float32, len(batch))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(batch) {
			return nil, fmt.Errorf("embedding index %d out of range [0,%d)", r.Index, len(batch))
		}
		if vectors[r.Index] != nil {
			return nil, fmt.Errorf("duplicate embedding index %d", r.Index)
		}
		if len(r.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", r.Index)
		}
		vectors[r.Index] = r.Values
	}

	return vectors, nil
}

// EmbedOne embeds a single text. Convenience wrapper used by retrieval.
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	return vectors[0], nil
}
