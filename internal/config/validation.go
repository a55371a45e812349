package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// API key (required for all embedding operations)
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	if c.ServerAddr == "" {
		return fmt.Errorf("%w: server_addr cannot be empty", ErrInvalidServerAddr)
	}

	// Embedding configuration
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}
	if c.EmbedderDimension < 1 || c.EmbedderDimension > 4096 {
		return fmt.Errorf("%w: must be between 1 and 4096, got %d",
			ErrInvalidEmbedderDimension, c.EmbedderDimension)
	}
	if c.EmbedBatchSize < 1 || c.EmbedBatchSize > 250 {
		return fmt.Errorf("%w: embed_batch_size must be between 1 and 250, got %d",
			ErrInvalidBatchSize, c.EmbedBatchSize)
	}

	// Chunking configuration
	if c.ChunkTargetTokens < 50 || c.ChunkTargetTokens > 4000 {
		return fmt.Errorf("%w: chunk_target_tokens must be between 50 and 4000, got %d",
			ErrInvalidChunking, c.ChunkTargetTokens)
	}
	if c.ChunkOverlapTokens < 0 || c.ChunkOverlapTokens >= c.ChunkTargetTokens {
		return fmt.Errorf("%w: chunk_overlap_tokens must be non-negative and below chunk_target_tokens, got %d",
			ErrInvalidChunking, c.ChunkOverlapTokens)
	}

	// Storage batching
	if c.UpsertBatchSize < 1 || c.UpsertBatchSize > 1000 {
		return fmt.Errorf("%w: upsert_batch_size must be between 1 and 1000, got %d",
			ErrInvalidBatchSize, c.UpsertBatchSize)
	}

	// Retrieval configuration
	if c.RetrievalTopK < 1 || c.RetrievalTopK > 50 {
		return fmt.Errorf("%w: retrieval_top_k must be between 1 and 50, got %d",
			ErrInvalidRetrieval, c.RetrievalTopK)
	}
	if c.RetrievalMinSimilarity < 0 || c.RetrievalMinSimilarity > 1 {
		return fmt.Errorf("%w: retrieval_min_similarity must be between 0 and 1, got %.2f",
			ErrInvalidRetrieval, c.RetrievalMinSimilarity)
	}
	if c.MaxDocsFiles < 1 || c.MaxDocsFiles > 100 {
		return fmt.Errorf("%w: max_docs_files must be between 1 and 100, got %d",
			ErrInvalidRetrieval, c.MaxDocsFiles)
	}

	// PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d",
			ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "repodocs_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"warning", "change postgres_password for production deployments")
	}

	// Modern SSL modes only; allow/prefer are deprecated.
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
