// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.repodocs/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Server: HTTP listen address (serve mode)
//   - Storage: PostgreSQL connection (see storage.go)
//   - Embedding: Gemini embedder model and vector dimension
//   - Ingestion and retrieval tuning: chunk sizes, batch sizes, topK, floor
//   - Tracing: OTLP export (see tracing settings below)
//
// Sensitive values (passwords, tokens) are masked in MarshalJSON and String.
// Validation uses sentinel errors checkable with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbedderDimension indicates the embedder dimension is out of range.
	ErrInvalidEmbedderDimension = errors.New("invalid embedder dimension")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidChunking indicates the chunking parameters are out of range.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidBatchSize indicates a batch size is out of range.
	ErrInvalidBatchSize = errors.New("invalid batch size")

	// ErrInvalidRetrieval indicates the retrieval parameters are out of range.
	ErrInvalidRetrieval = errors.New("invalid retrieval parameters")

	// ErrInvalidServerAddr indicates the HTTP listen address is invalid.
	ErrInvalidServerAddr = errors.New("invalid server address")
)

const (
	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default but supports
	// truncation to 768 via OutputDimensionality; the pgvector schema uses 768.
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultEmbedderDimension matches the vector(768) column in the schema.
	DefaultEmbedderDimension = 768
)

// TracingConfig holds OTLP trace export configuration.
type TracingConfig struct {
	// Enabled turns span export on. Off by default for CLI use.
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Endpoint is the OTLP HTTP collector endpoint (default: localhost:4318).
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	// Environment is the deployment environment tag (default: dev).
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName is the service name on exported spans.
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// Config stores application configuration.
// Sensitive fields are explicitly masked in MarshalJSON; when adding new
// secrets (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// HTTP server configuration (serve mode)
	ServerAddr string `mapstructure:"server_addr" json:"server_addr"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// GitHub configuration
	GitHubToken string `mapstructure:"github_token" json:"github_token"` // SENSITIVE: masked in MarshalJSON

	// Embedding configuration
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension" json:"embedder_dimension"`
	EmbedBatchSize    int    `mapstructure:"embed_batch_size" json:"embed_batch_size"`

	// Chunking configuration (token estimates, 4 chars per token)
	ChunkTargetTokens  int `mapstructure:"chunk_target_tokens" json:"chunk_target_tokens"`
	ChunkOverlapTokens int `mapstructure:"chunk_overlap_tokens" json:"chunk_overlap_tokens"`

	// Storage batching
	UpsertBatchSize int `mapstructure:"upsert_batch_size" json:"upsert_batch_size"`

	// Retrieval configuration
	RetrievalTopK          int     `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`
	RetrievalMinSimilarity float32 `mapstructure:"retrieval_min_similarity" json:"retrieval_min_similarity"`

	// Documentation sync
	MaxDocsFiles int `mapstructure:"max_docs_files" json:"max_docs_files"`

	// Tracing configuration
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".repodocs")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env cover everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, when set, overrides the individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("server_addr", ":8080")

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "repodocs")
	viper.SetDefault("postgres_password", "repodocs_dev_password")
	viper.SetDefault("postgres_db_name", "repodocs")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Embedding defaults
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	viper.SetDefault("embedder_dimension", DefaultEmbedderDimension)
	viper.SetDefault("embed_batch_size", 100)

	// Chunking defaults
	viper.SetDefault("chunk_target_tokens", 400)
	viper.SetDefault("chunk_overlap_tokens", 50)

	// Storage defaults
	viper.SetDefault("upsert_batch_size", 50)

	// Retrieval defaults
	viper.SetDefault("retrieval_top_k", 5)
	viper.SetDefault("retrieval_min_similarity", 0.35)

	// Documentation sync defaults
	viper.SetDefault("max_docs_files", 10)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4318")
	viper.SetDefault("tracing.environment", "dev")
	viper.SetDefault("tracing.service_name", "repodocs")
}

// bindEnvVariables binds environment variables explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper; its presence is
// checked in Validate().
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a failure here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("server_addr", "REPODOCS_SERVER_ADDR")
	mustBind("github_token", "GITHUB_TOKEN")
	mustBind("embedder_model", "REPODOCS_EMBEDDER_MODEL")
	mustBind("tracing.enabled", "REPODOCS_TRACING_ENABLED")
	mustBind("tracing.endpoint", "REPODOCS_TRACING_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data. Full-width blocks
// avoid accidental substring matches against real secret content.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 characters
// or fewer are fully masked; longer ones keep the first and last 2 characters
// for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.GitHubToken = maskSecret(a.GitHubToken)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
