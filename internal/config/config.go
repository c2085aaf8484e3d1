package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalid         = errors.New("invalid configuration")
)

type Config struct {
	// Vector store
	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	WeaviateAPIKey string `envconfig:"WEAVIATE_API_KEY"`
	IndexName      string `envconfig:"INDEX_NAME" default:"MedicalChatbot"`

	// Embeddings
	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY"`
	EmbeddingModel   string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	EmbedConcurrency int    `envconfig:"EMBED_CONCURRENCY" default:"4"`
	GeminiEndpoint   string `envconfig:"GEMINI_ENDPOINT"`

	// Corpus
	DataDir      string `envconfig:"DATA_DIR" default:"data"`
	DataGlob     string `envconfig:"DATA_GLOB" default:"*.pdf"`
	ChunkSize    int    `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap int    `envconfig:"CHUNK_OVERLAP" default:"200"`

	// Upload
	BatchSize       int `envconfig:"BATCH_SIZE" default:"50"`
	MaxRequestBytes int `envconfig:"MAX_REQUEST_BYTES" default:"4194304"` // 4MB

	// Run history (disabled when DB_HOST is empty)
	DBHost        string `envconfig:"DB_HOST"`
	DBPort        int    `envconfig:"DB_PORT" default:"5432"`
	DBUser        string `envconfig:"DB_USER" default:"docindex"`
	DBPass        string `envconfig:"DB_PASS"`
	DBName        string `envconfig:"DB_NAME" default:"docindex"`
	DBSSLMode     string `envconfig:"DB_SSLMODE" default:"disable"`
	MigrationPath string `envconfig:"MIGRATION_PATH"`

	// Progress events (disabled when NSQD_HOST is empty)
	NSQDHost string `envconfig:"NSQD_HOST"`
	NSQDHTTP string `envconfig:"NSQD_HTTP"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Ignore errors, as env vars might be set in the shell
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.WeaviateHost == "" {
		return fmt.Errorf("%w: WEAVIATE_HOST", ErrMissingRequired)
	}
	if c.IndexName == "" {
		return fmt.Errorf("%w: INDEX_NAME", ErrMissingRequired)
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingRequired)
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: CHUNK_SIZE must be positive", ErrInvalid)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP must be in [0, CHUNK_SIZE)", ErrInvalid)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: BATCH_SIZE must be positive", ErrInvalid)
	}
	if c.MaxRequestBytes < 1 {
		return fmt.Errorf("%w: MAX_REQUEST_BYTES must be positive", ErrInvalid)
	}
	if c.EmbedConcurrency < 1 {
		return fmt.Errorf("%w: EMBED_CONCURRENCY must be positive", ErrInvalid)
	}
	return nil
}

// HistoryEnabled reports whether runs are recorded in Postgres.
func (c *Config) HistoryEnabled() bool { return c.DBHost != "" }

// EventsEnabled reports whether progress is published to NSQ.
func (c *Config) EventsEnabled() bool { return c.NSQDHost != "" }

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName, c.DBSSLMode)
}
