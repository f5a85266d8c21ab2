package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendSQLite   = "sqlite"

	// PostgresEmbeddingDimensions is the width of the kb_chunks.embedding column.
	PostgresEmbeddingDimensions = 1536
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	StoreBackend   string `envconfig:"STORE_BACKEND" default:"sqlite"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	SQLitePath     string `envconfig:"SQLITE_PATH" default:"data/kbase.db"`
	CollectionName string `envconfig:"COLLECTION_NAME" default:"knowledge_base"`

	OpenAIAPIKey        string  `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string  `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel      string  `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int     `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	EmbedBatchSize      int     `envconfig:"EMBED_BATCH_SIZE" default:"50"`
	EmbedConcurrency    int     `envconfig:"EMBED_CONCURRENCY" default:"1"`
	EmbedRatePerSec     float64 `envconfig:"EMBED_RATE_PER_SEC" default:"5"`

	ChunkSize    int     `envconfig:"CHUNK_SIZE" default:"800"`
	ChunkOverlap int     `envconfig:"CHUNK_OVERLAP" default:"100"`
	TopK         int     `envconfig:"TOP_K" default:"5"`
	MinRelevance float64 `envconfig:"MIN_RELEVANCE" default:"0.3"`

	LexiconPath   string `envconfig:"LEXICON_PATH"`
	PdftotextPath string `envconfig:"PDFTOTEXT_PATH" default:"pdftotext"`

	RedisURL  string        `envconfig:"REDIS_URL"`
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"1h"`
	CacheSize int           `envconfig:"CACHE_SIZE" default:"1024"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"kbase-originals"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN         string  `envconfig:"SENTRY_DSN"`
	SentryEnvironment string  `envconfig:"SENTRY_ENVIRONMENT" default:"development"`
	SentryRelease     string  `envconfig:"SENTRY_RELEASE"`
	SentrySampleRate  float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE" default:"0.1"`

	APIToken       string `envconfig:"API_TOKEN"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"104857600"`

	InboxWorkers      int           `envconfig:"INBOX_WORKERS" default:"2"`
	InboxScanInterval time.Duration `envconfig:"INBOX_SCAN_INTERVAL" default:"30s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("KBASE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("KBASE_DATABASE_URL is required for the postgres store backend")
		}
		if c.EmbeddingDimensions != PostgresEmbeddingDimensions {
			return fmt.Errorf("the postgres store backend stores %d-dimensional embeddings, got KBASE_EMBEDDING_DIMENSIONS=%d",
				PostgresEmbeddingDimensions, c.EmbeddingDimensions)
		}
	case StoreBackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("KBASE_SQLITE_PATH is required for the sqlite store backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0,%d), got %d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.EmbedBatchSize <= 0 {
		return fmt.Errorf("embed batch size must be positive, got %d", c.EmbedBatchSize)
	}
	if c.MinRelevance < 0 || c.MinRelevance > 1 {
		return fmt.Errorf("min relevance must be in [0,1], got %v", c.MinRelevance)
	}
	return nil
}

func (c *Config) HasPostgres() bool {
	return c.StoreBackend == StoreBackendPostgres
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}

func (c *Config) HasAPIToken() bool {
	return c.APIToken != ""
}
