package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/medrag/internal/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	AnswerModeExtractive = string(domain.AnswerModeExtractive)
	AnswerModeGenerative = string(domain.AnswerModeGenerative)
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL      string        `envconfig:"DATABASE_URL" required:"true"`
	IndexCollection  string        `envconfig:"INDEX_COLLECTION" default:"medical_docs"`
	MigrationsDir    string        `envconfig:"MIGRATIONS_DIR" default:"migrations"`
	DBMaxConns       int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	StatementTimeout time.Duration `envconfig:"DB_STATEMENT_TIMEOUT" default:"30s"`

	// DataDir is either a local directory or an s3://bucket/prefix URL.
	DataDir string `envconfig:"DATA_DIR" default:"./data"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"medrag-corpus"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	ChunkSize      int `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap   int `envconfig:"CHUNK_OVERLAP" default:"200"`
	IngestWorkers  int `envconfig:"INGEST_WORKERS" default:"8"`
	EmbedBatchSize int `envconfig:"EMBED_BATCH_SIZE" default:"256"`

	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"384"`
	EmbeddingBaseURL    string `envconfig:"EMBEDDING_BASE_URL"`
	EmbeddingAPIKey     string `envconfig:"EMBEDDING_API_KEY"`

	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	GenerationModel string `envconfig:"GENERATION_MODEL" default:"gpt-4o-mini"`
	SummaryModel    string `envconfig:"SUMMARY_MODEL" default:"gpt-4o-mini"`

	AnswerMode          string        `envconfig:"ANSWER_MODE" default:"extractive"`
	SummarizeContexts   bool          `envconfig:"SUMMARIZE_CONTEXTS" default:"true"`
	DefaultTopK         int           `envconfig:"DEFAULT_TOP_K" default:"5"`
	MaxTopK             int           `envconfig:"MAX_TOP_K" default:"50"`
	AnswerBudget        time.Duration `envconfig:"ANSWER_BUDGET" default:"60s"`
	SummarySafetyMargin time.Duration `envconfig:"SUMMARY_SAFETY_MARGIN" default:"10s"`
	AnswerMaxWords      int           `envconfig:"ANSWER_MAX_WORDS" default:"40"`
	MaxContexts         int           `envconfig:"MAX_CONTEXTS" default:"3"`

	// APIToken, when set, protects /query, /sources and /chunks with a static
	// bearer token.
	APIToken string `envconfig:"API_TOKEN"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("MEDRAG", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	cfg.AnswerMode = strings.ToLower(strings.TrimSpace(cfg.AnswerMode))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints that envconfig cannot express.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must satisfy 0 <= overlap < CHUNK_SIZE, got %d", c.ChunkOverlap)
	}
	if c.IngestWorkers <= 0 {
		return fmt.Errorf("INGEST_WORKERS must be positive, got %d", c.IngestWorkers)
	}
	if c.EmbedBatchSize <= 0 {
		return fmt.Errorf("EMBED_BATCH_SIZE must be positive, got %d", c.EmbedBatchSize)
	}
	if c.MaxTopK <= 0 || c.DefaultTopK <= 0 || c.DefaultTopK > c.MaxTopK {
		return fmt.Errorf("DEFAULT_TOP_K must satisfy 0 < default <= MAX_TOP_K (%d), got %d", c.MaxTopK, c.DefaultTopK)
	}
	switch c.AnswerMode {
	case AnswerModeExtractive, AnswerModeGenerative:
	default:
		return fmt.Errorf("ANSWER_MODE must be %q or %q, got %q", AnswerModeExtractive, AnswerModeGenerative, c.AnswerMode)
	}
	if c.SummarySafetyMargin >= c.AnswerBudget {
		return fmt.Errorf("SUMMARY_SAFETY_MARGIN (%s) must be below ANSWER_BUDGET (%s)", c.SummarySafetyMargin, c.AnswerBudget)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// Generative reports whether the server answers in generative mode by default.
func (c *Config) Generative() bool {
	return c.AnswerMode == AnswerModeGenerative
}

// EmbeddingKey returns the credential for the embedding endpoint, falling back to OPENAI_API_KEY.
func (c *Config) EmbeddingKey() string {
	if c.EmbeddingAPIKey != "" {
		return c.EmbeddingAPIKey
	}
	return c.OpenAIAPIKey
}
