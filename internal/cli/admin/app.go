package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/medrag/internal/config"
	"github.com/cloo-solutions/medrag/internal/database"
	"github.com/cloo-solutions/medrag/internal/extract"
	"github.com/cloo-solutions/medrag/internal/openai"
	"github.com/cloo-solutions/medrag/internal/repository"
	"github.com/cloo-solutions/medrag/internal/service"
	"github.com/cloo-solutions/medrag/internal/storage"
	"github.com/cloo-solutions/medrag/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// initTelemetry starts Sentry when a DSN is configured. The returned func is
// always safe to call.
func initTelemetry(cfg *config.Config) func() {
	if cfg.SentryDSN == "" {
		return func() {}
	}

	// Default to 10% sampling in production, 100% in development
	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return shutdown
}

func getDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := database.NewPool(ctx, database.Config{
		URL:              cfg.DatabaseURL,
		MaxConns:         cfg.DBMaxConns,
		StatementTimeout: cfg.StatementTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("connected to database")
	return pool, nil
}

func newEmbedder(cfg *config.Config) *openai.Client {
	if cfg.EmbeddingKey() == "" && cfg.EmbeddingBaseURL == "" {
		log.Println("warning: no embedding credentials configured, embedding calls will fail")
	}
	return openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.EmbeddingKey(),
		BaseURL:             cfg.EmbeddingBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})
}

// newChatClient returns nil without an OpenAI key; the composer then only
// answers extractively.
func newChatClient(cfg *config.Config) (*openai.ChatClient, error) {
	if !cfg.HasOpenAI() {
		if cfg.Generative() {
			log.Println("warning: ANSWER_MODE=generative but OPENAI_API_KEY is not set, generative requests will fail")
		}
		return nil, nil
	}
	chat, err := openai.NewChatClient(openai.ChatConfig{
		APIKey:          cfg.OpenAIAPIKey,
		GenerationModel: cfg.GenerationModel,
		SummaryModel:    cfg.SummaryModel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat client: %w", err)
	}
	return chat, nil
}

func newS3Client(ctx context.Context, cfg *config.Config, bucket string) (*storage.S3Client, error) {
	if !cfg.HasS3() {
		return nil, fmt.Errorf("S3 is not configured: S3_ENDPOINT, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required")
	}
	if bucket == "" {
		bucket = cfg.S3Bucket
	}
	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return client, nil
}

// openCorpus resolves location, a local directory or an s3://bucket/prefix URL.
func openCorpus(ctx context.Context, cfg *config.Config, location string) (service.CorpusSource, error) {
	if location == "" {
		location = cfg.DataDir
	}
	if !storage.IsS3URL(location) {
		return storage.NewLocalCorpus(location), nil
	}

	bucket, prefix, err := storage.ParseS3URL(location)
	if err != nil {
		return nil, err
	}
	client, err := newS3Client(ctx, cfg, bucket)
	if err != nil {
		return nil, err
	}
	return storage.NewS3Corpus(client, prefix), nil
}

func newIngestService(cfg *config.Config, pool *pgxpool.Pool) (*service.IngestService, error) {
	return service.NewIngestService(
		extract.NewExtractor(),
		newEmbedder(cfg),
		repository.NewCollectionRepository(pool),
		repository.NewIndexRepository(pool),
		repository.NewIngestLock(pool),
		service.IngestConfig{
			Collection: cfg.IndexCollection,
			Chunk:      service.ChunkParams{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
			Workers:    cfg.IngestWorkers,
			BatchSize:  cfg.EmbedBatchSize,
		},
	)
}
