package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/medrag/internal/domain"
	"github.com/cloo-solutions/medrag/internal/telemetry"
)

// IndexReader is the read side of the vector index.
type IndexReader interface {
	Query(ctx context.Context, collection string, vec []float32, k int) ([]domain.RetrievalResult, error)
}

// RetrieverConfig bounds retrieval requests.
type RetrieverConfig struct {
	Collection string
	MaxTopK    int
}

// Retriever embeds a question and returns the nearest chunks.
type Retriever struct {
	embedder    Embedder
	collections CollectionStore
	index       IndexReader
	cfg         RetrieverConfig
}

func NewRetriever(embedder Embedder, collections CollectionStore, index IndexReader, cfg RetrieverConfig) *Retriever {
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = 50
	}
	return &Retriever{
		embedder:    embedder,
		collections: collections,
		index:       index,
		cfg:         cfg,
	}
}

// Retrieve returns up to topK results in ascending distance. topK of zero
// yields no results, a negative topK is rejected and values above MaxTopK
// are clamped. The index is only queried when it was built with the same
// embedding model as this process.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrInvalidQuery
	}
	if topK < 0 {
		return nil, domain.ErrInvalidTopK.WithCause(fmt.Errorf("got %d", topK))
	}
	if topK == 0 {
		return []domain.RetrievalResult{}, nil
	}
	topK = min(topK, r.cfg.MaxTopK)

	ctx, span := telemetry.StartSpan(ctx, "retrieval.retrieve")
	span.Tag("collection", r.cfg.Collection).Data("top_k", topK)
	defer span.End()

	if err := r.CheckEmbeddingSpace(ctx); err != nil {
		return nil, err
	}

	vec, err := r.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.index.Query(ctx, r.cfg.Collection, vec, topK)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return results, nil
}

// CheckEmbeddingSpace verifies the collection was built with this process's
// embedding model and width.
func (r *Retriever) CheckEmbeddingSpace(ctx context.Context) error {
	c, err := r.collections.Get(ctx, r.cfg.Collection)
	if err != nil {
		return err
	}
	return c.CheckEmbeddingSpace(r.embedder.Model(), r.embedder.Dimensions())
}
