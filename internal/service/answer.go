package service

import (
	"context"
	"strings"
	"time"

	"github.com/cloo-solutions/medrag/internal/domain"
)

// AnswerRequest is a validated question from the HTTP boundary. A zero TopK
// means the configured default; an empty Mode means the composer default.
type AnswerRequest struct {
	Query     string
	TopK      int
	Mode      domain.AnswerMode
	Summarize *bool
}

// AnswerService wires retrieval into composition for one request.
type AnswerService struct {
	retriever   *Retriever
	composer    *Composer
	defaultTopK int
	now         func() time.Time
}

func NewAnswerService(retriever *Retriever, composer *Composer, defaultTopK int) *AnswerService {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &AnswerService{
		retriever:   retriever,
		composer:    composer,
		defaultTopK: defaultTopK,
		now:         time.Now,
	}
}

// Ask retrieves context for req.Query and composes an answer. Generative
// requests fail fast when generation is not configured so no embedding call
// is spent on a request that cannot be served.
func (s *AnswerService) Ask(ctx context.Context, req AnswerRequest) (*domain.Answer, error) {
	start := s.now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.ErrInvalidQuery
	}

	mode := req.Mode
	if mode == "" {
		mode = s.composer.DefaultMode()
	}
	if mode == domain.AnswerModeGenerative && !s.composer.GenerationAvailable() {
		return nil, domain.ErrGenerationUnavailable
	}

	topK := req.TopK
	if topK == 0 {
		topK = s.defaultTopK
	}

	results, err := s.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	return s.composer.Compose(ctx, ComposeInput{
		Query:     query,
		Results:   results,
		Mode:      mode,
		Summarize: req.Summarize,
		Start:     start,
	})
}

// Ready reports whether the index can serve queries for this process.
func (s *AnswerService) Ready(ctx context.Context) error {
	return s.retriever.CheckEmbeddingSpace(ctx)
}
