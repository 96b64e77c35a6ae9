package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/medrag/internal/domain"
	"github.com/cloo-solutions/medrag/internal/pagination"
	"github.com/cloo-solutions/medrag/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) Collection() string {
	return "medical_docs"
}

func (m *MockCatalogService) Status(ctx context.Context) (*service.IndexStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IndexStatus), args.Error(1)
}

func (m *MockCatalogService) Sources(ctx context.Context, cursor string, limit int) (*pagination.PageResult[domain.SourceSummary], error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[domain.SourceSummary]), args.Error(1)
}

func (m *MockCatalogService) Chunk(ctx context.Context, id string) (*domain.Chunk, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Chunk), args.Error(1)
}

type MockReadinessChecker struct {
	mock.Mock
}

func (m *MockReadinessChecker) Ready(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestIndexHandler_Info(t *testing.T) {
	handler := NewIndexHandler(new(MockCatalogService), new(MockReadinessChecker), "extractive")

	w := httptest.NewRecorder()
	handler.Info(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp InfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "running")
	assert.Equal(t, "medical_docs", resp.Collection)
	assert.Equal(t, "extractive", resp.Mode)
}

func TestIndexHandler_Health(t *testing.T) {
	handler := NewIndexHandler(new(MockCatalogService), new(MockReadinessChecker), "extractive")

	w := httptest.NewRecorder()
	handler.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestIndexHandler_Ready(t *testing.T) {
	catalog := new(MockCatalogService)
	readiness := new(MockReadinessChecker)
	handler := NewIndexHandler(catalog, readiness, "extractive")

	readiness.On("Ready", mock.Anything).Return(nil)
	catalog.On("Status", mock.Anything).Return(&service.IndexStatus{
		Collection: &domain.Collection{Name: "medical_docs", EmbeddingModel: "text-embedding-3-small", Dimensions: 384},
		Chunks:     120,
	}, nil)

	w := httptest.NewRecorder()
	handler.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp ReadyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "text-embedding-3-small@384", resp.EmbeddingModel)
	assert.Equal(t, 120, resp.Chunks)
}

func TestIndexHandler_NotReady(t *testing.T) {
	catalog := new(MockCatalogService)
	readiness := new(MockReadinessChecker)
	handler := NewIndexHandler(catalog, readiness, "extractive")

	readiness.On("Ready", mock.Anything).Return(domain.ErrCollectionNotFound)

	w := httptest.NewRecorder()
	handler.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	catalog.AssertNotCalled(t, "Status", mock.Anything)
}

func TestIndexHandler_Sources(t *testing.T) {
	catalog := new(MockCatalogService)
	handler := NewIndexHandler(catalog, new(MockReadinessChecker), "extractive")

	catalog.On("Sources", mock.Anything, "abc", 2).Return(&pagination.PageResult[domain.SourceSummary]{
		Items:   []domain.SourceSummary{{Source: "a.pdf", Chunks: 3}, {Source: "b.txt", Chunks: 1}},
		Cursor:  "next",
		HasMore: true,
	}, nil)

	w := httptest.NewRecorder()
	handler.Sources(w, httptest.NewRequest(http.MethodGet, "/sources?cursor=abc&limit=2", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[{"source":"a.pdf","chunks":3},{"source":"b.txt","chunks":1}],"cursor":"next","has_more":true}`, w.Body.String())
}

func TestIndexHandler_SourcesInvalidCursor(t *testing.T) {
	catalog := new(MockCatalogService)
	handler := NewIndexHandler(catalog, new(MockReadinessChecker), "extractive")

	catalog.On("Sources", mock.Anything, "bogus", 0).Return(nil, domain.ErrInvalidCursor)

	w := httptest.NewRecorder()
	handler.Sources(w, httptest.NewRequest(http.MethodGet, "/sources?cursor=bogus&limit=abc", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIndexHandler_Chunk(t *testing.T) {
	catalog := new(MockCatalogService)
	handler := NewIndexHandler(catalog, new(MockReadinessChecker), "extractive")

	catalog.On("Chunk", mock.Anything, "a.pdf_chunk1").Return(&domain.Chunk{
		ID: "a.pdf_chunk1", Source: "a.pdf", ChunkID: 1, Text: "Dosage guidance.",
	}, nil)
	catalog.On("Chunk", mock.Anything, "missing").Return(nil, domain.ErrChunkNotFound)

	r := chi.NewRouter()
	r.Get("/chunks/{id}", handler.Chunk)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chunks/a.pdf_chunk1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"a.pdf_chunk1","source":"a.pdf","chunk_id":1,"text":"Dosage guidance."}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chunks/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
