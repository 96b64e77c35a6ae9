package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cloo-solutions/medrag/internal/api"
	"github.com/cloo-solutions/medrag/internal/domain"
	"github.com/cloo-solutions/medrag/internal/pagination"
	"github.com/cloo-solutions/medrag/internal/service"
	"github.com/go-chi/chi/v5"
)

type CatalogService interface {
	Collection() string
	Status(ctx context.Context) (*service.IndexStatus, error)
	Sources(ctx context.Context, cursor string, limit int) (*pagination.PageResult[domain.SourceSummary], error)
	Chunk(ctx context.Context, id string) (*domain.Chunk, error)
}

type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

type IndexHandler struct {
	catalog     CatalogService
	readiness   ReadinessChecker
	defaultMode string
}

func NewIndexHandler(catalog CatalogService, readiness ReadinessChecker, defaultMode string) *IndexHandler {
	return &IndexHandler{
		catalog:     catalog,
		readiness:   readiness,
		defaultMode: defaultMode,
	}
}

type InfoResponse struct {
	Message    string `json:"message"`
	Collection string `json:"collection"`
	Mode       string `json:"mode"`
}

type ReadyResponse struct {
	Status         string `json:"status"`
	Collection     string `json:"collection"`
	EmbeddingModel string `json:"embedding_model"`
	Chunks         int    `json:"chunks"`
}

type SourceResponse struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

type ChunkResponse struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	ChunkID int    `json:"chunk_id"`
	Text    string `json:"text"`
}

func (h *IndexHandler) Info(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, InfoResponse{
		Message:    "Medical RAG API is running. POST a question to /query.",
		Collection: h.catalog.Collection(),
		Mode:       h.defaultMode,
	})
}

func (h *IndexHandler) Health(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports 503 until the collection exists and matches this process's
// embedding model.
func (h *IndexHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.readiness.Ready(r.Context()); err != nil {
		api.HandleError(w, r, err)
		return
	}

	status, err := h.catalog.Status(r.Context())
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, ReadyResponse{
		Status:         "ready",
		Collection:     status.Collection.Name,
		EmbeddingModel: status.Collection.Identity(),
		Chunks:         status.Chunks,
	})
}

func (h *IndexHandler) Sources(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	page, err := h.catalog.Sources(r.Context(), cursor, limit)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	items := make([]SourceResponse, len(page.Items))
	for i, s := range page.Items {
		items[i] = SourceResponse{Source: s.Source, Chunks: s.Chunks}
	}

	api.JSON(w, http.StatusOK, pagination.PageResult[SourceResponse]{
		Items:   items,
		Cursor:  page.Cursor,
		HasMore: page.HasMore,
	})
}

func (h *IndexHandler) Chunk(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.ErrorWithCode(w, http.StatusBadRequest, domain.ErrCodeInvalidRequest, "id is required")
		return
	}

	chunk, err := h.catalog.Chunk(r.Context(), id)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, ChunkResponse{
		ID:      chunk.ID,
		Source:  chunk.SourceName(),
		ChunkID: chunk.ChunkID,
		Text:    chunk.Text,
	})
}
