package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/cloo-solutions/medrag/internal/api"
	"github.com/cloo-solutions/medrag/internal/api/middleware"
	"github.com/cloo-solutions/medrag/internal/domain"
	"github.com/cloo-solutions/medrag/internal/service"
)

type AnswerService interface {
	Ask(ctx context.Context, req service.AnswerRequest) (*domain.Answer, error)
}

type QueryHandler struct {
	svc AnswerService
}

func NewQueryHandler(svc AnswerService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

// QueryRequest accepts the question under either "query" or "question".
// top_k may be a JSON integer or a numeric string.
type QueryRequest struct {
	Query     string          `json:"query"`
	Question  string          `json:"question"`
	TopK      json.RawMessage `json:"top_k,omitempty"`
	Mode      string          `json:"mode,omitempty"`
	Summarize *bool           `json:"summarize,omitempty"`
}

type QueryResponse struct {
	Query    string   `json:"query"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
	Contexts []string `json:"contexts"`
	Mode     string   `json:"mode"`
}

func (q QueryRequest) question() string {
	if s := strings.TrimSpace(q.Query); s != "" {
		return s
	}
	return strings.TrimSpace(q.Question)
}

// parseTopK returns 0 when top_k is absent so the service default applies.
func parseTopK(raw json.RawMessage) (int, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, domain.ErrInvalidTopK
	}
	return n, nil
}

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.ErrorWithCode(w, http.StatusRequestEntityTooLarge, domain.ErrCodeInvalidRequest, "request body too large")
			return
		}
		api.HandleError(w, r, domain.ErrInvalidRequestBody)
		return
	}

	question := req.question()
	if question == "" {
		api.HandleError(w, r, domain.ErrInvalidQuery)
		return
	}

	topK, err := parseTopK(req.TopK)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	var mode domain.AnswerMode
	if req.Mode != "" {
		mode, err = domain.ParseAnswerMode(req.Mode)
		if err != nil {
			api.HandleError(w, r, err)
			return
		}
	}

	answer, err := h.svc.Ask(r.Context(), service.AnswerRequest{
		Query:     question,
		TopK:      topK,
		Mode:      mode,
		Summarize: req.Summarize,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	middleware.Annotate(r.Context(), "mode", string(answer.Mode))
	middleware.Annotate(r.Context(), "top_k", topK)
	middleware.Annotate(r.Context(), "sources", len(answer.Sources))
	api.JSON(w, http.StatusOK, answerToResponse(answer))
}

func answerToResponse(a *domain.Answer) *QueryResponse {
	resp := &QueryResponse{
		Query:    a.Query,
		Answer:   a.Answer,
		Sources:  a.Sources,
		Contexts: a.Contexts,
		Mode:     string(a.Mode),
	}
	if resp.Sources == nil {
		resp.Sources = []string{}
	}
	if resp.Contexts == nil {
		resp.Contexts = []string{}
	}
	return resp
}
