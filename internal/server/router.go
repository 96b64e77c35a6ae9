package server

import (
	"net/http"

	"github.com/cloo-solutions/medrag/internal/api"
	"github.com/cloo-solutions/medrag/internal/api/handlers"
	"github.com/cloo-solutions/medrag/internal/api/middleware"
	"github.com/cloo-solutions/medrag/internal/domain"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	// APIToken protects the query and browsing routes when set.
	APIToken     string
	QueryHandler *handlers.QueryHandler
	IndexHandler *handlers.IndexHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 << 20

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.ErrorWithCode(w, http.StatusNotFound, domain.ErrCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.ErrorWithCode(w, http.StatusMethodNotAllowed, domain.ErrCodeInvalidRequest, "method not allowed")
	})

	r.Get("/", cfg.IndexHandler.Info)
	r.Get("/health", cfg.IndexHandler.Health)
	r.Get("/ready", cfg.IndexHandler.Ready)

	r.Group(func(r chi.Router) {
		r.Use(middleware.TokenAuth(cfg.APIToken))

		r.Post("/query", cfg.QueryHandler.Query)
		r.Get("/sources", cfg.IndexHandler.Sources)
		r.Get("/chunks/{id}", cfg.IndexHandler.Chunk)
	})

	return r
}
