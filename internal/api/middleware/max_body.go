package middleware

import (
	"net/http"

	"github.com/cloo-solutions/medrag/internal/api"
	"github.com/cloo-solutions/medrag/internal/domain"
)

// MaxBodyBytes caps bodies of POST, PUT and PATCH requests. A declared
// Content-Length over the cap is rejected before the handler runs; chunked
// bodies fail inside the handler's decoder with *http.MaxBytesError.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
			default:
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				api.ErrorWithCode(w, http.StatusRequestEntityTooLarge, domain.ErrCodeInvalidRequest, "request body too large")
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
