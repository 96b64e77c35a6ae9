package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/cloo-solutions/medrag/internal/api"
	"github.com/cloo-solutions/medrag/internal/domain"
)

type contextKey string

// TokenAuth requires "Authorization: Bearer <token>". An empty token disables
// the check.
func TokenAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.ErrorWithCode(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.ErrorWithCode(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "invalid authorization format")
				return
			}

			presented := strings.TrimPrefix(authHeader, "Bearer ")
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				api.ErrorWithCode(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, domain.ErrUnauthorized.Message)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
