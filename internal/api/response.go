package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/cloo-solutions/medrag/internal/domain"
	"github.com/cloo-solutions/medrag/internal/telemetry"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// ErrorWithCode writes an error JSON response carrying a stable error code
func ErrorWithCode(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorResponse{Error: message, Code: code})
}

// DomainErrorToHTTP maps domain errors to HTTP status codes
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}

	switch domainErr.Code {
	case domain.ErrCodeInvalidQuery, domain.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case domain.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeEmbeddingSpaceMismatch, domain.ErrCodeIngestionInProgress:
		return http.StatusConflict
	case domain.ErrCodeIndexUnavailable, domain.ErrCodeGenerationUnavailable:
		return http.StatusServiceUnavailable
	case domain.ErrCodeUpstreamGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes an error response for err. Domain errors expose their
// message and code; anything else is logged and reported as "internal error".
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	status := DomainErrorToHTTP(err)

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) || status == http.StatusInternalServerError {
		log.Printf("api: %s %s: %v", r.Method, r.URL.Path, err)
		telemetry.CaptureError(r.Context(), err)
		ErrorWithCode(w, http.StatusInternalServerError, domain.ErrCodeInternalError, "internal error")
		return
	}

	if status >= http.StatusInternalServerError {
		log.Printf("api: %s %s: %v", r.Method, r.URL.Path, err)
		telemetry.CaptureError(r.Context(), err)
	}
	ErrorWithCode(w, status, domainErr.Code, domainErr.Message)
}
