package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError carrying the same code and message, so that
// errors.Is(err, ErrInvalidQuery) holds for copies produced by WithCause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// WithCause returns a copy of the error wrapping cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Err: cause}
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// CodeOf returns the code of the first DomainError in err's chain, or ErrCodeInternalError.
func CodeOf(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ErrCodeInternalError
}

const (
	ErrCodeExtraction             = "EXTRACTION_ERROR"
	ErrCodeInvalidQuery           = "INVALID_QUERY"
	ErrCodeInvalidRequest         = "INVALID_REQUEST"
	ErrCodeEmbeddingSpaceMismatch = "EMBEDDING_SPACE_MISMATCH"
	ErrCodeIndexUnavailable       = "INDEX_UNAVAILABLE"
	ErrCodeGenerationUnavailable  = "GENERATION_UNAVAILABLE"
	ErrCodeUpstreamGeneration     = "UPSTREAM_GENERATION_ERROR"
	ErrCodeIngestionInProgress    = "INGESTION_IN_PROGRESS"
	ErrCodeInvalidConfig          = "INVALID_CONFIG"
	ErrCodeUnauthorized           = "UNAUTHORIZED"
	ErrCodeNotFound               = "NOT_FOUND"
	ErrCodeInternalError          = "INTERNAL_ERROR"
)

// Ingestion errors
var (
	ErrExtraction          = NewDomainError(ErrCodeExtraction, "document could not be opened")
	ErrUnsupportedFormat   = NewDomainError(ErrCodeExtraction, "unsupported document format")
	ErrIngestionInProgress = NewDomainError(ErrCodeIngestionInProgress, "another ingestion run holds the index")
	ErrInvalidChunkParams  = NewDomainError(ErrCodeInvalidConfig, "chunk parameters must satisfy 0 <= overlap < chunk_size")
)

// Query errors
var (
	ErrInvalidQuery       = NewDomainError(ErrCodeInvalidQuery, "question is required")
	ErrInvalidTopK        = NewDomainError(ErrCodeInvalidQuery, "top_k must be a positive integer")
	ErrInvalidRequestBody = NewDomainError(ErrCodeInvalidRequest, "request body must be a JSON object")
	ErrInvalidMode        = NewDomainError(ErrCodeInvalidQuery, "mode must be extractive or generative")
	ErrInvalidCursor      = NewDomainError(ErrCodeInvalidRequest, "invalid pagination cursor")
)

// Index errors
var (
	ErrEmbeddingSpaceMismatch = NewDomainError(ErrCodeEmbeddingSpaceMismatch, "index was built with a different embedding model")
	ErrIndexUnavailable       = NewDomainError(ErrCodeIndexUnavailable, "vector index unavailable")
	ErrCollectionNotFound     = NewDomainError(ErrCodeIndexUnavailable, "index collection not found, run ingestion first")
	ErrChunkNotFound          = NewDomainError(ErrCodeNotFound, "chunk not found")
)

// Generation errors
var (
	ErrGenerationUnavailable = NewDomainError(ErrCodeGenerationUnavailable, "generation is not configured: OPENAI_API_KEY required")
	ErrUpstreamGeneration    = NewDomainError(ErrCodeUpstreamGeneration, "generation call failed")
)

var ErrUnauthorized = NewDomainError(ErrCodeUnauthorized, "invalid api token")
