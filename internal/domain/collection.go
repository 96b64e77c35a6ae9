package domain

import (
	"fmt"
	"time"
)

// Collection is a named set of chunks in the vector index, bound to the
// embedding model that produced its vectors.
type Collection struct {
	Name           string
	EmbeddingModel string
	Dimensions     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EmbeddingIdentity is the "<model>@<dims>" string recorded alongside the index.
func EmbeddingIdentity(model string, dims int) string {
	return fmt.Sprintf("%s@%d", model, dims)
}

// Identity returns the embedding identity recorded for the collection.
func (c *Collection) Identity() string {
	return EmbeddingIdentity(c.EmbeddingModel, c.Dimensions)
}

// CheckEmbeddingSpace returns ErrEmbeddingSpaceMismatch when the collection was
// built with a different model or dimension than the caller's.
func (c *Collection) CheckEmbeddingSpace(model string, dims int) error {
	if c.EmbeddingModel == model && c.Dimensions == dims {
		return nil
	}
	return ErrEmbeddingSpaceMismatch.WithCause(fmt.Errorf(
		"collection %q uses %s, process uses %s",
		c.Name, c.Identity(), EmbeddingIdentity(model, dims),
	))
}
