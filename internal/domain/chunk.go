package domain

import (
	"fmt"
	"strings"
	"time"
)

// UnknownSource is reported for chunks whose source metadata is missing.
const UnknownSource = "Unknown"

// Chunk is the unit of retrieval: a window of source text plus its metadata.
type Chunk struct {
	ID        string
	Text      string
	Source    string
	ChunkID   int
	Embedding []float32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChunkRecordID derives the index id of a chunk from its source and ordinal.
// Re-ingesting the same source with the same parameters yields the same ids.
func ChunkRecordID(source string, ordinal int) string {
	return fmt.Sprintf("%s_chunk%d", source, ordinal)
}

// NewChunk builds a chunk for the given source and ordinal.
func NewChunk(source string, ordinal int, text string) (*Chunk, error) {
	c := &Chunk{
		ID:      ChunkRecordID(source, ordinal),
		Text:    text,
		Source:  source,
		ChunkID: ordinal,
	}
	if err := ValidateChunk(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ValidateChunk validates a Chunk instance
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}
	if c.Source == "" {
		return fmt.Errorf("chunk Source is required")
	}
	if c.ChunkID < 0 {
		return fmt.Errorf("chunk ChunkID cannot be negative")
	}
	if c.ID != ChunkRecordID(c.Source, c.ChunkID) {
		return fmt.Errorf("chunk ID %q does not match source %q and ordinal %d", c.ID, c.Source, c.ChunkID)
	}
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("chunk Text cannot be empty")
	}
	return nil
}

// SourceName returns the chunk's source, or UnknownSource when it is missing.
func (c Chunk) SourceName() string {
	if strings.TrimSpace(c.Source) == "" {
		return UnknownSource
	}
	return c.Source
}

// RetrievalResult is one ranked hit from the vector index.
type RetrievalResult struct {
	Chunk    Chunk
	Distance float32
	// Score is the cosine similarity, 1 - Distance.
	Score float32
}

// SourceSummary counts the chunks indexed for one source document.
type SourceSummary struct {
	Source string
	Chunks int
}
