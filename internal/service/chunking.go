package service

import (
	"fmt"
	"iter"
	"strings"

	"github.com/cloo-solutions/medrag/internal/domain"
)

// ChunkParams controls the sliding window used to split documents.
type ChunkParams struct {
	Size    int
	Overlap int
}

// DefaultChunkParams matches the CHUNK_SIZE / CHUNK_OVERLAP defaults.
func DefaultChunkParams() ChunkParams {
	return ChunkParams{Size: 1000, Overlap: 200}
}

// Validate enforces 0 <= Overlap < Size.
func (p ChunkParams) Validate() error {
	if p.Size <= 0 || p.Overlap < 0 || p.Overlap >= p.Size {
		return domain.ErrInvalidChunkParams.WithCause(fmt.Errorf("size=%d overlap=%d", p.Size, p.Overlap))
	}
	return nil
}

// Stride is the distance between consecutive window starts.
func (p ChunkParams) Stride() int {
	return p.Size - p.Overlap
}

// Chunker splits text into overlapping fixed-size windows. Lengths and offsets
// count Unicode code points of the whitespace-normalized text.
type Chunker struct {
	params ChunkParams
}

func NewChunker(params ChunkParams) (*Chunker, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{params: params}, nil
}

func (c *Chunker) Params() ChunkParams {
	return c.params
}

// NormalizeWhitespace collapses whitespace runs to single spaces and trims the ends.
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Chunks returns the ordinal and text of each window. The sequence is lazy and
// can be ranged over any number of times.
func (c *Chunker) Chunks(text string) iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		runes := []rune(NormalizeWhitespace(text))
		n := len(runes)
		if n == 0 {
			return
		}
		if n <= c.params.Size {
			yield(0, string(runes))
			return
		}

		ordinal := 0
		for i := 0; ; i++ {
			start, end := c.Span(i, n)
			chunk := strings.TrimSpace(string(runes[start:end]))
			if chunk != "" {
				if !yield(ordinal, chunk) {
					return
				}
				ordinal++
			}
			if end >= n {
				return
			}
		}
	}
}

// Split collects Chunks into a slice.
func (c *Chunker) Split(text string) []string {
	var out []string
	for _, chunk := range c.Chunks(text) {
		out = append(out, chunk)
	}
	return out
}

// Span returns the [start, end) rune offsets of window index for a normalized
// text of length n.
func (c *Chunker) Span(index, n int) (start, end int) {
	if n <= c.params.Size {
		return 0, n
	}
	start = index * c.params.Stride()
	end = min(start+c.params.Size, n)
	return start, end
}

// Count is the number of windows produced for a normalized text of length n.
func (c *Chunker) Count(n int) int {
	switch {
	case n == 0:
		return 0
	case n <= c.params.Size:
		return 1
	}
	stride := c.params.Stride()
	return (n - c.params.Overlap + stride - 1) / stride
}

// ChunkText splits text with the given parameters after validating them.
func ChunkText(text string, params ChunkParams) ([]string, error) {
	c, err := NewChunker(params)
	if err != nil {
		return nil, err
	}
	return c.Split(text), nil
}
