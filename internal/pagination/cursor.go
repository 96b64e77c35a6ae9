package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	cursorPrefix = "after:"
)

// PageResult represents a paginated result set
type PageResult[T any] struct {
	Items   []T    `json:"items"`
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

var (
	ErrInvalidCursor = errors.New("invalid cursor format")
)

// EncodeCursor creates an opaque cursor pointing after key
func EncodeCursor(key string) string {
	if key == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + key))
}

// DecodeCursor returns the key a cursor points after. An empty cursor decodes
// to the empty key, which is the start of the listing.
func DecodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", ErrInvalidCursor
	}

	key, ok := strings.CutPrefix(string(decoded), cursorPrefix)
	if !ok || key == "" {
		return "", ErrInvalidCursor
	}
	return key, nil
}

// ClampLimit applies DefaultLimit to non-positive values and caps at MaxLimit
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// NewPage builds a page from up to limit+1 fetched items. The extra item only
// signals that another page exists and is not returned.
func NewPage[T any](fetched []T, limit int, getKey func(T) string) PageResult[T] {
	if len(fetched) <= limit {
		if fetched == nil {
			fetched = []T{}
		}
		return PageResult[T]{Items: fetched}
	}

	items := fetched[:limit]
	return PageResult[T]{
		Items:   items,
		Cursor:  EncodeCursor(getKey(items[len(items)-1])),
		HasMore: true,
	}
}
