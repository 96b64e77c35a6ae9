package service

import (
	"context"

	"github.com/cloo-solutions/medrag/internal/domain"
	"github.com/cloo-solutions/medrag/internal/pagination"
)

// IndexBrowser exposes read-only listings of the vector index.
type IndexBrowser interface {
	Count(ctx context.Context, collection string) (int, error)
	GetByID(ctx context.Context, collection, id string) (*domain.Chunk, error)
	ListSources(ctx context.Context, collection, after string, limit int) ([]domain.SourceSummary, error)
}

// IndexStatus describes the collection served by this process.
type IndexStatus struct {
	Collection *domain.Collection
	Chunks     int
}

// Catalog answers questions about what is indexed.
type Catalog struct {
	collections CollectionStore
	index       IndexBrowser
	collection  string
}

func NewCatalog(collections CollectionStore, index IndexBrowser, collection string) *Catalog {
	return &Catalog{
		collections: collections,
		index:       index,
		collection:  collection,
	}
}

func (c *Catalog) Collection() string {
	return c.collection
}

func (c *Catalog) Status(ctx context.Context) (*IndexStatus, error) {
	col, err := c.collections.Get(ctx, c.collection)
	if err != nil {
		return nil, err
	}
	n, err := c.index.Count(ctx, c.collection)
	if err != nil {
		return nil, err
	}
	return &IndexStatus{Collection: col, Chunks: n}, nil
}

// Sources lists indexed documents in name order, one page at a time.
func (c *Catalog) Sources(ctx context.Context, cursor string, limit int) (*pagination.PageResult[domain.SourceSummary], error) {
	after, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.ErrInvalidCursor.WithCause(err)
	}
	limit = pagination.ClampLimit(limit)

	fetched, err := c.index.ListSources(ctx, c.collection, after, limit+1)
	if err != nil {
		return nil, err
	}

	page := pagination.NewPage(fetched, limit, func(s domain.SourceSummary) string { return s.Source })
	return &page, nil
}

func (c *Catalog) Chunk(ctx context.Context, id string) (*domain.Chunk, error) {
	return c.index.GetByID(ctx, c.collection, id)
}
