package repository

import (
	"context"
	"errors"

	"github.com/cloo-solutions/medrag/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CollectionRepository records which embedding model built each collection.
type CollectionRepository struct {
	db dbtx
}

func NewCollectionRepository(pool *pgxpool.Pool) *CollectionRepository {
	return &CollectionRepository{db: pool}
}

// Ensure creates the collection on first use. An existing collection built
// with another model or width yields ErrEmbeddingSpaceMismatch.
func (r *CollectionRepository) Ensure(ctx context.Context, name, model string, dims int) (*domain.Collection, error) {
	_, err := r.db.Exec(ctx,
		`INSERT INTO index_collections (name, embedding_model, dimensions)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO NOTHING`,
		name, model, dims,
	)
	if err != nil {
		return nil, wrapIndexErr(err)
	}

	c, err := r.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := c.CheckEmbeddingSpace(model, dims); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CollectionRepository) Get(ctx context.Context, name string) (*domain.Collection, error) {
	var c domain.Collection
	err := r.db.QueryRow(ctx,
		`SELECT name, embedding_model, dimensions, created_at, updated_at
		 FROM index_collections WHERE name = $1`,
		name,
	).Scan(&c.Name, &c.EmbeddingModel, &c.Dimensions, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCollectionNotFound
		}
		return nil, wrapIndexErr(err)
	}
	return &c, nil
}

// Touch bumps updated_at after an ingestion run wrote to the collection.
func (r *CollectionRepository) Touch(ctx context.Context, name string) error {
	_, err := r.db.Exec(ctx, `UPDATE index_collections SET updated_at = now() WHERE name = $1`, name)
	return wrapIndexErr(err)
}
