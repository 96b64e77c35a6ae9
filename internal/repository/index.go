package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/medrag/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// IndexRepository persists chunk records and answers nearest-neighbor queries.
type IndexRepository struct {
	db   dbtx
	pool txBeginner
}

func NewIndexRepository(pool *pgxpool.Pool) *IndexRepository {
	return &IndexRepository{db: pool, pool: pool}
}

const upsertChunkSQL = `INSERT INTO chunks
	(collection, id, source, chunk_id, content, embedding, created_at, updated_at)
 VALUES
	($1, $2, $3, $4, $5, $6, $7, $7)
 ON CONFLICT (collection, id) DO UPDATE SET
	source = EXCLUDED.source,
	chunk_id = EXCLUDED.chunk_id,
	content = EXCLUDED.content,
	embedding = EXCLUDED.embedding,
	updated_at = EXCLUDED.updated_at`

// UpsertBatch writes a fully embedded batch in one transaction. Records are
// keyed by id, so repeating a batch overwrites rather than duplicates.
func (r *IndexRepository) UpsertBatch(ctx context.Context, collection string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(upsertChunkSQL,
			collection,
			c.ID,
			c.Source,
			c.ChunkID,
			c.Text,
			pgvector.NewVector(c.Embedding),
			now,
		)
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	return wrapIndexErr(err)
}

// PruneSource removes records of source whose ordinal is keep or higher, the
// tail left behind when a document shrinks between runs.
func (r *IndexRepository) PruneSource(ctx context.Context, collection, source string, keep int) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM chunks WHERE collection = $1 AND source = $2 AND chunk_id >= $3`,
		collection, source, keep,
	)
	if err != nil {
		return 0, wrapIndexErr(err)
	}
	return tag.RowsAffected(), nil
}

// Query returns the k records nearest to vec by cosine distance. Ties are
// broken by id so that a smaller k always yields a prefix of a larger one.
func (r *IndexRepository) Query(ctx context.Context, collection string, vec []float32, k int) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		return []domain.RetrievalResult{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, source, chunk_id, content, created_at, updated_at, embedding <=> $2 AS distance
		 FROM chunks
		 WHERE collection = $1
		 ORDER BY distance, id
		 LIMIT $3`,
		collection, pgvector.NewVector(vec), k,
	)
	if err != nil {
		return nil, wrapIndexErr(err)
	}
	defer rows.Close()

	results := make([]domain.RetrievalResult, 0, k)
	for rows.Next() {
		var res domain.RetrievalResult
		var distance float64
		if err := rows.Scan(
			&res.Chunk.ID,
			&res.Chunk.Source,
			&res.Chunk.ChunkID,
			&res.Chunk.Text,
			&res.Chunk.CreatedAt,
			&res.Chunk.UpdatedAt,
			&distance,
		); err != nil {
			return nil, wrapIndexErr(err)
		}
		res.Distance = float32(distance)
		res.Score = float32(1 - distance)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapIndexErr(err)
	}

	return results, nil
}

func (r *IndexRepository) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM chunks WHERE collection = $1`, collection).Scan(&n)
	if err != nil {
		return 0, wrapIndexErr(err)
	}
	return n, nil
}

// GetByID returns a single record, used to inspect what ingestion wrote.
func (r *IndexRepository) GetByID(ctx context.Context, collection, id string) (*domain.Chunk, error) {
	var c domain.Chunk
	var emb pgvector.Vector
	err := r.db.QueryRow(ctx,
		`SELECT id, source, chunk_id, content, embedding, created_at, updated_at
		 FROM chunks WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&c.ID, &c.Source, &c.ChunkID, &c.Text, &emb, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChunkNotFound
		}
		return nil, wrapIndexErr(err)
	}
	c.Embedding = emb.Slice()
	return &c, nil
}

// ListSources returns per-source chunk counts ordered by source name, starting
// after the given source.
func (r *IndexRepository) ListSources(ctx context.Context, collection, after string, limit int) ([]domain.SourceSummary, error) {
	rows, err := r.db.Query(ctx,
		`SELECT source, count(*)
		 FROM chunks
		 WHERE collection = $1 AND source > $2
		 GROUP BY source
		 ORDER BY source
		 LIMIT $3`,
		collection, after, limit,
	)
	if err != nil {
		return nil, wrapIndexErr(err)
	}
	defer rows.Close()

	var out []domain.SourceSummary
	for rows.Next() {
		var s domain.SourceSummary
		if err := rows.Scan(&s.Source, &s.Chunks); err != nil {
			return nil, wrapIndexErr(err)
		}
		out = append(out, s)
	}
	return out, wrapIndexErr(rows.Err())
}
