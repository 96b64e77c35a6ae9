package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/medrag/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IngestLock enforces a single ingestion writer per collection with a
// session-level advisory lock held on a dedicated connection.
type IngestLock struct {
	pool *pgxpool.Pool
}

func NewIngestLock(pool *pgxpool.Pool) *IngestLock {
	return &IngestLock{pool: pool}
}

func lockKey(collection string) string {
	return "medrag:ingest:" + collection
}

// TryAcquire returns a release func, or ErrIngestionInProgress when another
// run holds the lock. It never blocks waiting for the holder.
func (l *IngestLock) TryAcquire(ctx context.Context, collection string) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, wrapIndexErr(err)
	}

	key := lockKey(collection)
	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, wrapIndexErr(err)
	}
	if !acquired {
		conn.Release()
		return nil, domain.ErrIngestionInProgress.WithCause(fmt.Errorf("collection %q", collection))
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, key); err != nil {
			// Closing the session drops any advisory locks it holds.
			_ = conn.Conn().Close(ctx)
		}
		conn.Release()
	}
	return release, nil
}
