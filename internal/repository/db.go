package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/cloo-solutions/medrag/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// dbtx is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// wrapIndexErr marks failures of the persistence layer itself as
// ErrIndexUnavailable. Statement errors and cancellations pass through.
func wrapIndexErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if unavailableSQLState(pgErr.Code) {
			return domain.ErrIndexUnavailable.WithCause(err)
		}
		return err
	}
	return domain.ErrIndexUnavailable.WithCause(err)
}

// unavailableSQLState covers connection, resource and operator-intervention
// classes plus a missing schema.
func unavailableSQLState(code string) bool {
	switch {
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "53"), strings.HasPrefix(code, "57"):
		return true
	case code == "42P01", code == "3D000":
		return true
	}
	return false
}
