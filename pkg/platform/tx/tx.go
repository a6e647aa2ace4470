// Package tx carries a database transaction through context so stores can
// join the caller's transaction without widening their signatures.
package tx

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a transaction from context if present.
func From(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	return tx, ok && tx != nil
}

// Detach returns a context that no longer carries a transaction. A pgx.Tx
// is bound to one connection and must not be used concurrently, so parallel
// reads run on the pool instead.
func Detach(ctx context.Context) context.Context {
	if _, ok := From(ctx); !ok {
		return ctx
	}
	return context.WithValue(ctx, txKey, pgx.Tx(nil))
}

// Executor returns the transaction in ctx, or db when there is none.
func Executor(ctx context.Context, db DB) DB {
	if t, ok := From(ctx); ok {
		return t
	}
	return db
}

// Runner runs fn inside one transaction whose handle travels in ctx.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// InProcess is the Runner for in-memory wiring: fn runs directly and the
// memory stores provide their own locking.
type InProcess struct{}

func (InProcess) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
