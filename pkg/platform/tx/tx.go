// Package tx carries a SQL transaction through context so independent stores
// (records, audit events) can join one atomic commit. The reconciliation
// finalize step relies on this: the record status update and its audit event
// are applied exactly once or not at all.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner abstracts transaction demarcation so services can run against a
// real database or plain in-memory stores.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// DBRunner runs callbacks inside a database transaction.
type DBRunner struct {
	DB *sql.DB
}

func (r DBRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return RunInTx(ctx, r.DB, fn)
}

// PassthroughRunner invokes callbacks directly. Memory stores are atomic per
// call, so tests use this in place of a database transaction.
type PassthroughRunner struct{}

func (PassthroughRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// RunInTx begins a transaction, injects it into the context passed to fn, and
// commits when fn succeeds. Any error rolls back.
func RunInTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	return sqlTx.Commit()
}
