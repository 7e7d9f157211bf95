// Package dbx provides the small DB abstractions shared by repositories:
// DBTX (implemented by *sql.DB and *sql.Tx), WithTx, and the Transactor
// seam services use so that the same flow code runs over PostgreSQL or the
// in-memory backend.
package dbx

import (
	"context"
	"database/sql"
	"sync"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxFunc is the unit of work run inside a transaction.
type TxFunc func(ctx context.Context, tx DBTX) error

// Transactor runs units of work atomically and hands out the handle used
// for non-transactional reads.
type Transactor interface {
	// Conn returns the handle for statements outside a transaction.
	Conn() DBTX

	// WithTx runs fn atomically: all of its writes commit or none do.
	WithTx(ctx context.Context, opts *sql.TxOptions, fn TxFunc) error
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
//
// Typical use:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFunc) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// SQLTransactor is the Transactor over a database/sql pool.
type SQLTransactor struct {
	db *sql.DB
}

func NewSQLTransactor(db *sql.DB) *SQLTransactor {
	return &SQLTransactor{db: db}
}

func (t *SQLTransactor) Conn() DBTX { return t.db }

// DB exposes the pool for migrations and shutdown.
func (t *SQLTransactor) DB() *sql.DB { return t.db }

func (t *SQLTransactor) WithTx(ctx context.Context, opts *sql.TxOptions, fn TxFunc) error {
	return WithTx(ctx, t.db, opts, fn)
}

// MemoryTransactor serialises units of work with a mutex for the in-memory
// backend. It does not undo partial writes, so fn must only fail before its
// first write or be idempotent. WithTx must not be nested.
type MemoryTransactor struct {
	mu sync.Mutex
}

func NewMemoryTransactor() *MemoryTransactor {
	return &MemoryTransactor{}
}

// Conn returns nil; memory repositories ignore the handle.
func (t *MemoryTransactor) Conn() DBTX { return nil }

func (t *MemoryTransactor) WithTx(ctx context.Context, _ *sql.TxOptions, fn TxFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, nil)
}
