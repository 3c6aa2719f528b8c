// Package txn provides the atomic-commit unit wrapping work that must
// not interleave: the availability check + booking insert, and the
// payment-state + booking-state update during reconciliation.
package txn

import (
	"context"
	"database/sql"
)

// Runner executes a function within one database transaction.  The
// transaction commits when fn returns nil and rolls back otherwise.
// Services depend on this interface so tests can substitute a runner
// that skips the database entirely.
type Runner interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// SQLRunner is the production Runner backed by *sql.DB.
type SQLRunner struct {
	db *sql.DB
}

// NewSQLRunner returns a Runner bound to the given database.
func NewSQLRunner(db *sql.DB) *SQLRunner { return &SQLRunner{db: db} }

// WithTx begins a transaction, runs fn and commits.  Any error from fn
// or from commit rolls the transaction back and is returned unchanged
// so sentinel comparisons with errors.Is keep working across the
// boundary.
func (r *SQLRunner) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
