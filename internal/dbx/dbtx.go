// Package dbx holds the database/sql plumbing shared by the repositories:
// the DBTX handle, transactions, SQL dialects and composable predicates.
package dbx

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
)

// DBTX is the subset of database/sql used by the repositories.
// Both *sql.DB and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back when fn fails or panics; panics are rethrown.
//
// The error from fn is returned as is, so callers can still match domain
// sentinels such as common.ErrConflict. A failed rollback is attached as a
// secondary error. Begin and commit failures are wrapped.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    return repos.Objects(tx).Touch(ctx, id, now)
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.WithSecondaryError(err, rbErr)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = errors.Wrap(cErr, "commit tx")
		}
	}()

	return fn(ctx, tx)
}
