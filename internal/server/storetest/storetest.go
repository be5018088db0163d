// Package storetest opens migrated in-memory SQLite databases for tests.
package storetest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/dmitrijs2005/artivault/internal/server/migrations"
)

// Open returns a private, migrated in-memory database closed on cleanup.
// The pool holds a single connection, so callers must not query through the
// *sql.DB while a transaction on it is open.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := migrations.Up(context.Background(), db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db.SetMaxOpenConns(1)
	return db
}
