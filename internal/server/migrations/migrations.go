// Package migrations embeds the goose schema migrations for every supported
// dialect and applies them.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// For returns the migration directory and goose dialect for a driver name.
func For(driver string) (fs.FS, goose.Dialect, error) {
	switch driver {
	case "pgx", "postgres":
		sub, err := fs.Sub(files, "postgres")
		return sub, goose.DialectPostgres, err
	case "sqlite3", "sqlite":
		sub, err := fs.Sub(files, "sqlite")
		return sub, goose.DialectSQLite3, err
	}
	return nil, "", fmt.Errorf("unsupported database driver %q", driver)
}

// Up applies every pending migration for driver.
func Up(ctx context.Context, db *sql.DB, driver string) error {
	fsys, dialect, err := For(driver)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
