// Package repomanager vends repository implementations bound to a DBTX and
// the SQL dialect of the configured driver, and runs schema migrations.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/dmitrijs2005/artivault/internal/dbx"
	"github.com/dmitrijs2005/artivault/internal/server/migrations"
	"github.com/dmitrijs2005/artivault/internal/server/repositories/grants"
	"github.com/dmitrijs2005/artivault/internal/server/repositories/groups"
	"github.com/dmitrijs2005/artivault/internal/server/repositories/metakeys"
	"github.com/dmitrijs2005/artivault/internal/server/repositories/objects"
	"github.com/dmitrijs2005/artivault/internal/server/repositories/relations"
	"github.com/dmitrijs2005/artivault/internal/server/repositories/users"
)

type RepositoryManager interface {
	Dialect() dbx.Dialect
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Groups(db dbx.DBTX) groups.Repository
	Objects(db dbx.DBTX) objects.Repository
	Relations(db dbx.DBTX) relations.Repository
	Grants(db dbx.DBTX) grants.Repository
	Metakeys(db dbx.DBTX) metakeys.Repository
}

// SQLRepositoryManager vends the database/sql repositories for one driver.
type SQLRepositoryManager struct {
	driver  string
	dialect dbx.Dialect
}

// NewRepositoryManager returns a manager for driver ("pgx" or "sqlite3").
func NewRepositoryManager(driver string) (RepositoryManager, error) {
	d, ok := dbx.DialectFor(driver)
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	return &SQLRepositoryManager{driver: driver, dialect: d}, nil
}

func (m *SQLRepositoryManager) Dialect() dbx.Dialect { return m.dialect }

func (m *SQLRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLRepository(db, m.dialect)
}

func (m *SQLRepositoryManager) Groups(db dbx.DBTX) groups.Repository {
	return groups.NewSQLRepository(db, m.dialect)
}

func (m *SQLRepositoryManager) Objects(db dbx.DBTX) objects.Repository {
	return objects.NewSQLRepository(db, m.dialect)
}

func (m *SQLRepositoryManager) Relations(db dbx.DBTX) relations.Repository {
	return relations.NewSQLRepository(db, m.dialect)
}

func (m *SQLRepositoryManager) Grants(db dbx.DBTX) grants.Repository {
	return grants.NewSQLRepository(db, m.dialect)
}

func (m *SQLRepositoryManager) Metakeys(db dbx.DBTX) metakeys.Repository {
	return metakeys.NewSQLRepository(db, m.dialect)
}

// migrateUp is a seam for testing migrations.Up.
var migrateUp = migrations.Up

// RunMigrations applies the embedded migrations of the manager's driver.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrateUp(ctx, db, m.driver)
}

// OpenDB opens and pings a database for driver. SQLite connections get
// foreign keys enforced and a single writer connection.
func OpenDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if d, _ := dbx.DialectFor(driver); d == (dbx.SQLite{}) {
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	return db, nil
}
