package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/artivault/internal/common"
	"github.com/dmitrijs2005/artivault/internal/dbx"
	"github.com/dmitrijs2005/artivault/internal/server/models"
)

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, d dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: d}
}

// Create inserts a user. An existing login yields common.ErrConflict.
func (r *SQLRepository) Create(ctx context.Context, login string, at time.Time) (*models.User, error) {
	query := r.dialect.Rebind(
		`INSERT INTO users (login, created_at)
         VALUES (?, ?)
         ON CONFLICT (login) DO NOTHING
         RETURNING id`)

	user := &models.User{Login: login, CreatedAt: at}
	err := r.db.QueryRowContext(ctx, query, login, at).Scan(&user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.Conflictf("user %s already exists", login)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *SQLRepository) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	query := r.dialect.Rebind(
		`SELECT id, login, created_at FROM users
         WHERE login = ?`)

	user := &models.User{}
	var created dbx.Timestamp
	err := r.db.QueryRowContext(ctx, query, login).Scan(&user.ID, &user.Login, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	user.CreatedAt = created.Time

	return user, nil
}
