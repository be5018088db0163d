package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/artivault/internal/server/access"
	"github.com/dmitrijs2005/artivault/internal/server/models"
	"github.com/dmitrijs2005/artivault/internal/server/repositories/repomanager"
)

type identityStore struct {
	db *sql.DB
	m  repomanager.RepositoryManager
}

func (s identityStore) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	return s.m.Users(s.db).GetUserByLogin(ctx, login)
}

func (s identityStore) ListUserGroups(ctx context.Context, userID int64) ([]models.Group, error) {
	return s.m.Groups(s.db).ListUserGroups(ctx, userID)
}

// NewIdentityResolver resolves logins against the store behind m.
func NewIdentityResolver(db *sql.DB, m repomanager.RepositoryManager) *access.Resolver {
	return access.NewResolver(identityStore{db: db, m: m})
}
