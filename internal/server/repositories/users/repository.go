// Package users stores authenticated principals.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/artivault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, login string, at time.Time) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
}
