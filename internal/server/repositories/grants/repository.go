// Package grants stores which groups may see which objects.
package grants

import (
	"context"

	"github.com/dmitrijs2005/artivault/internal/server/models"
)

type Repository interface {
	// Grant records g unless the (object, group) pair already has a grant.
	Grant(ctx context.Context, g models.AccessGrant) (created bool, err error)
	ListByObject(ctx context.Context, objectID int64) ([]models.AccessGrant, error)
}
