// Package metakeys stores attribute definitions, their per-group permissions
// and the attribute values attached to objects.
package metakeys

import (
	"context"

	"github.com/dmitrijs2005/artivault/internal/server/models"
)

type Repository interface {
	UpsertDefinition(ctx context.Context, d *models.MetakeyDefinition) error
	GetDefinition(ctx context.Context, key string) (*models.MetakeyDefinition, error)
	ListDefinitions(ctx context.Context) ([]models.MetakeyDefinition, error)

	UpsertPermission(ctx context.Context, p *models.MetakeyPermission) error
	// DeletePermission returns common.ErrNotFound when no row was removed.
	DeletePermission(ctx context.Context, key string, groupID int64) error
	ListPermissions(ctx context.Context, key string) ([]models.MetakeyPermission, error)
	// PermissionsByKey returns the rows of the given groups grouped by key.
	PermissionsByKey(ctx context.Context, groupIDs []int64) (map[string][]models.MetakeyPermission, error)

	// AddValue attaches value under key. created is false for a duplicate triple.
	AddValue(ctx context.Context, objectID int64, key, value string) (created bool, err error)
	ListValues(ctx context.Context, objectID int64) ([]models.Metakey, error)
}
