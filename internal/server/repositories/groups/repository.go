// Package groups stores access groups, their members and capabilities.
package groups

import (
	"context"

	"github.com/dmitrijs2005/artivault/internal/server/models"
)

type Repository interface {
	// Create inserts g and sets g.ID. An existing name yields common.ErrConflict.
	Create(ctx context.Context, g *models.Group) error
	GetByName(ctx context.Context, name string) (*models.Group, error)
	ListUserGroups(ctx context.Context, userID int64) ([]models.Group, error)
	ListAllAccess(ctx context.Context) ([]models.Group, error)
	AddMember(ctx context.Context, groupID, userID int64) error
	AddCapability(ctx context.Context, groupID int64, c models.Capability) error
}
