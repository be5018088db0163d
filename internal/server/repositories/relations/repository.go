// Package relations stores the append-only parent/child graph between objects.
package relations

import (
	"context"
	"time"

	"github.com/dmitrijs2005/artivault/internal/dbx"
	"github.com/dmitrijs2005/artivault/internal/server/models"
)

type Repository interface {
	// Add links parent to child. created is false when the edge already exists.
	Add(ctx context.Context, parentID, childID int64, at time.Time) (created bool, err error)
	// IsAncestor reports whether ancestorID is reachable upwards from objectID.
	IsAncestor(ctx context.Context, ancestorID, objectID int64) (bool, error)
	// Parents and Children list related objects that satisfy visibility, newest first.
	Parents(ctx context.Context, objectID int64, visibility dbx.Predicate) ([]models.ObjectRef, error)
	Children(ctx context.Context, objectID int64, visibility dbx.Predicate) ([]models.ObjectRef, error)
}
