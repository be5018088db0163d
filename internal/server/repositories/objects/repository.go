// Package objects stores artifacts and their variant payloads.
package objects

import (
	"context"
	"time"

	"github.com/dmitrijs2005/artivault/internal/dbx"
	"github.com/dmitrijs2005/artivault/internal/server/models"
)

// ListQuery selects a page of objects ordered by id descending.
type ListQuery struct {
	Type     models.ObjectType // TypeObject matches every variant
	Where    dbx.Predicate
	BeforeID int64 // exclusive upper bound on id, 0 for none
	Offset   int
	Limit    int
}

type Repository interface {
	// Insert creates the objects row unless the dhash already exists.
	// On success o.ID is set and created is true.
	Insert(ctx context.Context, o *models.Object) (created bool, err error)
	InsertFile(ctx context.Context, objectID int64, f *models.File) error
	InsertConfig(ctx context.Context, objectID int64, c *models.Config) error
	InsertTextBlob(ctx context.Context, objectID int64, b *models.TextBlob) error

	GetByDHash(ctx context.Context, dhash string) (*models.Object, error)
	FindVisible(ctx context.Context, t models.ObjectType, dhash string, visibility dbx.Predicate) (*models.Object, error)
	List(ctx context.Context, q ListQuery) ([]models.Object, error)

	Touch(ctx context.Context, objectID int64, at time.Time) error
	SetUploadTime(ctx context.Context, objectID int64, at time.Time) error

	ConfigStats(ctx context.Context, since time.Time, visibility dbx.Predicate) ([]models.ConfigStat, error)
}
