package access

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/dmitrijs2005/artivault/internal/common"
	"github.com/dmitrijs2005/artivault/internal/server/models"
)

// ShareAll is the upload_as value meaning "every group of the uploader except public ones".
const ShareAll = "*"

// GroupLookup finds a group by name, returning common.ErrNotFound when absent.
type GroupLookup func(ctx context.Context, name string) (*models.Group, error)

// ResolveShareTargets returns the groups an upload is shared with.
func ResolveShareTargets(ctx context.Context, id *Identity, uploadAs string, lookup GroupLookup) ([]models.Group, error) {
	if uploadAs == "" || uploadAs == ShareAll {
		out := make([]models.Group, 0, len(id.Groups))
		for _, g := range id.Groups {
			if !g.Public {
				out = append(out, g)
			}
		}
		return out, nil
	}

	group, err := CheckShareTarget(ctx, id, uploadAs, lookup)
	if err != nil {
		return nil, err
	}

	out := []models.Group{*group}
	if personal, ok := id.PersonalGroup(); ok && personal.ID != group.ID {
		out = append(out, personal)
	}
	return out, nil
}

// CheckShareTarget validates that id may share with the group called name
// and that the group exists and is not pending.
func CheckShareTarget(ctx context.Context, id *Identity, name string, lookup GroupLookup) (*models.Group, error) {
	if !id.HasRights(models.CapSharingObjects) && !id.IsMember(name) {
		return nil, common.NotFoundf("group %s doesn't exist", name)
	}

	group, err := lookup(ctx, name)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NotFoundf("group %s doesn't exist", name)
		}
		return nil, err
	}
	if group.Pending {
		return nil, common.NotFoundf("group %s is pending", name)
	}
	return group, nil
}
