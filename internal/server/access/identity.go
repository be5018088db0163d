// Package access implements the visibility model: who a caller is, which
// groups they act through, which objects they may see and which attribute
// keys they may read or set.
package access

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/dmitrijs2005/artivault/internal/common"
	"github.com/dmitrijs2005/artivault/internal/server/models"
)

// Identity is the resolved acting user together with every group they belong to.
type Identity struct {
	User   models.User
	Groups []models.Group
}

// HasRights reports whether any of the user's groups holds c.
func (i *Identity) HasRights(c models.Capability) bool {
	for _, g := range i.Groups {
		for _, have := range g.Capabilities {
			if have == c {
				return true
			}
		}
	}
	return false
}

// AllAccess reports whether the user sees every object.
func (i *Identity) AllAccess() bool {
	for _, g := range i.Groups {
		if g.AllAccess {
			return true
		}
	}
	return false
}

// GroupIDs returns the ids of all groups the user belongs to.
func (i *Identity) GroupIDs() []int64 {
	ids := make([]int64, 0, len(i.Groups))
	for _, g := range i.Groups {
		ids = append(ids, g.ID)
	}
	return ids
}

// IsMember reports whether the user belongs to the group called name.
func (i *Identity) IsMember(name string) bool {
	for _, g := range i.Groups {
		if g.Name == name {
			return true
		}
	}
	return false
}

// PersonalGroup returns the private group named after the user's login.
func (i *Identity) PersonalGroup() (models.Group, bool) {
	for _, g := range i.Groups {
		if g.Private && g.Name == i.User.Login {
			return g, true
		}
	}
	return models.Group{}, false
}

// Store loads users and their group memberships.
type Store interface {
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	ListUserGroups(ctx context.Context, userID int64) ([]models.Group, error)
}

// Resolver turns an authenticated login into an Identity.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve loads the user and groups for login. Unknown users are unauthorized.
func (r *Resolver) Resolve(ctx context.Context, login string) (*Identity, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, common.ErrUnauthorized
	}

	user, err := r.store.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, errors.Wrapf(common.ErrUnauthorized, "unknown user %q", login)
		}
		return nil, err
	}

	groups, err := r.store.ListUserGroups(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &Identity{User: *user, Groups: groups}, nil
}

type ctxKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the Identity stored by WithIdentity.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}
