package services

import (
	"context"
	"database/sql"
	"regexp"

	"github.com/cockroachdb/errors"

	"github.com/dmitrijs2005/artivault/internal/common"
	"github.com/dmitrijs2005/artivault/internal/dbx"
	"github.com/dmitrijs2005/artivault/internal/logging"
	"github.com/dmitrijs2005/artivault/internal/server/access"
	"github.com/dmitrijs2005/artivault/internal/server/models"
	"github.com/dmitrijs2005/artivault/internal/server/repositories/metakeys"
	"github.com/dmitrijs2005/artivault/internal/server/repositories/repomanager"
)

const (
	AccessRead = "read"
	AccessSet  = "set"
)

var metakeyPattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// AttributeService manages attribute definitions, their permissions and the
// values attached to objects.
type AttributeService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewAttributeService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *AttributeService {
	return &AttributeService{db: db, repomanager: m, logger: logger.With("module", "attributes")}
}

// DefinitionDetails is a definition together with every group permission on it.
type DefinitionDetails struct {
	models.MetakeyDefinition
	Permissions []models.MetakeyPermission `json:"permissions"`
}

// ensureSettable fails with NotFound unless key is defined and id may set it.
func ensureSettable(ctx context.Context, repo metakeys.Repository, id *access.Identity, key string) error {
	denied := common.NotFoundf("Metakey '%s' not defined or insufficient permissions to set that one", key)

	if _, err := repo.GetDefinition(ctx, key); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return denied
		}
		return err
	}
	perms, err := repo.ListPermissions(ctx, key)
	if err != nil {
		return err
	}
	if !access.CanSet(id, perms) {
		return denied
	}
	return nil
}

// Add attaches value under key to a visible object. created is false when
// the object already carried that exact value.
func (s *AttributeService) Add(ctx context.Context, id *access.Identity, t models.ObjectType, dhash, key, value string) (bool, error) {
	key = models.NormalizeKey(key)
	if value == "" {
		return false, common.BadRequestf("value of metakey '%s' is empty", key)
	}

	var created bool
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		o, err := s.repomanager.Objects(tx).FindVisible(ctx, t, dhash, visible(id))
		if err != nil {
			return notFound(err, "Object not found")
		}

		repo := s.repomanager.Metakeys(tx)
		if err := ensureSettable(ctx, repo, id, key); err != nil {
			return err
		}
		created, err = repo.AddValue(ctx, o.ID, key, value)
		return err
	})
	if err != nil {
		return false, err
	}

	s.logger.Info(ctx, "metakey added", "dhash", dhash, "key", key, "created", created)
	return created, nil
}

// Get lists the values of a visible object that id may read. Hidden keys
// are included only on request, which needs reading_all_attributes.
func (s *AttributeService) Get(ctx context.Context, id *access.Identity, t models.ObjectType, dhash string, includeHidden bool) ([]models.Metakey, error) {
	if includeHidden && !id.HasRights(models.CapReadingAllAttributes) {
		return nil, common.Forbiddenf("You are not permitted to read hidden metakeys")
	}

	o, err := s.repomanager.Objects(s.db).FindVisible(ctx, t, dhash, visible(id))
	if err != nil {
		return nil, notFound(err, "Object not found")
	}

	repo := s.repomanager.Metakeys(s.db)
	values, err := repo.ListValues(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	defs, err := s.definitionsByKey(ctx, repo)
	if err != nil {
		return nil, err
	}
	perms, err := repo.PermissionsByKey(ctx, id.GroupIDs())
	if err != nil {
		return nil, err
	}

	out := []models.Metakey{}
	for _, v := range values {
		def, ok := defs[v.Key]
		if !ok || (def.Hidden && !includeHidden) || !access.CanRead(id, &def, perms[v.Key]) {
			continue
		}
		v.URL = def.RenderURL(v.Value)
		out = append(out, v)
	}
	return out, nil
}

func (s *AttributeService) definitionsByKey(ctx context.Context, repo metakeys.Repository) (map[string]models.MetakeyDefinition, error) {
	defs, err := repo.ListDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.MetakeyDefinition, len(defs))
	for _, d := range defs {
		out[d.Key] = d
	}
	return out, nil
}

// ListDefinitions returns the definitions id may read or set, by key.
func (s *AttributeService) ListDefinitions(ctx context.Context, id *access.Identity, accessKind string) ([]models.MetakeyDefinition, error) {
	if accessKind != AccessRead && accessKind != AccessSet {
		return nil, common.BadRequestf("Unknown desired access type '%s'", accessKind)
	}

	repo := s.repomanager.Metakeys(s.db)
	defs, err := repo.ListDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	perms, err := repo.PermissionsByKey(ctx, id.GroupIDs())
	if err != nil {
		return nil, err
	}

	out := []models.MetakeyDefinition{}
	for i := range defs {
		var ok bool
		if accessKind == AccessRead {
			ok = access.CanRead(id, &defs[i], perms[defs[i].Key])
		} else {
			ok = access.CanSet(id, perms[defs[i].Key])
		}
		if ok {
			out = append(out, defs[i])
		}
	}
	return out, nil
}

func requireManaging(id *access.Identity) error {
	if !id.HasRights(models.CapManagingAttributes) {
		return common.Forbiddenf("You are not permitted to manage attributes")
	}
	return nil
}

// ListAllDefinitions returns every definition.
func (s *AttributeService) ListAllDefinitions(ctx context.Context, id *access.Identity) ([]models.MetakeyDefinition, error) {
	if err := requireManaging(id); err != nil {
		return nil, err
	}
	return s.repomanager.Metakeys(s.db).ListDefinitions(ctx)
}

// GetDefinition returns one definition with its group permissions.
func (s *AttributeService) GetDefinition(ctx context.Context, id *access.Identity, key string) (*DefinitionDetails, error) {
	if err := requireManaging(id); err != nil {
		return nil, err
	}
	key = models.NormalizeKey(key)

	repo := s.repomanager.Metakeys(s.db)
	def, err := repo.GetDefinition(ctx, key)
	if err != nil {
		return nil, notFound(err, "No such metakey")
	}
	perms, err := repo.ListPermissions(ctx, key)
	if err != nil {
		return nil, err
	}
	return &DefinitionDetails{MetakeyDefinition: *def, Permissions: perms}, nil
}

// UpsertDefinition creates def or replaces every attribute of it.
func (s *AttributeService) UpsertDefinition(ctx context.Context, id *access.Identity, def models.MetakeyDefinition) (*models.MetakeyDefinition, error) {
	if err := requireManaging(id); err != nil {
		return nil, err
	}
	return s.upsertDefinition(ctx, def)
}

func (s *AttributeService) upsertDefinition(ctx context.Context, def models.MetakeyDefinition) (*models.MetakeyDefinition, error) {
	def.Key = models.NormalizeKey(def.Key)
	if !metakeyPattern.MatchString(def.Key) {
		return nil, common.BadRequestf("invalid metakey %q", def.Key)
	}

	if err := s.repomanager.Metakeys(s.db).UpsertDefinition(ctx, &def); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "metakey definition updated", "key", def.Key, "hidden", def.Hidden)
	return &def, nil
}

// UpsertPermission sets what the group called groupName may do with key.
func (s *AttributeService) UpsertPermission(ctx context.Context, id *access.Identity, key, groupName string, canRead, canSet bool) error {
	if err := requireManaging(id); err != nil {
		return err
	}
	return s.upsertPermission(ctx, key, groupName, canRead, canSet)
}

func (s *AttributeService) upsertPermission(ctx context.Context, key, groupName string, canRead, canSet bool) error {
	key = models.NormalizeKey(key)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Metakeys(tx)
		if _, err := repo.GetDefinition(ctx, key); err != nil {
			return notFound(err, "No such metakey")
		}
		group, err := s.repomanager.Groups(tx).GetByName(ctx, groupName)
		if err != nil {
			return notFound(err, "No such group")
		}
		return repo.UpsertPermission(ctx, &models.MetakeyPermission{
			Key:     key,
			GroupID: group.ID,
			CanRead: canRead,
			CanSet:  canSet,
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "metakey permission updated", "key", key, "group", groupName, "can_read", canRead, "can_set", canSet)
	return nil
}

// DeletePermission removes the permission row of key for groupName.
func (s *AttributeService) DeletePermission(ctx context.Context, id *access.Identity, key, groupName string) error {
	if err := requireManaging(id); err != nil {
		return err
	}
	return s.deletePermission(ctx, key, groupName)
}

func (s *AttributeService) deletePermission(ctx context.Context, key, groupName string) error {
	key = models.NormalizeKey(key)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		group, err := s.repomanager.Groups(tx).GetByName(ctx, groupName)
		if err != nil {
			return notFound(err, "No such group")
		}
		return notFound(s.repomanager.Metakeys(tx).DeletePermission(ctx, key, group.ID), "No such metakey permission")
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "metakey permission removed", "key", key, "group", groupName)
	return nil
}
