// Package services contains server-side business logic. ObjectService
// implements uploads, lookups, search, lineage and sharing of artifacts.
package services

import (
	"context"
	"database/sql"
	"regexp"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/dmitrijs2005/artivault/internal/common"
	"github.com/dmitrijs2005/artivault/internal/dbx"
	"github.com/dmitrijs2005/artivault/internal/logging"
	"github.com/dmitrijs2005/artivault/internal/server/access"
	"github.com/dmitrijs2005/artivault/internal/server/blobs"
	sc "github.com/dmitrijs2005/artivault/internal/server/config"
	"github.com/dmitrijs2005/artivault/internal/server/events"
	"github.com/dmitrijs2005/artivault/internal/server/models"
	"github.com/dmitrijs2005/artivault/internal/server/repositories/objects"
	"github.com/dmitrijs2005/artivault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/artivault/internal/server/search"
	"github.com/dmitrijs2005/artivault/internal/timex"
)

const (
	DefaultSearchLimit = common.DefaultPageSize
	MaxSearchLimit     = 10
)

type ObjectService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	logger      logging.Logger
	events      *events.Dispatcher
	blobs       blobs.Store
	clock       timex.Clock
}

// NewObjectService wires the service. store may be nil when file payload
// storage is not configured.
func NewObjectService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config, logger logging.Logger,
	dispatcher *events.Dispatcher, store blobs.Store) *ObjectService {
	return &ObjectService{
		db:          db,
		repomanager: m,
		config:      cfg,
		logger:      logger.With("module", "objects"),
		events:      dispatcher,
		blobs:       store,
		clock:       timex.RealClock{},
	}
}

// visible is the visibility predicate for rows aliased o.
func visible(id *access.Identity) dbx.Predicate {
	clause, args := access.Visibility(id, "o.id")
	return dbx.Predicate{SQL: clause, Args: args}
}

// Get returns a visible object together with its visible relations.
func (s *ObjectService) Get(ctx context.Context, id *access.Identity, t models.ObjectType, dhash string) (*models.Object, error) {
	o, err := s.repomanager.Objects(s.db).FindVisible(ctx, t, dhash, visible(id))
	if err != nil {
		return nil, notFound(err, "Object not found")
	}

	rel, err := s.relations(ctx, s.db, id, o.ID)
	if err != nil {
		return nil, err
	}
	o.Parents, o.Children = rel.Parents, rel.Children
	return o, nil
}

// Relations returns the visible parents and children of a visible object.
func (s *ObjectService) Relations(ctx context.Context, id *access.Identity, t models.ObjectType, dhash string) (*models.Relations, error) {
	o, err := s.repomanager.Objects(s.db).FindVisible(ctx, t, dhash, visible(id))
	if err != nil {
		return nil, notFound(err, "Object not found")
	}
	return s.relations(ctx, s.db, id, o.ID)
}

func (s *ObjectService) relations(ctx context.Context, db dbx.DBTX, id *access.Identity, objectID int64) (*models.Relations, error) {
	repo := s.repomanager.Relations(db)
	parents, err := repo.Parents(ctx, objectID, visible(id))
	if err != nil {
		return nil, err
	}
	children, err := repo.Children(ctx, objectID, visible(id))
	if err != nil {
		return nil, err
	}
	return &models.Relations{Parents: parents, Children: children}, nil
}

// SearchRequest selects one page of objects. OlderThan and Page are
// mutually exclusive; Page is the legacy offset pagination.
type SearchRequest struct {
	Query     string
	OlderThan string
	Page      int
	Limit     int
}

// Search returns visible objects of type t matching the query, newest first.
func (s *ObjectService) Search(ctx context.Context, id *access.Identity, t models.ObjectType, req SearchRequest) ([]models.Object, error) {
	if req.Page != 0 && req.OlderThan != "" {
		return nil, common.BadRequestf("page and older_than can't be used simultaneously")
	}
	if req.Page < 0 {
		return nil, common.BadRequestf("page must be positive")
	}

	limit := req.Limit
	if limit <= 0 || limit > MaxSearchLimit {
		limit = DefaultSearchLimit
	}

	readable, err := s.readableKeys(ctx, id)
	if err != nil {
		return nil, err
	}

	filter, err := search.NewCompiler(s.repomanager.Dialect(), id, t, readable).Compile(req.Query)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Objects(s.db)
	q := objects.ListQuery{
		Type:  t,
		Where: dbx.And(visible(id), dbx.Predicate{SQL: filter.SQL, Args: filter.Args}),
		Limit: limit,
	}

	if req.OlderThan != "" {
		// The cursor may name a visible object of any variant.
		ref, err := repo.FindVisible(ctx, models.TypeObject, req.OlderThan, visible(id))
		if err != nil {
			return nil, notFound(err, "Object referenced in 'older_than' not found")
		}
		q.BeforeID = ref.ID
	}
	if req.Page > 0 {
		s.logger.Warn(ctx, "legacy page parameter used", "login", id.User.Login, "page", req.Page)
		q.Offset = (req.Page - 1) * limit
	}

	out, err := repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Object{}
	}
	return out, nil
}

// readableKeys lists the attribute keys id may reference in queries.
func (s *ObjectService) readableKeys(ctx context.Context, id *access.Identity) (map[string]bool, error) {
	repo := s.repomanager.Metakeys(s.db)
	defs, err := repo.ListDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	perms, err := repo.PermissionsByKey(ctx, id.GroupIDs())
	if err != nil {
		return nil, err
	}
	return access.ReadableKeys(id, defs, perms), nil
}

// AddChild links two existing visible objects of type t.
func (s *ObjectService) AddChild(ctx context.Context, id *access.Identity, t models.ObjectType, parentHash, childHash string) error {
	if !id.HasRights(models.CapAddingParents) {
		return common.Forbiddenf("You are not permitted to link objects")
	}

	var created bool
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		objRepo := s.repomanager.Objects(tx)
		relRepo := s.repomanager.Relations(tx)

		parent, err := objRepo.FindVisible(ctx, t, parentHash, visible(id))
		if err != nil {
			return notFound(err, "Parent object not found")
		}
		child, err := objRepo.FindVisible(ctx, t, childHash, visible(id))
		if err != nil {
			return notFound(err, "Child object not found")
		}
		if err := checkLink(ctx, relRepo, parent.ID, child.ID); err != nil {
			return err
		}

		created, err = relRepo.Add(ctx, parent.ID, child.ID, s.clock.Now())
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "child added", "parent", parentHash, "child", childHash, "created", created)
	return nil
}

type ancestry interface {
	IsAncestor(ctx context.Context, ancestorID, objectID int64) (bool, error)
}

// checkLink rejects self-links and edges that would close a cycle.
func checkLink(ctx context.Context, rel ancestry, parentID, childID int64) error {
	if parentID == childID {
		return common.BadRequestf("object can't be its own parent")
	}
	cycle, err := rel.IsAncestor(ctx, childID, parentID)
	if err != nil {
		return err
	}
	if cycle {
		return common.BadRequestf("relation would create a cycle")
	}
	return nil
}

// Share grants the group called groupName access to a visible object.
func (s *ObjectService) Share(ctx context.Context, id *access.Identity, t models.ObjectType, dhash, groupName string) error {
	var created bool
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		o, err := s.repomanager.Objects(tx).FindVisible(ctx, t, dhash, visible(id))
		if err != nil {
			return notFound(err, "Object not found")
		}
		group, err := access.CheckShareTarget(ctx, id, groupName, s.repomanager.Groups(tx).GetByName)
		if err != nil {
			return err
		}

		created, err = s.repomanager.Grants(tx).Grant(ctx, models.AccessGrant{
			ObjectID:        o.ID,
			GroupID:         group.ID,
			Reason:          models.ReasonShared,
			RelatedObjectID: o.ID,
			RelatedUserID:   id.User.ID,
			AccessTime:      s.clock.Now(),
		})
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "object shared", "dhash", dhash, "group", groupName, "created", created)
	return nil
}

// Shares lists the grants of a visible object. Callers without
// sharing_objects only see grants of their own groups.
func (s *ObjectService) Shares(ctx context.Context, id *access.Identity, t models.ObjectType, dhash string) ([]models.AccessGrant, error) {
	o, err := s.repomanager.Objects(s.db).FindVisible(ctx, t, dhash, visible(id))
	if err != nil {
		return nil, notFound(err, "Object not found")
	}

	all, err := s.repomanager.Grants(s.db).ListByObject(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	out := []models.AccessGrant{}
	for _, g := range all {
		if id.HasRights(models.CapSharingObjects) || id.IsMember(g.GroupName) {
			out = append(out, g)
		}
	}
	return out, nil
}

var statsRange = regexp.MustCompile(`^([0-9]+)([hd])$`)

// ConfigStats aggregates visible configs per family. rng is "*" for all
// time, or "<n>h" / "<n>d" for a trailing window.
func (s *ObjectService) ConfigStats(ctx context.Context, id *access.Identity, rng string) ([]models.ConfigStat, error) {
	var since time.Time
	if rng != "" && rng != "*" {
		m := statsRange.FindStringSubmatch(rng)
		if m == nil {
			return nil, common.BadRequestf("invalid range %q", rng)
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, common.BadRequestf("invalid range %q", rng)
		}
		unit := time.Hour
		if m[2] == "d" {
			unit = 24 * time.Hour
		}
		since = s.clock.Now().Add(-time.Duration(n) * unit)
	}

	stats, err := s.repomanager.Objects(s.db).ConfigStats(ctx, since, visible(id))
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []models.ConfigStat{}
	}
	return stats, nil
}

// FileDownloadURL returns a presigned link to a visible file's payload.
func (s *ObjectService) FileDownloadURL(ctx context.Context, id *access.Identity, dhash string) (string, error) {
	if s.blobs == nil {
		return "", common.BadRequestf("file storage is not configured")
	}

	o, err := s.repomanager.Objects(s.db).FindVisible(ctx, models.TypeFile, dhash, visible(id))
	if err != nil {
		return "", notFound(err, "File not found")
	}
	return s.blobs.PresignGet(ctx, blobs.FileKey(o.File.SHA256))
}

// notFound replaces a bare common.ErrNotFound with a user-facing message.
func notFound(err error, msg string) error {
	if errors.Is(err, common.ErrNotFound) {
		return common.NotFoundf("%s", msg)
	}
	return err
}
