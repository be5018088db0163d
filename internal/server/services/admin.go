package services

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/dmitrijs2005/artivault/internal/common"
	"github.com/dmitrijs2005/artivault/internal/dbx"
	"github.com/dmitrijs2005/artivault/internal/logging"
	"github.com/dmitrijs2005/artivault/internal/server/auth"
	sc "github.com/dmitrijs2005/artivault/internal/server/config"
	"github.com/dmitrijs2005/artivault/internal/server/models"
	"github.com/dmitrijs2005/artivault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/artivault/internal/timex"
)

// PublicGroup is joined by every user created through CreateUser when it exists.
const PublicGroup = "public"

// AdminService provisions users, groups and attribute keys for artivaultctl.
// It performs no capability checks; access to it is access to the database.
type AdminService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	attributes  *AttributeService
	logger      logging.Logger
	clock       timex.Clock
}

func NewAdminService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config, logger logging.Logger) *AdminService {
	return &AdminService{
		db:          db,
		repomanager: m,
		config:      cfg,
		attributes:  NewAttributeService(db, m, logger),
		logger:      logger.With("module", "admin"),
		clock:       timex.RealClock{},
	}
}

// CreateUser adds a user with a personal group and public group membership.
func (s *AdminService) CreateUser(ctx context.Context, login string) (*models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, common.BadRequestf("login is required")
	}

	var user *models.User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		groups := s.repomanager.Groups(tx)

		public, err := groups.GetByName(ctx, PublicGroup)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}

		user, err = s.repomanager.Users(tx).Create(ctx, login, s.clock.Now())
		if err != nil {
			return err
		}

		personal := &models.Group{Name: login, Private: true}
		if err := groups.Create(ctx, personal); err != nil {
			return err
		}
		if err := groups.AddMember(ctx, personal.ID, user.ID); err != nil {
			return err
		}
		if public != nil {
			return groups.AddMember(ctx, public.ID, user.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user created", "login", login)
	return user, nil
}

// CreateGroup adds a group. Capabilities are validated before anything is written.
func (s *AdminService) CreateGroup(ctx context.Context, g models.Group) (*models.Group, error) {
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		return nil, common.BadRequestf("group name is required")
	}
	for _, c := range g.Capabilities {
		if !c.Valid() {
			return nil, common.BadRequestf("unknown capability %q", c)
		}
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Groups(tx).Create(ctx, &g)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "group created", "name", g.Name)
	return &g, nil
}

// AddMember puts the user called login into the group called groupName.
func (s *AdminService) AddMember(ctx context.Context, groupName, login string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		group, err := s.repomanager.Groups(tx).GetByName(ctx, groupName)
		if err != nil {
			return notFound(err, "No such group")
		}
		user, err := s.repomanager.Users(tx).GetUserByLogin(ctx, login)
		if err != nil {
			return notFound(err, "No such user")
		}
		return s.repomanager.Groups(tx).AddMember(ctx, group.ID, user.ID)
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "member added", "group", groupName, "login", login)
	return nil
}

// GrantCapability gives the group called groupName the capability c.
func (s *AdminService) GrantCapability(ctx context.Context, groupName string, c models.Capability) error {
	if !c.Valid() {
		return common.BadRequestf("unknown capability %q", c)
	}

	group, err := s.repomanager.Groups(s.db).GetByName(ctx, groupName)
	if err != nil {
		return notFound(err, "No such group")
	}
	if err := s.repomanager.Groups(s.db).AddCapability(ctx, group.ID, c); err != nil {
		return err
	}
	s.logger.Info(ctx, "capability granted", "group", groupName, "capability", string(c))
	return nil
}

// IssueToken mints an access token for an existing user.
func (s *AdminService) IssueToken(ctx context.Context, login string) (string, error) {
	if _, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, login); err != nil {
		return "", notFound(err, "No such user")
	}
	return auth.GenerateToken(login, []byte(s.config.SecretKey), s.config.TokenValidityDuration)
}

func (s *AdminService) DefineMetakey(ctx context.Context, def models.MetakeyDefinition) (*models.MetakeyDefinition, error) {
	return s.attributes.upsertDefinition(ctx, def)
}

func (s *AdminService) PermitMetakey(ctx context.Context, key, groupName string, canRead, canSet bool) error {
	return s.attributes.upsertPermission(ctx, key, groupName, canRead, canSet)
}

func (s *AdminService) RevokeMetakey(ctx context.Context, key, groupName string) error {
	return s.attributes.deletePermission(ctx, key, groupName)
}
