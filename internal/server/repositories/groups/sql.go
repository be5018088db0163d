package groups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/artivault/internal/common"
	"github.com/dmitrijs2005/artivault/internal/dbx"
	"github.com/dmitrijs2005/artivault/internal/server/models"
)

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, d dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: d}
}

const selectGroups = `SELECT g.id, g.name, g.public, g.private, g.pending, g.all_access FROM access_groups g`

func (r *SQLRepository) Create(ctx context.Context, g *models.Group) error {
	query := r.dialect.Rebind(
		`INSERT INTO access_groups (name, public, private, pending, all_access)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (name) DO NOTHING
         RETURNING id`)

	err := r.db.QueryRowContext(ctx, query, g.Name, g.Public, g.Private, g.Pending, g.AllAccess).Scan(&g.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.Conflictf("group %s already exists", g.Name)
		}
		return fmt.Errorf("db error: %w", err)
	}

	for _, c := range g.Capabilities {
		if err := r.AddCapability(ctx, g.ID, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLRepository) GetByName(ctx context.Context, name string) (*models.Group, error) {
	query := r.dialect.Rebind(selectGroups + ` WHERE g.name = ?`)

	var g models.Group
	err := r.db.QueryRowContext(ctx, query, name).
		Scan(&g.ID, &g.Name, &g.Public, &g.Private, &g.Pending, &g.AllAccess)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	groups := []models.Group{g}
	if err := r.loadCapabilities(ctx, groups); err != nil {
		return nil, err
	}
	return &groups[0], nil
}

func (r *SQLRepository) ListUserGroups(ctx context.Context, userID int64) ([]models.Group, error) {
	return r.list(ctx, selectGroups+`
  JOIN group_members gm ON gm.group_id = g.id
 WHERE gm.user_id = ?
 ORDER BY g.id`, userID)
}

func (r *SQLRepository) ListAllAccess(ctx context.Context) ([]models.Group, error) {
	return r.list(ctx, selectGroups+` WHERE g.all_access = ? ORDER BY g.id`, true)
}

func (r *SQLRepository) AddMember(ctx context.Context, groupID, userID int64) error {
	query := r.dialect.Rebind(
		`INSERT INTO group_members (group_id, user_id)
         VALUES (?, ?)
         ON CONFLICT (group_id, user_id) DO NOTHING`)

	if _, err := r.db.ExecContext(ctx, query, groupID, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) AddCapability(ctx context.Context, groupID int64, c models.Capability) error {
	if !c.Valid() {
		return common.BadRequestf("unknown capability %q", c)
	}

	query := r.dialect.Rebind(
		`INSERT INTO group_capabilities (group_id, capability)
         VALUES (?, ?)
         ON CONFLICT (group_id, capability) DO NOTHING`)

	if _, err := r.db.ExecContext(ctx, query, groupID, string(c)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) list(ctx context.Context, query string, args ...any) ([]models.Group, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Public, &g.Private, &g.Pending, &g.AllAccess); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	// rows must be closed before the next query on a single-connection pool
	rows.Close()

	if err := r.loadCapabilities(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLRepository) loadCapabilities(ctx context.Context, groups []models.Group) error {
	if len(groups) == 0 {
		return nil
	}

	index := make(map[int64]int, len(groups))
	args := make([]any, 0, len(groups))
	for i, g := range groups {
		index[g.ID] = i
		args = append(args, g.ID)
	}

	query := `SELECT group_id, capability FROM group_capabilities
 WHERE group_id IN (` + strings.TrimSuffix(strings.Repeat("?,", len(args)), ",") + `)
 ORDER BY group_id, capability`

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var gid int64
		var c string
		if err := rows.Scan(&gid, &c); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if i, ok := index[gid]; ok {
			groups[i].Capabilities = append(groups[i].Capabilities, models.Capability(c))
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
