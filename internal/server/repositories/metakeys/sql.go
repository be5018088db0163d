package metakeys

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

// UpsertDefinition replaces every attribute of the definition wholesale.
func (r *SQLRepository) UpsertDefinition(ctx context.Context, d *models.MetakeyDefinition) error {
	query := r.dialect.Rebind(
		`INSERT INTO metakey_definitions (key, label, description, url_template, hidden)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (key) DO UPDATE SET
             label = excluded.label,
             description = excluded.description,
             url_template = excluded.url_template,
             hidden = excluded.hidden`)

	if _, err := r.db.ExecContext(ctx, query, d.Key, d.Label, d.Description, d.URLTemplate, d.Hidden); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) GetDefinition(ctx context.Context, key string) (*models.MetakeyDefinition, error) {
	query := r.dialect.Rebind(
		`SELECT key, label, description, url_template, hidden
           FROM metakey_definitions
          WHERE key = ?`)

	var d models.MetakeyDefinition
	err := r.db.QueryRowContext(ctx, query, key).Scan(&d.Key, &d.Label, &d.Description, &d.URLTemplate, &d.Hidden)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &d, nil
}

func (r *SQLRepository) ListDefinitions(ctx context.Context) ([]models.MetakeyDefinition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, label, description, url_template, hidden
           FROM metakey_definitions
          ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.MetakeyDefinition{}
	for rows.Next() {
		var d models.MetakeyDefinition
		if err := rows.Scan(&d.Key, &d.Label, &d.Description, &d.URLTemplate, &d.Hidden); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) UpsertPermission(ctx context.Context, p *models.MetakeyPermission) error {
	query := r.dialect.Rebind(
		`INSERT INTO metakey_permissions (key, group_id, can_read, can_set)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (key, group_id) DO UPDATE SET
             can_read = excluded.can_read,
             can_set = excluded.can_set`)

	if _, err := r.db.ExecContext(ctx, query, p.Key, p.GroupID, p.CanRead, p.CanSet); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) DeletePermission(ctx context.Context, key string, groupID int64) error {
	query := r.dialect.Rebind(`DELETE FROM metakey_permissions WHERE key = ? AND group_id = ?`)

	res, err := r.db.ExecContext(ctx, query, key, groupID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLRepository) ListPermissions(ctx context.Context, key string) ([]models.MetakeyPermission, error) {
	return r.listPermissions(ctx, "mp.key = ?", key)
}

func (r *SQLRepository) PermissionsByKey(ctx context.Context, groupIDs []int64) (map[string][]models.MetakeyPermission, error) {
	out := map[string][]models.MetakeyPermission{}
	if len(groupIDs) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(groupIDs))
	for _, id := range groupIDs {
		args = append(args, id)
	}
	perms, err := r.listPermissions(ctx,
		"mp.group_id IN ("+strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")+")", args...)
	if err != nil {
		return nil, err
	}
	for _, p := range perms {
		out[p.Key] = append(out[p.Key], p)
	}
	return out, nil
}

func (r *SQLRepository) listPermissions(ctx context.Context, where string, args ...any) ([]models.MetakeyPermission, error) {
	query := `SELECT mp.key, mp.group_id, g.name, mp.can_read, mp.can_set
  FROM metakey_permissions mp
  JOIN access_groups g ON g.id = mp.group_id
 WHERE ` + where + `
 ORDER BY mp.key, g.name`

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.MetakeyPermission{}
	for rows.Next() {
		var p models.MetakeyPermission
		if err := rows.Scan(&p.Key, &p.GroupID, &p.GroupName, &p.CanRead, &p.CanSet); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) AddValue(ctx context.Context, objectID int64, key, value string) (bool, error) {
	query := r.dialect.Rebind(
		`INSERT INTO metakeys (object_id, key, value)
         VALUES (?, ?, ?)
         ON CONFLICT (object_id, key, value) DO NOTHING
         RETURNING id`)

	var id int64
	err := r.db.QueryRowContext(ctx, query, objectID, key, value).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

func (r *SQLRepository) ListValues(ctx context.Context, objectID int64) ([]models.Metakey, error) {
	query := r.dialect.Rebind(
		`SELECT key, value FROM metakeys
          WHERE object_id = ?
          ORDER BY key, id`)

	rows, err := r.db.QueryContext(ctx, query, objectID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.Metakey{}
	for rows.Next() {
		var m models.Metakey
		if err := rows.Scan(&m.Key, &m.Value); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
