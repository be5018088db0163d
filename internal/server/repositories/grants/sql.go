package grants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

func (r *SQLRepository) Grant(ctx context.Context, g models.AccessGrant) (bool, error) {
	query := r.dialect.Rebind(
		`INSERT INTO permissions (object_id, group_id, reason_type, related_object_id, related_user_id, access_time)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (object_id, group_id) DO NOTHING
         RETURNING object_id`)

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		g.ObjectID, g.GroupID, string(g.Reason), nullID(g.RelatedObjectID), nullID(g.RelatedUserID), g.AccessTime).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

func (r *SQLRepository) ListByObject(ctx context.Context, objectID int64) ([]models.AccessGrant, error) {
	query := r.dialect.Rebind(
		`SELECT p.object_id, p.group_id, g.name, p.reason_type, p.related_object_id, p.related_user_id, p.access_time
           FROM permissions p
           JOIN access_groups g ON g.id = p.group_id
          WHERE p.object_id = ?
          ORDER BY g.name`)

	rows, err := r.db.QueryContext(ctx, query, objectID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.AccessGrant
	for rows.Next() {
		var g models.AccessGrant
		var reason string
		var relObj, relUser sql.NullInt64
		var at dbx.Timestamp
		if err := rows.Scan(&g.ObjectID, &g.GroupID, &g.GroupName, &reason, &relObj, &relUser, &at); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		g.Reason = models.GrantReason(reason)
		g.RelatedObjectID = relObj.Int64
		g.RelatedUserID = relUser.Int64
		g.AccessTime = at.Time
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
