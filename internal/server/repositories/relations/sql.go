package relations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *SQLRepository) Add(ctx context.Context, parentID, childID int64, at time.Time) (bool, error) {
	query := r.dialect.Rebind(
		`INSERT INTO relations (parent_id, child_id, creation_time)
         VALUES (?, ?, ?)
         ON CONFLICT (parent_id, child_id) DO NOTHING
         RETURNING parent_id`)

	var id int64
	err := r.db.QueryRowContext(ctx, query, parentID, childID, at).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

func (r *SQLRepository) IsAncestor(ctx context.Context, ancestorID, objectID int64) (bool, error) {
	query := r.dialect.Rebind(
		`WITH RECURSIVE ancestors (id) AS (
             SELECT parent_id FROM relations WHERE child_id = ?
             UNION
             SELECT r.parent_id FROM relations r JOIN ancestors a ON r.child_id = a.id
         )
         SELECT COUNT(*) FROM ancestors WHERE id = ?`)

	var n int64
	if err := r.db.QueryRowContext(ctx, query, objectID, ancestorID).Scan(&n); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *SQLRepository) Parents(ctx context.Context, objectID int64, visibility dbx.Predicate) ([]models.ObjectRef, error) {
	return r.related(ctx, "r.parent_id", "r.child_id", objectID, visibility)
}

func (r *SQLRepository) Children(ctx context.Context, objectID int64, visibility dbx.Predicate) ([]models.ObjectRef, error) {
	return r.related(ctx, "r.child_id", "r.parent_id", objectID, visibility)
}

func (r *SQLRepository) related(ctx context.Context, relatedCol, selfCol string, objectID int64, visibility dbx.Predicate) ([]models.ObjectRef, error) {
	where := dbx.And(dbx.Predicate{SQL: selfCol + " = ?", Args: []any{objectID}}, visibility)
	query := `SELECT o.type, o.dhash, o.upload_time
  FROM relations r
  JOIN objects o ON o.id = ` + relatedCol + `
 WHERE ` + where.SQL + `
 ORDER BY o.id DESC`

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), where.Args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.ObjectRef{}
	for rows.Next() {
		var ref models.ObjectRef
		var typ string
		var uploaded dbx.Timestamp
		if err := rows.Scan(&typ, &ref.DHash, &uploaded); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ref.Type = models.ObjectType(typ)
		ref.UploadTime = uploaded.Time
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
