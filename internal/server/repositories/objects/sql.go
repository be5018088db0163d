package objects

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

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

const selectObjects = `SELECT o.id, o.type, o.dhash, o.upload_time, o.last_seen,
       f.file_name, f.file_size, f.file_type, f.md5, f.sha1, f.sha256, f.sha512, f.crc32,
       c.family, c.config_type, c.cfg,
       b.blob_name, b.blob_type, b.blob_size, b.content
  FROM objects o
  LEFT JOIN files f ON f.object_id = o.id
  LEFT JOIN configs c ON c.object_id = o.id
  LEFT JOIN text_blobs b ON b.object_id = o.id`

func (r *SQLRepository) Insert(ctx context.Context, o *models.Object) (bool, error) {
	query := r.dialect.Rebind(
		`INSERT INTO objects (type, dhash, upload_time, last_seen)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (dhash) DO NOTHING
         RETURNING id`)

	err := r.db.QueryRowContext(ctx, query, string(o.Type), o.DHash, o.UploadTime, o.LastSeen).Scan(&o.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

func (r *SQLRepository) InsertFile(ctx context.Context, objectID int64, f *models.File) error {
	query := r.dialect.Rebind(
		`INSERT INTO files (object_id, file_name, file_size, file_type, md5, sha1, sha256, sha512, crc32)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	if _, err := r.db.ExecContext(ctx, query,
		objectID, f.Name, f.Size, f.Type, f.MD5, f.SHA1, f.SHA256, f.SHA512, f.CRC32); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) InsertConfig(ctx context.Context, objectID int64, c *models.Config) error {
	cfg, err := json.Marshal(c.Cfg)
	if err != nil {
		return fmt.Errorf("encode cfg: %w", err)
	}

	query := r.dialect.Rebind(
		`INSERT INTO configs (object_id, family, config_type, cfg)
         VALUES (?, ?, ?, ?)`)

	if _, err := r.db.ExecContext(ctx, query, objectID, c.Family, c.ConfigType, string(cfg)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) InsertTextBlob(ctx context.Context, objectID int64, b *models.TextBlob) error {
	query := r.dialect.Rebind(
		`INSERT INTO text_blobs (object_id, blob_name, blob_type, blob_size, content)
         VALUES (?, ?, ?, ?, ?)`)

	if _, err := r.db.ExecContext(ctx, query, objectID, b.Name, b.Type, b.Size, b.Content); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) GetByDHash(ctx context.Context, dhash string) (*models.Object, error) {
	query := r.dialect.Rebind(selectObjects + ` WHERE o.dhash = ?`)

	o, err := scanObject(r.db.QueryRowContext(ctx, query, dhash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return o, nil
}

// FindVisible looks an object up by dhash, restricted to type t unless t is
// the generic type, and to rows matching visibility.
func (r *SQLRepository) FindVisible(ctx context.Context, t models.ObjectType, dhash string, visibility dbx.Predicate) (*models.Object, error) {
	where := dbx.And(dbx.Predicate{SQL: "o.dhash = ?", Args: []any{dhash}}, typePredicate(t), visibility)
	query := r.dialect.Rebind(selectObjects + ` WHERE ` + where.SQL)

	o, err := scanObject(r.db.QueryRowContext(ctx, query, where.Args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return o, nil
}

func (r *SQLRepository) List(ctx context.Context, q ListQuery) ([]models.Object, error) {
	preds := []dbx.Predicate{typePredicate(q.Type), q.Where}
	if q.BeforeID > 0 {
		preds = append(preds, dbx.Predicate{SQL: "o.id < ?", Args: []any{q.BeforeID}})
	}
	where := dbx.And(preds...)

	var b strings.Builder
	b.WriteString(selectObjects)
	args := where.Args
	if !where.Empty() {
		b.WriteString(" WHERE ")
		b.WriteString(where.SQL)
	}
	b.WriteString(" ORDER BY o.id DESC LIMIT ?")
	args = append(args, q.Limit)
	if q.Offset > 0 {
		b.WriteString(" OFFSET ?")
		args = append(args, q.Offset)
	}

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(b.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Object
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) Touch(ctx context.Context, objectID int64, at time.Time) error {
	query := r.dialect.Rebind(`UPDATE objects SET last_seen = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, at, objectID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) SetUploadTime(ctx context.Context, objectID int64, at time.Time) error {
	query := r.dialect.Rebind(`UPDATE objects SET upload_time = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, at, objectID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ConfigStats groups visible configs by family. A zero since means all time.
func (r *SQLRepository) ConfigStats(ctx context.Context, since time.Time, visibility dbx.Predicate) ([]models.ConfigStat, error) {
	preds := []dbx.Predicate{visibility}
	if !since.IsZero() {
		preds = append(preds, dbx.Predicate{SQL: "o.upload_time > ?", Args: []any{since}})
	}
	where := dbx.And(preds...)

	query := `SELECT c.family, COUNT(*), MAX(o.upload_time)
  FROM configs c
  JOIN objects o ON o.id = c.object_id`
	if !where.Empty() {
		query += " WHERE " + where.SQL
	}
	query += " GROUP BY c.family ORDER BY c.family"

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), where.Args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.ConfigStat
	for rows.Next() {
		var s models.ConfigStat
		var last dbx.Timestamp
		if err := rows.Scan(&s.Family, &s.Count, &last); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		s.LastUpload = last.Time
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func typePredicate(t models.ObjectType) dbx.Predicate {
	if t == "" || t == models.TypeObject {
		return dbx.Predicate{}
	}
	return dbx.Predicate{SQL: "o.type = ?", Args: []any{string(t)}}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObject(row rowScanner) (*models.Object, error) {
	var (
		o                                models.Object
		typ                              string
		uploadTime, lastSeen             dbx.Timestamp
		fileName, fileType               sql.NullString
		md5, sha1, sha256, sha512, crc32 sql.NullString
		fileSize, blobSize               sql.NullInt64
		family, configType, cfg          sql.NullString
		blobName, blobType, content      sql.NullString
	)

	if err := row.Scan(&o.ID, &typ, &o.DHash, &uploadTime, &lastSeen,
		&fileName, &fileSize, &fileType, &md5, &sha1, &sha256, &sha512, &crc32,
		&family, &configType, &cfg,
		&blobName, &blobType, &blobSize, &content); err != nil {
		return nil, err
	}

	o.Type = models.ObjectType(typ)
	o.UploadTime = uploadTime.Time
	o.LastSeen = lastSeen.Time

	switch o.Type {
	case models.TypeFile:
		if fileName.Valid {
			o.File = &models.File{
				Name:   fileName.String,
				Size:   fileSize.Int64,
				Type:   fileType.String,
				MD5:    md5.String,
				SHA1:   sha1.String,
				SHA256: sha256.String,
				SHA512: sha512.String,
				CRC32:  crc32.String,
			}
		}
	case models.TypeConfig:
		if family.Valid {
			c := &models.Config{Family: family.String, ConfigType: configType.String}
			if cfg.Valid && cfg.String != "" {
				if err := json.Unmarshal([]byte(cfg.String), &c.Cfg); err != nil {
					return nil, fmt.Errorf("decode cfg: %w", err)
				}
			}
			o.Config = c
		}
	case models.TypeTextBlob:
		if blobName.Valid {
			o.TextBlob = &models.TextBlob{
				Name:    blobName.String,
				Type:    blobType.String,
				Size:    blobSize.Int64,
				Content: content.String,
			}
		}
	}
	return &o, nil
}
