package services

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/dmitrijs2005/artivault/internal/common"
	"github.com/dmitrijs2005/artivault/internal/dbx"
	"github.com/dmitrijs2005/artivault/internal/server/access"
	"github.com/dmitrijs2005/artivault/internal/server/blobs"
	"github.com/dmitrijs2005/artivault/internal/server/events"
	"github.com/dmitrijs2005/artivault/internal/server/models"
	"github.com/dmitrijs2005/artivault/internal/server/repositories/metakeys"
	"github.com/dmitrijs2005/artivault/internal/server/repositories/objects"
)

// RootParent as the parent identifier means "no parent".
const RootParent = "root"

const (
	ConfigTypeStatic  = "static"
	ConfigTypeDynamic = "dynamic"
)

// FilePayload is an uploaded file.
type FilePayload struct {
	Name    string
	Content []byte
}

// TextBlobPayload is an uploaded text blob.
type TextBlobPayload struct {
	Name    string
	Type    string
	Content string
}

// UploadRequest carries exactly one payload matching Type.
// UploadTime may only be set by the admin in maintenance mode.
type UploadRequest struct {
	Type       models.ObjectType
	File       *FilePayload
	Config     *models.Config
	TextBlob   *TextBlobPayload
	Parent     string
	UploadAs   string
	Metakeys   []models.Metakey
	UploadTime *time.Time
}

// prepared is a validated upload with its content hash computed.
type prepared struct {
	object  models.Object
	payload []byte // raw file bytes, nil for other variants
}

// prepare validates the payload and derives the dhash and variant metadata.
func prepare(req *UploadRequest) (*prepared, error) {
	switch req.Type {
	case models.TypeFile:
		if req.File == nil {
			return nil, common.BadRequestf("file payload is required")
		}
		d := digestFile(req.File.Content)
		name := strings.TrimSpace(req.File.Name)
		if name == "" {
			name = d.sha256
		}
		return &prepared{
			object: models.Object{
				Type:  models.TypeFile,
				DHash: d.sha256,
				File: &models.File{
					Name:   name,
					Size:   int64(len(req.File.Content)),
					Type:   d.contentType,
					MD5:    d.md5,
					SHA1:   d.sha1,
					SHA256: d.sha256,
					SHA512: d.sha512,
					CRC32:  d.crc32,
				},
			},
			payload: req.File.Content,
		}, nil

	case models.TypeConfig:
		c := req.Config
		if c == nil || c.Cfg == nil {
			return nil, common.BadRequestf("cfg is required")
		}
		family := strings.TrimSpace(c.Family)
		if family == "" {
			return nil, common.BadRequestf("family is required")
		}
		configType := c.ConfigType
		if configType == "" {
			configType = ConfigTypeStatic
		}
		if configType != ConfigTypeStatic && configType != ConfigTypeDynamic {
			return nil, common.BadRequestf("config_type must be %q or %q", ConfigTypeStatic, ConfigTypeDynamic)
		}
		canonical, err := canonicalJSON(c.Cfg)
		if err != nil {
			return nil, common.BadRequestf("cfg is not valid JSON: %v", err)
		}
		return &prepared{object: models.Object{
			Type:   models.TypeConfig,
			DHash:  sha256Hex(canonical),
			Config: &models.Config{Family: family, ConfigType: configType, Cfg: c.Cfg},
		}}, nil

	case models.TypeTextBlob:
		b := req.TextBlob
		if b == nil {
			return nil, common.BadRequestf("text blob payload is required")
		}
		if strings.TrimSpace(b.Name) == "" || strings.TrimSpace(b.Type) == "" {
			return nil, common.BadRequestf("blob_name and blob_type are required")
		}
		return &prepared{object: models.Object{
			Type:  models.TypeTextBlob,
			DHash: sha256Hex([]byte(b.Content)),
			TextBlob: &models.TextBlob{
				Name:    b.Name,
				Type:    b.Type,
				Size:    int64(len(b.Content)),
				Content: b.Content,
			},
		}}, nil
	}

	return nil, common.BadRequestf("objects of type %q can't be uploaded directly", req.Type)
}

// canOverrideUploadTime reports whether id may set upload_time explicitly.
func (s *ObjectService) canOverrideUploadTime(id *access.Identity) bool {
	return s.config.MaintenanceMode && id.User.Login == s.config.AdminLogin
}

// Upload stores a new object or refreshes an existing one with the same
// content, then links it, tags it and shares it. All checks run before the
// first write; events are published after commit.
func (s *ObjectService) Upload(ctx context.Context, id *access.Identity, req *UploadRequest) (*models.Object, bool, error) {
	p, err := prepare(req)
	if err != nil {
		return nil, false, err
	}
	if req.UploadTime != nil && !s.canOverrideUploadTime(id) {
		return nil, false, common.Forbiddenf("upload_time can only be set by the admin in maintenance mode")
	}

	var (
		result *models.Object
		isNew  bool
	)
	now := s.clock.Now()

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		objRepo := s.repomanager.Objects(tx)
		relRepo := s.repomanager.Relations(tx)
		metaRepo := s.repomanager.Metakeys(tx)
		grantRepo := s.repomanager.Grants(tx)
		groupRepo := s.repomanager.Groups(tx)

		existing, err := lookupSameType(ctx, objRepo, p.object.Type, p.object.DHash)
		if err != nil {
			return err
		}

		var parent *models.Object
		if req.Parent != "" && req.Parent != RootParent {
			if !id.HasRights(models.CapAddingParents) {
				return common.Forbiddenf("You are not permitted to link with parent")
			}
			parent, err = objRepo.FindVisible(ctx, models.TypeObject, req.Parent, visible(id))
			if err != nil {
				return notFound(err, "Parent object not found")
			}
			if existing != nil {
				if err := checkLink(ctx, relRepo, parent.ID, existing.ID); err != nil {
					return err
				}
			}
		}

		tags, err := s.checkSettable(ctx, metaRepo, id, req.Metakeys)
		if err != nil {
			return err
		}

		targets, err := access.ResolveShareTargets(ctx, id, req.UploadAs, groupRepo.GetByName)
		if err != nil {
			return err
		}

		var allAccess []models.Group
		if existing == nil {
			if allAccess, err = groupRepo.ListAllAccess(ctx); err != nil {
				return err
			}
		}

		if existing != nil {
			result = existing
			if err := objRepo.Touch(ctx, existing.ID, now); err != nil {
				return err
			}
			result.LastSeen = now
		} else {
			result, isNew, err = s.insert(ctx, objRepo, p, now)
			if err != nil {
				return err
			}
		}

		if req.UploadTime != nil {
			if err := objRepo.SetUploadTime(ctx, result.ID, req.UploadTime.UTC()); err != nil {
				return err
			}
			result.UploadTime = req.UploadTime.UTC()
		}

		for _, tag := range tags {
			if _, err := metaRepo.AddValue(ctx, result.ID, tag.Key, tag.Value); err != nil {
				return err
			}
		}

		if parent != nil {
			if _, err := relRepo.Add(ctx, parent.ID, result.ID, now); err != nil {
				return err
			}
			s.logger.Info(ctx, "relation added", "parent", parent.DHash, "child", result.DHash)
		}

		grant := models.AccessGrant{
			Reason:          models.ReasonAdded,
			ObjectID:        result.ID,
			RelatedObjectID: result.ID,
			RelatedUserID:   id.User.ID,
			AccessTime:      now,
		}
		for _, g := range append(targets, allAccess...) {
			grant.GroupID = g.ID
			if _, err := grantRepo.Grant(ctx, grant); err != nil {
				return err
			}
		}

		if isNew && p.payload != nil && s.blobs != nil {
			if err := s.blobs.Put(ctx, blobs.FileKey(result.File.SHA256), p.payload, result.File.Type); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	kind := events.Reuploaded
	if isNew {
		kind = events.Created
	}
	s.events.Publish(ctx, events.Event{Kind: kind, Object: *result})

	s.logger.Info(ctx, string(result.Type)+" added", "dhash", result.DHash, "is_new", isNew, "login", id.User.Login)
	return result, isNew, nil
}

// lookupSameType returns the object stored under dhash, nil when there is
// none, or a conflict when it belongs to another variant.
func lookupSameType(ctx context.Context, repo objects.Repository, t models.ObjectType, dhash string) (*models.Object, error) {
	o, err := repo.GetByDHash(ctx, dhash)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if o.Type != t {
		return nil, common.Conflictf("Conflicting object types")
	}
	return o, nil
}

// insert creates the object and its variant row. When a concurrent upload
// wins the unique dhash constraint the winning row is returned instead.
func (s *ObjectService) insert(ctx context.Context, repo objects.Repository, p *prepared, now time.Time) (*models.Object, bool, error) {
	o := p.object
	o.UploadTime, o.LastSeen = now, now

	created, err := repo.Insert(ctx, &o)
	if err != nil {
		return nil, false, err
	}
	if !created {
		winner, err := lookupSameType(ctx, repo, o.Type, o.DHash)
		if err != nil {
			return nil, false, err
		}
		if winner == nil {
			return nil, false, errors.Wrap(common.ErrInternal, "object vanished after insert conflict")
		}
		if err := repo.Touch(ctx, winner.ID, now); err != nil {
			return nil, false, err
		}
		winner.LastSeen = now
		return winner, false, nil
	}

	switch o.Type {
	case models.TypeFile:
		err = repo.InsertFile(ctx, o.ID, o.File)
	case models.TypeConfig:
		err = repo.InsertConfig(ctx, o.ID, o.Config)
	case models.TypeTextBlob:
		err = repo.InsertTextBlob(ctx, o.ID, o.TextBlob)
	}
	if err != nil {
		return nil, false, err
	}
	return &o, true, nil
}

// checkSettable validates that every tag names a defined key id may set.
func (s *ObjectService) checkSettable(ctx context.Context, repo metakeys.Repository, id *access.Identity, tags []models.Metakey) ([]models.Metakey, error) {
	out := make([]models.Metakey, 0, len(tags))
	for _, tag := range tags {
		key := models.NormalizeKey(tag.Key)
		if tag.Value == "" {
			return nil, common.BadRequestf("value of metakey '%s' is empty", key)
		}
		if err := ensureSettable(ctx, repo, id, key); err != nil {
			return nil, err
		}
		out = append(out, models.Metakey{Key: key, Value: tag.Value})
	}
	return out, nil
}
