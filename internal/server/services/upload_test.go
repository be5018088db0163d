package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/artivault/internal/common"
	"github.com/dmitrijs2005/artivault/internal/server/blobs"
	"github.com/dmitrijs2005/artivault/internal/server/events"
	"github.com/dmitrijs2005/artivault/internal/server/models"
)

func TestPrepare_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  UploadRequest
	}{
		{"generic object", UploadRequest{Type: models.TypeObject}},
		{"file without payload", UploadRequest{Type: models.TypeFile}},
		{"config without cfg", UploadRequest{Type: models.TypeConfig, Config: &models.Config{Family: "x"}}},
		{"config without family", UploadRequest{Type: models.TypeConfig, Config: &models.Config{Cfg: map[string]any{"a": 1}}}},
		{"config with bad type", UploadRequest{Type: models.TypeConfig, Config: &models.Config{Family: "x", ConfigType: "weird", Cfg: map[string]any{}}}},
		{"blob without name", UploadRequest{Type: models.TypeTextBlob, TextBlob: &TextBlobPayload{Type: "t", Content: "c"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := prepare(&tt.req)
			assert.True(t, errors.Is(err, common.ErrBadRequest), "got %v", err)
		})
	}
}

func TestUpload_TextBlob_NewThenReupload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, root := f.as(t, "alice"), f.as(t, "bob"), f.as(t, "root")

	o, isNew, err := f.objects.Upload(ctx, alice, &UploadRequest{
		Type:     models.TypeTextBlob,
		TextBlob: &TextBlobPayload{Name: "run.ps1", Type: "script", Content: "hello"},
	})
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, sha256Hex([]byte("hello")), o.DHash)
	assert.Equal(t, int64(5), o.TextBlob.Size)
	assert.True(t, f.clock.now.Equal(o.UploadTime))

	_, err = f.objects.Get(ctx, alice, models.TypeTextBlob, o.DHash)
	require.NoError(t, err)
	_, err = f.objects.Get(ctx, root, models.TypeObject, o.DHash)
	require.NoError(t, err, "all-access groups see new objects")
	_, err = f.objects.Get(ctx, bob, models.TypeTextBlob, o.DHash)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	firstSeen := f.clock.now
	f.clock.advance(time.Hour)

	again, isNew, err := f.objects.Upload(ctx, bob, &UploadRequest{
		Type:     models.TypeTextBlob,
		TextBlob: &TextBlobPayload{Name: "other.ps1", Type: "script", Content: "hello"},
	})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, o.DHash, again.DHash)
	assert.Equal(t, "run.ps1", again.TextBlob.Name, "the stored payload is kept")
	assert.True(t, firstSeen.Equal(again.UploadTime))
	assert.True(t, f.clock.now.Equal(again.LastSeen))

	got, err := f.objects.Get(ctx, bob, models.TypeTextBlob, o.DHash)
	require.NoError(t, err, "re-uploading shares the object with the uploader")
	assert.True(t, f.clock.now.Equal(got.LastSeen))

	require.Len(t, f.events, 2)
	assert.Equal(t, events.Created, f.events[0].Kind)
	assert.Equal(t, events.Reuploaded, f.events[1].Kind)
}

func TestUpload_ConflictingVariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.as(t, "alice")

	f.uploadBlob(t, alice, "a", "MZ")

	_, _, err := f.objects.Upload(ctx, alice, &UploadRequest{
		Type: models.TypeFile,
		File: &FilePayload{Name: "a.exe", Content: []byte("MZ")},
	})
	assert.True(t, errors.Is(err, common.ErrConflict), "got %v", err)
}

func TestUpload_File_DigestsAndPayload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.as(t, "alice")

	o, isNew, err := f.objects.Upload(ctx, alice, &UploadRequest{
		Type: models.TypeFile,
		File: &FilePayload{Name: "abc.txt", Content: []byte("abc")},
	})
	require.NoError(t, err)
	require.True(t, isNew)
	assert.Equal(t, models.File{
		Name:   "abc.txt",
		Size:   3,
		Type:   "text/plain; charset=utf-8",
		MD5:    "900150983cd24fb0d6963f7d28e17f72",
		SHA1:   "a9993e364706816aba3e25717850c26c9cd0d89d",
		SHA256: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		SHA512: "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f",
		CRC32:  "352441c2",
	}, *o.File)

	payload, ok := f.store.Get(blobs.FileKey(o.File.SHA256))
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), payload)

	url, err := f.objects.FileDownloadURL(ctx, alice, o.DHash)
	require.NoError(t, err)
	assert.Equal(t, "memory://files/"+o.File.SHA256, url)

	_, err = f.objects.FileDownloadURL(ctx, f.as(t, "bob"), o.DHash)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	f.objects.blobs = nil
	_, err = f.objects.FileDownloadURL(ctx, alice, o.DHash)
	assert.True(t, errors.Is(err, common.ErrBadRequest))
}

func TestUpload_Config_CanonicalHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.as(t, "alice")

	first, isNew, err := f.objects.Upload(ctx, alice, &UploadRequest{
		Type:   models.TypeConfig,
		Config: &models.Config{Family: "emotet", Cfg: map[string]any{"urls": []any{"a", "b"}, "key": "k"}},
	})
	require.NoError(t, err)
	require.True(t, isNew)
	assert.Equal(t, ConfigTypeStatic, first.Config.ConfigType)
	assert.Equal(t, sha256Hex([]byte(`{"key":"k","urls":["a","b"]}`)), first.DHash)

	second, isNew, err := f.objects.Upload(ctx, alice, &UploadRequest{
		Type:   models.TypeConfig,
		Config: &models.Config{Family: "emotet", ConfigType: ConfigTypeDynamic, Cfg: map[string]any{"key": "k", "urls": []any{"a", "b"}}},
	})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, first.DHash, second.DHash)
	assert.Equal(t, "k", second.Config.Cfg["key"])
}

func TestUpload_Parent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.as(t, "alice")
	parent := f.uploadBlob(t, alice, "dropper", "parent")

	req := &UploadRequest{
		Type:     models.TypeTextBlob,
		TextBlob: &TextBlobPayload{Name: "payload", Type: "script", Content: "child"},
		Parent:   parent.DHash,
	}
	_, _, err := f.objects.Upload(ctx, alice, req)
	assert.True(t, errors.Is(err, common.ErrForbidden), "got %v", err)

	f.grant(t, "analysts", models.CapAddingParents)
	alice = f.as(t, "alice")

	_, _, err = f.objects.Upload(ctx, alice, &UploadRequest{
		Type:     models.TypeTextBlob,
		TextBlob: &TextBlobPayload{Name: "payload", Type: "script", Content: "child"},
		Parent:   "0000",
	})
	assert.True(t, errors.Is(err, common.ErrNotFound), "got %v", err)

	child, _, err := f.objects.Upload(ctx, alice, req)
	require.NoError(t, err)

	got, err := f.objects.Get(ctx, alice, models.TypeTextBlob, child.DHash)
	require.NoError(t, err)
	require.Len(t, got.Parents, 1)
	assert.Equal(t, parent.DHash, got.Parents[0].DHash)

	rel, err := f.objects.Relations(ctx, alice, models.TypeObject, parent.DHash)
	require.NoError(t, err)
	require.Len(t, rel.Children, 1)
	assert.Equal(t, child.DHash, rel.Children[0].DHash)
	assert.Empty(t, rel.Parents)

	_, _, err = f.objects.Upload(ctx, alice, &UploadRequest{
		Type:     models.TypeTextBlob,
		TextBlob: &TextBlobPayload{Name: "loop", Type: "script", Content: "parent"},
		Parent:   child.DHash,
	})
	assert.True(t, errors.Is(err, common.ErrBadRequest), "re-uploading the parent under its child closes a cycle: %v", err)

	orphan, _, err := f.objects.Upload(ctx, alice, &UploadRequest{
		Type:     models.TypeTextBlob,
		TextBlob: &TextBlobPayload{Name: "orphan", Type: "script", Content: "orphan"},
		Parent:   RootParent,
	})
	require.NoError(t, err)
	rel, err = f.objects.Relations(ctx, alice, models.TypeTextBlob, orphan.DHash)
	require.NoError(t, err)
	assert.Empty(t, rel.Parents)
}

func TestUpload_UploadAs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.as(t, "alice"), f.as(t, "bob")

	blob := func(content, uploadAs string) *UploadRequest {
		return &UploadRequest{
			Type:     models.TypeTextBlob,
			TextBlob: &TextBlobPayload{Name: "n", Type: "t", Content: content},
			UploadAs: uploadAs,
		}
	}

	_, _, err := f.objects.Upload(ctx, alice, blob("x", "partners"))
	assert.True(t, errors.Is(err, common.ErrNotFound), "non-members need sharing_objects")

	_, _, err = f.objects.Upload(ctx, alice, blob("x", "ghosts"))
	assert.True(t, errors.Is(err, common.ErrNotFound))

	o, _, err := f.objects.Upload(ctx, alice, blob("x", "analysts"))
	require.NoError(t, err)
	f.grant(t, "everyone", models.CapSharingObjects)
	shares, err := f.objects.Shares(ctx, f.as(t, "root"), models.TypeTextBlob, o.DHash)
	require.NoError(t, err)
	var names []string
	for _, s := range shares {
		names = append(names, s.GroupName)
	}
	assert.ElementsMatch(t, []string{"alice", "analysts", "everyone"}, names)

	f.grant(t, "analysts", models.CapSharingObjects)
	alice = f.as(t, "alice")

	_, _, err = f.objects.Upload(ctx, alice, blob("y", "embargo"))
	assert.True(t, errors.Is(err, common.ErrNotFound), "pending groups can't receive uploads")

	o, _, err = f.objects.Upload(ctx, alice, blob("y", "partners"))
	require.NoError(t, err)
	_, err = f.objects.Get(ctx, bob, models.TypeTextBlob, o.DHash)
	require.NoError(t, err)
}

func TestUpload_AllShareSkipsPublicGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.uploadBlob(t, f.as(t, "alice"), "n", "private")
	f.grant(t, "everyone", models.CapSharingObjects)

	shares, err := f.objects.Shares(ctx, f.as(t, "root"), models.TypeTextBlob, o.DHash)
	require.NoError(t, err)
	require.Len(t, shares, 3)
	for _, s := range shares {
		assert.NotEqual(t, PublicGroup, s.GroupName)
	}
}

func TestUpload_Metakeys_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, root := f.as(t, "alice"), f.as(t, "root")

	req := &UploadRequest{
		Type:     models.TypeTextBlob,
		TextBlob: &TextBlobPayload{Name: "n", Type: "t", Content: "tagged"},
		Metakeys: []models.Metakey{{Key: "Campaign", Value: "apt1"}},
	}

	_, _, err := f.objects.Upload(ctx, alice, req)
	assert.True(t, errors.Is(err, common.ErrNotFound), "undefined key")
	_, err = f.objects.Get(ctx, root, models.TypeObject, sha256Hex([]byte("tagged")))
	assert.True(t, errors.Is(err, common.ErrNotFound), "nothing is written when a check fails")

	_, err = f.admin.DefineMetakey(ctx, models.MetakeyDefinition{Key: "campaign"})
	require.NoError(t, err)

	_, _, err = f.objects.Upload(ctx, alice, req)
	assert.True(t, errors.Is(err, common.ErrNotFound), "key without set permission")

	require.NoError(t, f.admin.PermitMetakey(ctx, "campaign", "analysts", true, true))

	o, _, err := f.objects.Upload(ctx, alice, req)
	require.NoError(t, err)

	values, err := f.attrs.Get(ctx, alice, models.TypeTextBlob, o.DHash, false)
	require.NoError(t, err)
	assert.Equal(t, []models.Metakey{{Key: "campaign", Value: "apt1"}}, values)
}

func TestUpload_UploadTimeOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.admin.CreateUser(ctx, "admin")
	require.NoError(t, err)

	at := time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)
	req := &UploadRequest{
		Type:       models.TypeTextBlob,
		TextBlob:   &TextBlobPayload{Name: "n", Type: "t", Content: "old"},
		UploadTime: &at,
	}

	_, _, err = f.objects.Upload(ctx, f.as(t, "admin"), req)
	assert.True(t, errors.Is(err, common.ErrForbidden), "outside maintenance mode")

	f.cfg.MaintenanceMode = true
	_, _, err = f.objects.Upload(ctx, f.as(t, "alice"), req)
	assert.True(t, errors.Is(err, common.ErrForbidden), "only the admin login")

	o, _, err := f.objects.Upload(ctx, f.as(t, "admin"), req)
	require.NoError(t, err)
	assert.True(t, at.Equal(o.UploadTime))

	got, err := f.objects.Get(ctx, f.as(t, "admin"), models.TypeTextBlob, o.DHash)
	require.NoError(t, err)
	assert.True(t, at.Equal(got.UploadTime))
}
