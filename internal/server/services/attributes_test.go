package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/artivault/internal/common"
	"github.com/dmitrijs2005/artivault/internal/server/models"
)

func keys(defs []models.MetakeyDefinition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Key)
	}
	return out
}

func TestAttributes_AddAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.as(t, "alice"), f.as(t, "bob")

	_, err := f.admin.DefineMetakey(ctx, models.MetakeyDefinition{Key: "url", URLTemplate: "https://intel.example/?q=$value"})
	require.NoError(t, err)
	_, err = f.admin.DefineMetakey(ctx, models.MetakeyDefinition{Key: "karton", Hidden: true})
	require.NoError(t, err)
	require.NoError(t, f.admin.PermitMetakey(ctx, "url", "analysts", true, true))
	require.NoError(t, f.admin.PermitMetakey(ctx, "karton", "analysts", true, true))

	o := f.uploadBlob(t, alice, "n", "content")

	created, err := f.attrs.Add(ctx, alice, models.TypeTextBlob, o.DHash, "URL", "a b")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = f.attrs.Add(ctx, alice, models.TypeTextBlob, o.DHash, "url", "a b")
	require.NoError(t, err)
	assert.False(t, created, "duplicate value")

	_, err = f.attrs.Add(ctx, alice, models.TypeTextBlob, o.DHash, "karton", "task-1")
	require.NoError(t, err, "hidden keys can still be set")

	_, err = f.attrs.Add(ctx, alice, models.TypeTextBlob, o.DHash, "ghost", "x")
	assert.True(t, errors.Is(err, common.ErrNotFound))
	_, err = f.attrs.Add(ctx, alice, models.TypeTextBlob, o.DHash, "url", "")
	assert.True(t, errors.Is(err, common.ErrBadRequest))
	_, err = f.attrs.Add(ctx, bob, models.TypeTextBlob, o.DHash, "url", "x")
	assert.True(t, errors.Is(err, common.ErrNotFound), "object not visible")

	values, err := f.attrs.Get(ctx, alice, models.TypeTextBlob, o.DHash, false)
	require.NoError(t, err)
	assert.Equal(t, []models.Metakey{{Key: "url", Value: "a b", URL: "https://intel.example/?q=a+b"}}, values)

	_, err = f.attrs.Get(ctx, alice, models.TypeTextBlob, o.DHash, true)
	assert.True(t, errors.Is(err, common.ErrForbidden))

	f.grant(t, "analysts", models.CapReadingAllAttributes)
	values, err = f.attrs.Get(ctx, f.as(t, "alice"), models.TypeTextBlob, o.DHash, true)
	require.NoError(t, err)
	assert.Len(t, values, 2)

	_, err = f.attrs.Get(ctx, bob, models.TypeTextBlob, o.DHash, false)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestAttributes_AddingAllAttributes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.admin.DefineMetakey(ctx, models.MetakeyDefinition{Key: "tlp"})
	require.NoError(t, err)
	o := f.uploadBlob(t, f.as(t, "alice"), "n", "tlp")

	_, err = f.attrs.Add(ctx, f.as(t, "alice"), models.TypeTextBlob, o.DHash, "tlp", "amber")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	f.grant(t, "analysts", models.CapAddingAllAttributes)
	_, err = f.attrs.Add(ctx, f.as(t, "alice"), models.TypeTextBlob, o.DHash, "tlp", "amber")
	require.NoError(t, err)

	values, err := f.attrs.Get(ctx, f.as(t, "alice"), models.TypeTextBlob, o.DHash, false)
	require.NoError(t, err)
	assert.Empty(t, values, "setting a key doesn't make it readable")

	f.grant(t, "analysts", models.CapReadingAllAttributes)
	values, err = f.attrs.Get(ctx, f.as(t, "alice"), models.TypeTextBlob, o.DHash, true)
	require.NoError(t, err)
	assert.Empty(t, values, "reading_all_attributes without can_read")
}

func TestAttributes_ListDefinitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, def := range []models.MetakeyDefinition{{Key: "b"}, {Key: "a"}, {Key: "hidden", Hidden: true}} {
		_, err := f.admin.DefineMetakey(ctx, def)
		require.NoError(t, err)
	}
	require.NoError(t, f.admin.PermitMetakey(ctx, "a", "analysts", true, false))
	require.NoError(t, f.admin.PermitMetakey(ctx, "b", "analysts", false, true))
	require.NoError(t, f.admin.PermitMetakey(ctx, "hidden", "analysts", true, true))
	alice := f.as(t, "alice")

	read, err := f.attrs.ListDefinitions(ctx, alice, AccessRead)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, keys(read))

	set, err := f.attrs.ListDefinitions(ctx, alice, AccessSet)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "hidden"}, keys(set))

	_, err = f.attrs.ListDefinitions(ctx, alice, "write")
	assert.True(t, errors.Is(err, common.ErrBadRequest))

	none, err := f.attrs.ListDefinitions(ctx, f.as(t, "bob"), AccessRead)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAttributes_Management(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.as(t, "alice")

	_, err := f.attrs.UpsertDefinition(ctx, alice, models.MetakeyDefinition{Key: "family"})
	assert.True(t, errors.Is(err, common.ErrForbidden))
	assert.True(t, errors.Is(f.attrs.UpsertPermission(ctx, alice, "family", "analysts", true, true), common.ErrForbidden))
	assert.True(t, errors.Is(f.attrs.DeletePermission(ctx, alice, "family", "analysts"), common.ErrForbidden))
	_, err = f.attrs.ListAllDefinitions(ctx, alice)
	assert.True(t, errors.Is(err, common.ErrForbidden))
	_, err = f.attrs.GetDefinition(ctx, alice, "family")
	assert.True(t, errors.Is(err, common.ErrForbidden))

	f.grant(t, "analysts", models.CapManagingAttributes)
	alice = f.as(t, "alice")

	_, err = f.attrs.UpsertDefinition(ctx, alice, models.MetakeyDefinition{Key: "bad key!"})
	assert.True(t, errors.Is(err, common.ErrBadRequest))

	def, err := f.attrs.UpsertDefinition(ctx, alice, models.MetakeyDefinition{Key: " Family ", Label: "Family"})
	require.NoError(t, err)
	assert.Equal(t, "family", def.Key)
	_, err = f.attrs.UpsertDefinition(ctx, alice, models.MetakeyDefinition{Key: "family", Description: "malware family"})
	require.NoError(t, err)

	err = f.attrs.UpsertPermission(ctx, alice, "ghost", "analysts", true, true)
	assert.True(t, errors.Is(err, common.ErrNotFound), "unknown key")
	err = f.attrs.UpsertPermission(ctx, alice, "family", "ghosts", true, true)
	assert.True(t, errors.Is(err, common.ErrNotFound), "unknown group")
	require.NoError(t, f.attrs.UpsertPermission(ctx, alice, "family", "partners", true, false))
	require.NoError(t, f.attrs.UpsertPermission(ctx, alice, "family", "partners", true, true))

	details, err := f.attrs.GetDefinition(ctx, alice, "FAMILY")
	require.NoError(t, err)
	assert.Equal(t, "", details.Label, "definitions are replaced wholesale")
	assert.Equal(t, "malware family", details.Description)
	require.Len(t, details.Permissions, 1)
	assert.Equal(t, models.MetakeyPermission{Key: "family", GroupID: details.Permissions[0].GroupID, GroupName: "partners", CanRead: true, CanSet: true}, details.Permissions[0])

	all, err := f.attrs.ListAllDefinitions(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"family"}, keys(all))

	require.NoError(t, f.attrs.DeletePermission(ctx, alice, "family", "partners"))
	err = f.attrs.DeletePermission(ctx, alice, "family", "partners")
	assert.True(t, errors.Is(err, common.ErrNotFound), "missing permission row")
	err = f.attrs.DeletePermission(ctx, alice, "family", "ghosts")
	assert.True(t, errors.Is(err, common.ErrNotFound), "missing group")

	_, err = f.attrs.GetDefinition(ctx, alice, "ghost")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}
