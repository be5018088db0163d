package metakeys

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/artivault/internal/common"
	"github.com/dmitrijs2005/artivault/internal/dbx"
	"github.com/dmitrijs2005/artivault/internal/server/models"
	"github.com/dmitrijs2005/artivault/internal/server/repositories/groups"
	"github.com/dmitrijs2005/artivault/internal/server/repositories/objects"
	"github.com/dmitrijs2005/artivault/internal/server/storetest"
)

func TestDeletePermission_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM metakey_permissions WHERE key = \$1 AND group_id = \$2`).
		WithArgs("campaign", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewSQLRepository(db, dbx.Postgres{}).DeletePermission(context.Background(), "campaign", 3)
	assert.True(t, errors.Is(err, common.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_Metakeys(t *testing.T) {
	db := storetest.Open(t)
	ctx := context.Background()
	d := dbx.SQLite{}
	repo := NewSQLRepository(db, d)

	analysts := &models.Group{Name: "analysts"}
	partners := &models.Group{Name: "partners"}
	grp := groups.NewSQLRepository(db, d)
	require.NoError(t, grp.Create(ctx, analysts))
	require.NoError(t, grp.Create(ctx, partners))

	now := time.Now().UTC()
	o := &models.Object{Type: models.TypeFile, DHash: "x", UploadTime: now, LastSeen: now}
	_, err := objects.NewSQLRepository(db, d).Insert(ctx, o)
	require.NoError(t, err)

	t.Run("definitions are replaced wholesale", func(t *testing.T) {
		require.NoError(t, repo.UpsertDefinition(ctx, &models.MetakeyDefinition{Key: "campaign", Label: "Campaign", URLTemplate: "https://x/$value"}))
		require.NoError(t, repo.UpsertDefinition(ctx, &models.MetakeyDefinition{Key: "campaign", Hidden: true}))
		require.NoError(t, repo.UpsertDefinition(ctx, &models.MetakeyDefinition{Key: "actor"}))

		got, err := repo.GetDefinition(ctx, "campaign")
		require.NoError(t, err)
		assert.Equal(t, models.MetakeyDefinition{Key: "campaign", Hidden: true}, *got)

		all, err := repo.ListDefinitions(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "actor", all[0].Key)

		_, err = repo.GetDefinition(ctx, "ghost")
		assert.True(t, errors.Is(err, common.ErrNotFound))
	})

	t.Run("permissions", func(t *testing.T) {
		require.NoError(t, repo.UpsertPermission(ctx, &models.MetakeyPermission{Key: "campaign", GroupID: analysts.ID, CanRead: true}))
		require.NoError(t, repo.UpsertPermission(ctx, &models.MetakeyPermission{Key: "campaign", GroupID: analysts.ID, CanRead: true, CanSet: true}))
		require.NoError(t, repo.UpsertPermission(ctx, &models.MetakeyPermission{Key: "actor", GroupID: partners.ID, CanRead: true}))

		perms, err := repo.ListPermissions(ctx, "campaign")
		require.NoError(t, err)
		require.Len(t, perms, 1)
		assert.Equal(t, "analysts", perms[0].GroupName)
		assert.True(t, perms[0].CanSet)

		byKey, err := repo.PermissionsByKey(ctx, []int64{analysts.ID})
		require.NoError(t, err)
		assert.Len(t, byKey, 1)
		assert.Len(t, byKey["campaign"], 1)

		empty, err := repo.PermissionsByKey(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)

		require.NoError(t, repo.DeletePermission(ctx, "actor", partners.ID))
		err = repo.DeletePermission(ctx, "actor", partners.ID)
		assert.True(t, errors.Is(err, common.ErrNotFound))
	})

	t.Run("values", func(t *testing.T) {
		created, err := repo.AddValue(ctx, o.ID, "campaign", "apt1")
		require.NoError(t, err)
		assert.True(t, created)

		created, err = repo.AddValue(ctx, o.ID, "campaign", "apt1")
		require.NoError(t, err)
		assert.False(t, created)

		_, err = repo.AddValue(ctx, o.ID, "actor", "x")
		require.NoError(t, err)

		values, err := repo.ListValues(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, []models.Metakey{{Key: "actor", Value: "x"}, {Key: "campaign", Value: "apt1"}}, values)
	})
}
