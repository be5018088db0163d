package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/artivault/internal/logging"
	"github.com/dmitrijs2005/artivault/internal/server/access"
	"github.com/dmitrijs2005/artivault/internal/server/blobs"
	sc "github.com/dmitrijs2005/artivault/internal/server/config"
	"github.com/dmitrijs2005/artivault/internal/server/events"
	"github.com/dmitrijs2005/artivault/internal/server/models"
	"github.com/dmitrijs2005/artivault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/artivault/internal/server/storetest"
)

type stubClock struct{ now time.Time }

func (c *stubClock) Now() time.Time { return c.now }

func (c *stubClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	db      *sql.DB
	cfg     *sc.Config
	clock   *stubClock
	store   *blobs.MemoryStore
	events  []events.Event
	objects *ObjectService
	attrs   *AttributeService
	admin   *AdminService
}

// newFixture seeds groups public, analysts, partners, everyone (all access)
// and embargo (pending), and users alice (analysts), bob (partners) and
// root (everyone).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithLogger(t, logging.Nop{})
}

func newFixtureWithLogger(t *testing.T, logger logging.Logger) *fixture {
	t.Helper()
	ctx := context.Background()

	db := storetest.Open(t)
	m, err := repomanager.NewRepositoryManager("sqlite3")
	require.NoError(t, err)

	cfg := &sc.Config{}
	cfg.LoadDefaults()
	cfg.DatabaseDriver = "sqlite3"

	f := &fixture{
		db:    db,
		cfg:   cfg,
		clock: &stubClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		store: blobs.NewMemoryStore(),
	}

	dispatcher := events.NewDispatcher(logger)
	dispatcher.Subscribe(func(_ context.Context, e events.Event) error {
		f.events = append(f.events, e)
		return nil
	})

	f.objects = NewObjectService(db, m, cfg, logger, dispatcher, f.store)
	f.objects.clock = f.clock
	f.attrs = NewAttributeService(db, m, logger)
	f.admin = NewAdminService(db, m, cfg, logger)
	f.admin.clock = f.clock

	for _, g := range []models.Group{
		{Name: PublicGroup, Public: true},
		{Name: "analysts"},
		{Name: "partners"},
		{Name: "everyone", AllAccess: true},
		{Name: "embargo", Pending: true},
	} {
		_, err := f.admin.CreateGroup(ctx, g)
		require.NoError(t, err)
	}
	for login, group := range map[string]string{"alice": "analysts", "bob": "partners", "root": "everyone"} {
		_, err := f.admin.CreateUser(ctx, login)
		require.NoError(t, err)
		require.NoError(t, f.admin.AddMember(ctx, group, login))
	}
	return f
}

// as resolves the current identity of login.
func (f *fixture) as(t *testing.T, login string) *access.Identity {
	t.Helper()
	m, err := repomanager.NewRepositoryManager("sqlite3")
	require.NoError(t, err)
	id, err := NewIdentityResolver(f.db, m).Resolve(context.Background(), login)
	require.NoError(t, err)
	return id
}

func (f *fixture) grant(t *testing.T, group string, caps ...models.Capability) {
	t.Helper()
	for _, c := range caps {
		require.NoError(t, f.admin.GrantCapability(context.Background(), group, c))
	}
}

func (f *fixture) uploadBlob(t *testing.T, id *access.Identity, name, content string) *models.Object {
	t.Helper()
	o, _, err := f.objects.Upload(context.Background(), id, &UploadRequest{
		Type:     models.TypeTextBlob,
		TextBlob: &TextBlobPayload{Name: name, Type: "script", Content: content},
	})
	require.NoError(t, err)
	f.clock.advance(time.Minute)
	return o
}
