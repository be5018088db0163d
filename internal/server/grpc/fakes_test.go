package grpc

import (
	"context"

	"github.com/dmitrijs2005/artivault/internal/common"
	"github.com/dmitrijs2005/artivault/internal/logging"
	"github.com/dmitrijs2005/artivault/internal/server/access"
	"github.com/dmitrijs2005/artivault/internal/server/models"
	"github.com/dmitrijs2005/artivault/internal/server/services"
)

// ---- fakes ----

type fakeObjects struct {
	gotID     *access.Identity
	gotType   models.ObjectType
	gotHash   string
	gotUpload *services.UploadRequest
	gotSearch services.SearchRequest
	gotParent string
	gotGroup  string
	gotRange  string

	object  *models.Object
	objects []models.Object
	shares  []models.AccessGrant
	stats   []models.ConfigStat
	url     string
	err     error
}

func (f *fakeObjects) record(id *access.Identity, t models.ObjectType, dhash string) {
	f.gotID, f.gotType, f.gotHash = id, t, dhash
}

func (f *fakeObjects) Upload(_ context.Context, id *access.Identity, req *services.UploadRequest) (*models.Object, bool, error) {
	f.gotID, f.gotUpload = id, req
	return f.object, true, f.err
}

func (f *fakeObjects) Get(_ context.Context, id *access.Identity, t models.ObjectType, dhash string) (*models.Object, error) {
	f.record(id, t, dhash)
	return f.object, f.err
}

func (f *fakeObjects) Relations(_ context.Context, id *access.Identity, t models.ObjectType, dhash string) (*models.Relations, error) {
	f.record(id, t, dhash)
	return &models.Relations{Parents: []models.ObjectRef{}, Children: []models.ObjectRef{}}, f.err
}

func (f *fakeObjects) Search(_ context.Context, id *access.Identity, t models.ObjectType, req services.SearchRequest) ([]models.Object, error) {
	f.record(id, t, "")
	f.gotSearch = req
	return f.objects, f.err
}

func (f *fakeObjects) AddChild(_ context.Context, id *access.Identity, t models.ObjectType, parentHash, childHash string) error {
	f.record(id, t, childHash)
	f.gotParent = parentHash
	return f.err
}

func (f *fakeObjects) Share(_ context.Context, id *access.Identity, t models.ObjectType, dhash, groupName string) error {
	f.record(id, t, dhash)
	f.gotGroup = groupName
	return f.err
}

func (f *fakeObjects) Shares(_ context.Context, id *access.Identity, t models.ObjectType, dhash string) ([]models.AccessGrant, error) {
	f.record(id, t, dhash)
	return f.shares, f.err
}

func (f *fakeObjects) ConfigStats(_ context.Context, id *access.Identity, rng string) ([]models.ConfigStat, error) {
	f.gotID, f.gotRange = id, rng
	return f.stats, f.err
}

func (f *fakeObjects) FileDownloadURL(_ context.Context, id *access.Identity, dhash string) (string, error) {
	f.record(id, models.TypeFile, dhash)
	return f.url, f.err
}

type fakeAttributes struct {
	gotKey    string
	gotValue  string
	gotGroup  string
	gotAccess string
	gotHidden bool
	gotRead   bool
	gotSet    bool
	gotDef    models.MetakeyDefinition

	values  []models.Metakey
	defs    []models.MetakeyDefinition
	details *services.DefinitionDetails
	err     error
}

func (f *fakeAttributes) Add(_ context.Context, _ *access.Identity, _ models.ObjectType, _, key, value string) (bool, error) {
	f.gotKey, f.gotValue = key, value
	return true, f.err
}

func (f *fakeAttributes) Get(_ context.Context, _ *access.Identity, _ models.ObjectType, _ string, includeHidden bool) ([]models.Metakey, error) {
	f.gotHidden = includeHidden
	return f.values, f.err
}

func (f *fakeAttributes) ListDefinitions(_ context.Context, _ *access.Identity, accessKind string) ([]models.MetakeyDefinition, error) {
	f.gotAccess = accessKind
	return f.defs, f.err
}

func (f *fakeAttributes) ListAllDefinitions(context.Context, *access.Identity) ([]models.MetakeyDefinition, error) {
	return f.defs, f.err
}

func (f *fakeAttributes) GetDefinition(_ context.Context, _ *access.Identity, key string) (*services.DefinitionDetails, error) {
	f.gotKey = key
	return f.details, f.err
}

func (f *fakeAttributes) UpsertDefinition(_ context.Context, _ *access.Identity, def models.MetakeyDefinition) (*models.MetakeyDefinition, error) {
	f.gotDef = def
	if f.err != nil {
		return nil, f.err
	}
	return &def, nil
}

func (f *fakeAttributes) UpsertPermission(_ context.Context, _ *access.Identity, key, groupName string, canRead, canSet bool) error {
	f.gotKey, f.gotGroup, f.gotRead, f.gotSet = key, groupName, canRead, canSet
	return f.err
}

func (f *fakeAttributes) DeletePermission(_ context.Context, _ *access.Identity, key, groupName string) error {
	f.gotKey, f.gotGroup = key, groupName
	return f.err
}

type fakeIdentities map[string]*access.Identity

func (f fakeIdentities) Resolve(_ context.Context, login string) (*access.Identity, error) {
	id, ok := f[login]
	if !ok {
		return nil, common.ErrUnauthorized
	}
	return id, nil
}

var alice = &access.Identity{User: models.User{ID: 1, Login: "alice"}}

func newTestServer(objects *fakeObjects, attributes *fakeAttributes) *GRPCServer {
	s, _ := NewGRPCServer("127.0.0.1:0", logging.Nop{}, objects, attributes, fakeIdentities{"alice": alice}, "secret")
	return s
}

func asAlice() context.Context {
	return access.WithIdentity(context.Background(), alice)
}
