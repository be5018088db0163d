// Package grpc exposes the object and attribute services over gRPC.
// Messages are JSON encoded and routed by a hand-written service descriptor.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/artivault/internal/logging"
	"github.com/dmitrijs2005/artivault/internal/server/access"
	"github.com/dmitrijs2005/artivault/internal/server/models"
	"github.com/dmitrijs2005/artivault/internal/server/services"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "artivault.Artivault"

// ObjectService is implemented by services.ObjectService.
type ObjectService interface {
	Upload(ctx context.Context, id *access.Identity, req *services.UploadRequest) (*models.Object, bool, error)
	Get(ctx context.Context, id *access.Identity, t models.ObjectType, dhash string) (*models.Object, error)
	Relations(ctx context.Context, id *access.Identity, t models.ObjectType, dhash string) (*models.Relations, error)
	Search(ctx context.Context, id *access.Identity, t models.ObjectType, req services.SearchRequest) ([]models.Object, error)
	AddChild(ctx context.Context, id *access.Identity, t models.ObjectType, parentHash, childHash string) error
	Share(ctx context.Context, id *access.Identity, t models.ObjectType, dhash, groupName string) error
	Shares(ctx context.Context, id *access.Identity, t models.ObjectType, dhash string) ([]models.AccessGrant, error)
	ConfigStats(ctx context.Context, id *access.Identity, rng string) ([]models.ConfigStat, error)
	FileDownloadURL(ctx context.Context, id *access.Identity, dhash string) (string, error)
}

// AttributeService is implemented by services.AttributeService.
type AttributeService interface {
	Add(ctx context.Context, id *access.Identity, t models.ObjectType, dhash, key, value string) (bool, error)
	Get(ctx context.Context, id *access.Identity, t models.ObjectType, dhash string, includeHidden bool) ([]models.Metakey, error)
	ListDefinitions(ctx context.Context, id *access.Identity, accessKind string) ([]models.MetakeyDefinition, error)
	ListAllDefinitions(ctx context.Context, id *access.Identity) ([]models.MetakeyDefinition, error)
	GetDefinition(ctx context.Context, id *access.Identity, key string) (*services.DefinitionDetails, error)
	UpsertDefinition(ctx context.Context, id *access.Identity, def models.MetakeyDefinition) (*models.MetakeyDefinition, error)
	UpsertPermission(ctx context.Context, id *access.Identity, key, groupName string, canRead, canSet bool) error
	DeletePermission(ctx context.Context, id *access.Identity, key, groupName string) error
}

// IdentityResolver turns the login carried by a token into an Identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, login string) (*access.Identity, error)
}

type GRPCServer struct {
	address    string
	objects    ObjectService
	attributes AttributeService
	identities IdentityResolver
	logger     logging.Logger
	jwtSecret  []byte
}

func NewGRPCServer(a string, l logging.Logger, objects ObjectService, attributes AttributeService, identities IdentityResolver, secretKey string) (*GRPCServer, error) {
	return &GRPCServer{
		address:    a,
		logger:     l.With("module", "grpc_server"),
		objects:    objects,
		attributes: attributes,
		identities: identities,
		jwtSecret:  []byte(secretKey),
	}, nil
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.ChainUnaryInterceptor(s.requestInterceptor, s.accessTokenInterceptor),
	)
	srv.RegisterService(&serviceDesc, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on listen until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	return srv.Serve(listen)
}

// unary builds a method descriptor that decodes Req and dispatches to call
// through the server's interceptor chain.
func unary[Req, Resp any](name string, call func(*GRPCServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
			}
			s := srv.(*GRPCServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

// artivaultServer lists the RPCs served under ServiceName.
type artivaultServer interface {
	Ping(context.Context, *Empty) (*PingResponse, error)
	Upload(context.Context, *UploadRequest) (*UploadResponse, error)
	GetObject(context.Context, *ObjectRequest) (*ObjectResponse, error)
	GetRelations(context.Context, *ObjectRequest) (*models.Relations, error)
	Search(context.Context, *SearchRequest) (*SearchResponse, error)
	AddChild(context.Context, *AddChildRequest) (*Empty, error)
	Share(context.Context, *ShareRequest) (*Empty, error)
	ListShares(context.Context, *ObjectRequest) (*SharesResponse, error)
	ConfigStats(context.Context, *ConfigStatsRequest) (*ConfigStatsResponse, error)
	FileDownloadURL(context.Context, *DownloadURLRequest) (*DownloadURLResponse, error)
	AddAttribute(context.Context, *AddAttributeRequest) (*AddAttributeResponse, error)
	GetAttributes(context.Context, *GetAttributesRequest) (*AttributesResponse, error)
	ListDefinitions(context.Context, *ListDefinitionsRequest) (*DefinitionsResponse, error)
	ListAllDefinitions(context.Context, *Empty) (*DefinitionsResponse, error)
	GetDefinition(context.Context, *DefinitionRequest) (*DefinitionResponse, error)
	UpsertDefinition(context.Context, *models.MetakeyDefinition) (*DefinitionResponse, error)
	UpsertPermission(context.Context, *PermissionRequest) (*Empty, error)
	DeletePermission(context.Context, *PermissionRequest) (*Empty, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*artivaultServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Ping", (*GRPCServer).Ping),
		unary("Upload", (*GRPCServer).Upload),
		unary("GetObject", (*GRPCServer).GetObject),
		unary("GetRelations", (*GRPCServer).GetRelations),
		unary("Search", (*GRPCServer).Search),
		unary("AddChild", (*GRPCServer).AddChild),
		unary("Share", (*GRPCServer).Share),
		unary("ListShares", (*GRPCServer).ListShares),
		unary("ConfigStats", (*GRPCServer).ConfigStats),
		unary("FileDownloadURL", (*GRPCServer).FileDownloadURL),
		unary("AddAttribute", (*GRPCServer).AddAttribute),
		unary("GetAttributes", (*GRPCServer).GetAttributes),
		unary("ListDefinitions", (*GRPCServer).ListDefinitions),
		unary("ListAllDefinitions", (*GRPCServer).ListAllDefinitions),
		unary("GetDefinition", (*GRPCServer).GetDefinition),
		unary("UpsertDefinition", (*GRPCServer).UpsertDefinition),
		unary("UpsertPermission", (*GRPCServer).UpsertPermission),
		unary("DeletePermission", (*GRPCServer).DeletePermission),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "artivault.json",
}
