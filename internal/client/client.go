// Package client is a Go client for the artivault gRPC service.
package client

import (
	"context"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/artivault/internal/common"
	gs "github.com/dmitrijs2005/artivault/internal/server/grpc"
	"github.com/dmitrijs2005/artivault/internal/server/models"
	"github.com/dmitrijs2005/artivault/internal/server/services"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if s.accessToken != "" {
		ctx = withAccessToken(ctx, s.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewArtivaultClient connects to endpointURL and authenticates every call
// with accessToken. Extra options are appended to the defaults.
func NewArtivaultClient(endpointURL, accessToken string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(gs.Codec())),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) invoke(ctx context.Context, method string, req, resp any) error {
	return s.mapError(s.conn.Invoke(ctx, "/"+gs.ServiceName+"/"+method, req, resp))
}

// mapError turns a status back into the matching common sentinel so callers
// can use errors.Is on both sides of the wire.
func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.InvalidArgument:
		return common.BadRequestf("%s", st.Message())
	case codes.PermissionDenied:
		return common.Forbiddenf("%s", st.Message())
	case codes.NotFound:
		return common.NotFoundf("%s", st.Message())
	case codes.AlreadyExists:
		return common.Conflictf("%s", st.Message())
	case codes.Unauthenticated:
		return errors.Wrapf(common.ErrUnauthorized, "%s", st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return errors.Wrap(err, "rpc error")
	}
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	var resp gs.PingResponse
	if err := s.invoke(ctx, "Ping", &gs.Empty{}, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return errors.Newf("unexpected ping status %q", resp.Status)
	}
	return nil
}

// Upload stores an object. created is false when it already existed.
func (s *GRPCClient) Upload(ctx context.Context, req *gs.UploadRequest) (*models.Object, bool, error) {
	var resp gs.UploadResponse
	if err := s.invoke(ctx, "Upload", req, &resp); err != nil {
		return nil, false, err
	}
	return resp.Object, resp.Created, nil
}

func (s *GRPCClient) GetObject(ctx context.Context, t models.ObjectType, id string) (*models.Object, error) {
	var resp gs.ObjectResponse
	if err := s.invoke(ctx, "GetObject", &gs.ObjectRequest{Type: string(t), ID: id}, &resp); err != nil {
		return nil, err
	}
	return resp.Object, nil
}

func (s *GRPCClient) Relations(ctx context.Context, t models.ObjectType, id string) (*models.Relations, error) {
	var resp models.Relations
	if err := s.invoke(ctx, "GetRelations", &gs.ObjectRequest{Type: string(t), ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *GRPCClient) Search(ctx context.Context, req *gs.SearchRequest) ([]models.Object, error) {
	var resp gs.SearchResponse
	if err := s.invoke(ctx, "Search", req, &resp); err != nil {
		return nil, err
	}
	return resp.Objects, nil
}

func (s *GRPCClient) AddChild(ctx context.Context, t models.ObjectType, parent, child string) error {
	return s.invoke(ctx, "AddChild", &gs.AddChildRequest{Type: string(t), Parent: parent, Child: child}, &gs.Empty{})
}

func (s *GRPCClient) Share(ctx context.Context, t models.ObjectType, id, group string) error {
	return s.invoke(ctx, "Share", &gs.ShareRequest{Type: string(t), ID: id, Group: group}, &gs.Empty{})
}

func (s *GRPCClient) Shares(ctx context.Context, t models.ObjectType, id string) ([]models.AccessGrant, error) {
	var resp gs.SharesResponse
	if err := s.invoke(ctx, "ListShares", &gs.ObjectRequest{Type: string(t), ID: id}, &resp); err != nil {
		return nil, err
	}
	return resp.Shares, nil
}

func (s *GRPCClient) ConfigStats(ctx context.Context, rng string) ([]models.ConfigStat, error) {
	var resp gs.ConfigStatsResponse
	if err := s.invoke(ctx, "ConfigStats", &gs.ConfigStatsRequest{Range: rng}, &resp); err != nil {
		return nil, err
	}
	return resp.Families, nil
}

func (s *GRPCClient) FileDownloadURL(ctx context.Context, id string) (string, error) {
	var resp gs.DownloadURLResponse
	if err := s.invoke(ctx, "FileDownloadURL", &gs.DownloadURLRequest{ID: id}, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

func (s *GRPCClient) AddAttribute(ctx context.Context, t models.ObjectType, id, key, value string) (bool, error) {
	var resp gs.AddAttributeResponse
	if err := s.invoke(ctx, "AddAttribute", &gs.AddAttributeRequest{Type: string(t), ID: id, Key: key, Value: value}, &resp); err != nil {
		return false, err
	}
	return resp.Created, nil
}

func (s *GRPCClient) GetAttributes(ctx context.Context, t models.ObjectType, id string, hidden bool) ([]models.Metakey, error) {
	var resp gs.AttributesResponse
	if err := s.invoke(ctx, "GetAttributes", &gs.GetAttributesRequest{Type: string(t), ID: id, Hidden: hidden}, &resp); err != nil {
		return nil, err
	}
	return resp.Metakeys, nil
}

func (s *GRPCClient) ListDefinitions(ctx context.Context, accessKind string) ([]models.MetakeyDefinition, error) {
	var resp gs.DefinitionsResponse
	if err := s.invoke(ctx, "ListDefinitions", &gs.ListDefinitionsRequest{Access: accessKind}, &resp); err != nil {
		return nil, err
	}
	return resp.Metakeys, nil
}

func (s *GRPCClient) ListAllDefinitions(ctx context.Context) ([]models.MetakeyDefinition, error) {
	var resp gs.DefinitionsResponse
	if err := s.invoke(ctx, "ListAllDefinitions", &gs.Empty{}, &resp); err != nil {
		return nil, err
	}
	return resp.Metakeys, nil
}

func (s *GRPCClient) GetDefinition(ctx context.Context, key string) (*services.DefinitionDetails, error) {
	var resp gs.DefinitionResponse
	if err := s.invoke(ctx, "GetDefinition", &gs.DefinitionRequest{Key: key}, &resp); err != nil {
		return nil, err
	}
	return resp.Metakey, nil
}

func (s *GRPCClient) UpsertDefinition(ctx context.Context, def models.MetakeyDefinition) (*models.MetakeyDefinition, error) {
	var resp gs.DefinitionResponse
	if err := s.invoke(ctx, "UpsertDefinition", &def, &resp); err != nil {
		return nil, err
	}
	return &resp.Metakey.MetakeyDefinition, nil
}

func (s *GRPCClient) UpsertPermission(ctx context.Context, key, group string, canRead, canSet bool) error {
	return s.invoke(ctx, "UpsertPermission", &gs.PermissionRequest{Key: key, Group: group, CanRead: canRead, CanSet: canSet}, &gs.Empty{})
}

func (s *GRPCClient) DeletePermission(ctx context.Context, key, group string) error {
	return s.invoke(ctx, "DeletePermission", &gs.PermissionRequest{Key: key, Group: group}, &gs.Empty{})
}
