package grpc

import (
	"context"

	"github.com/dmitrijs2005/artivault/internal/server/access"
	"github.com/dmitrijs2005/artivault/internal/server/models"
	"github.com/dmitrijs2005/artivault/internal/server/services"
)

func (s *GRPCServer) Ping(ctx context.Context, req *Empty) (*PingResponse, error) {
	return &PingResponse{Status: "OK"}, nil
}

func (s *GRPCServer) Upload(ctx context.Context, req *UploadRequest) (*UploadResponse, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	t, err := models.ParseObjectType(req.Type)
	if err != nil {
		return nil, err
	}

	in := &services.UploadRequest{
		Type:       t,
		Parent:     req.Parent,
		UploadAs:   req.UploadAs,
		Metakeys:   req.Metakeys,
		UploadTime: req.UploadTime,
	}
	if req.File != nil {
		in.File = &services.FilePayload{Name: req.File.Name, Content: req.File.Content}
	}
	if req.Config != nil {
		in.Config = &models.Config{Family: req.Config.Family, ConfigType: req.Config.ConfigType, Cfg: req.Config.Cfg}
	}
	if req.TextBlob != nil {
		in.TextBlob = &services.TextBlobPayload{Name: req.TextBlob.Name, Type: req.TextBlob.Type, Content: req.TextBlob.Content}
	}

	o, created, err := s.objects.Upload(ctx, id, in)
	if err != nil {
		return nil, err
	}
	return &UploadResponse{Object: o, Created: created}, nil
}

func (s *GRPCServer) GetObject(ctx context.Context, req *ObjectRequest) (*ObjectResponse, error) {
	id, t, err := s.target(ctx, req.Type)
	if err != nil {
		return nil, err
	}
	o, err := s.objects.Get(ctx, id, t, req.ID)
	if err != nil {
		return nil, err
	}
	return &ObjectResponse{Object: o}, nil
}

func (s *GRPCServer) GetRelations(ctx context.Context, req *ObjectRequest) (*models.Relations, error) {
	id, t, err := s.target(ctx, req.Type)
	if err != nil {
		return nil, err
	}
	return s.objects.Relations(ctx, id, t, req.ID)
}

func (s *GRPCServer) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	id, t, err := s.target(ctx, req.Type)
	if err != nil {
		return nil, err
	}
	objects, err := s.objects.Search(ctx, id, t, services.SearchRequest{
		Query:     req.Query,
		OlderThan: req.OlderThan,
		Page:      req.Page,
		Limit:     req.Limit,
	})
	if err != nil {
		return nil, err
	}
	return &SearchResponse{Objects: objects}, nil
}

func (s *GRPCServer) AddChild(ctx context.Context, req *AddChildRequest) (*Empty, error) {
	id, t, err := s.target(ctx, req.Type)
	if err != nil {
		return nil, err
	}
	if err := s.objects.AddChild(ctx, id, t, req.Parent, req.Child); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *GRPCServer) Share(ctx context.Context, req *ShareRequest) (*Empty, error) {
	id, t, err := s.target(ctx, req.Type)
	if err != nil {
		return nil, err
	}
	if err := s.objects.Share(ctx, id, t, req.ID, req.Group); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *GRPCServer) ListShares(ctx context.Context, req *ObjectRequest) (*SharesResponse, error) {
	id, t, err := s.target(ctx, req.Type)
	if err != nil {
		return nil, err
	}
	shares, err := s.objects.Shares(ctx, id, t, req.ID)
	if err != nil {
		return nil, err
	}
	return &SharesResponse{Shares: shares}, nil
}

func (s *GRPCServer) ConfigStats(ctx context.Context, req *ConfigStatsRequest) (*ConfigStatsResponse, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := s.objects.ConfigStats(ctx, id, req.Range)
	if err != nil {
		return nil, err
	}
	return &ConfigStatsResponse{Families: stats}, nil
}

func (s *GRPCServer) FileDownloadURL(ctx context.Context, req *DownloadURLRequest) (*DownloadURLResponse, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	url, err := s.objects.FileDownloadURL(ctx, id, req.ID)
	if err != nil {
		return nil, err
	}
	return &DownloadURLResponse{URL: url}, nil
}

func (s *GRPCServer) AddAttribute(ctx context.Context, req *AddAttributeRequest) (*AddAttributeResponse, error) {
	id, t, err := s.target(ctx, req.Type)
	if err != nil {
		return nil, err
	}
	created, err := s.attributes.Add(ctx, id, t, req.ID, req.Key, req.Value)
	if err != nil {
		return nil, err
	}
	return &AddAttributeResponse{Created: created}, nil
}

func (s *GRPCServer) GetAttributes(ctx context.Context, req *GetAttributesRequest) (*AttributesResponse, error) {
	id, t, err := s.target(ctx, req.Type)
	if err != nil {
		return nil, err
	}
	values, err := s.attributes.Get(ctx, id, t, req.ID, req.Hidden)
	if err != nil {
		return nil, err
	}
	return &AttributesResponse{Metakeys: values}, nil
}

func (s *GRPCServer) ListDefinitions(ctx context.Context, req *ListDefinitionsRequest) (*DefinitionsResponse, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	defs, err := s.attributes.ListDefinitions(ctx, id, req.Access)
	if err != nil {
		return nil, err
	}
	return &DefinitionsResponse{Metakeys: defs}, nil
}

func (s *GRPCServer) ListAllDefinitions(ctx context.Context, req *Empty) (*DefinitionsResponse, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	defs, err := s.attributes.ListAllDefinitions(ctx, id)
	if err != nil {
		return nil, err
	}
	return &DefinitionsResponse{Metakeys: defs}, nil
}

func (s *GRPCServer) GetDefinition(ctx context.Context, req *DefinitionRequest) (*DefinitionResponse, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	details, err := s.attributes.GetDefinition(ctx, id, req.Key)
	if err != nil {
		return nil, err
	}
	return &DefinitionResponse{Metakey: details}, nil
}

func (s *GRPCServer) UpsertDefinition(ctx context.Context, req *models.MetakeyDefinition) (*DefinitionResponse, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	def, err := s.attributes.UpsertDefinition(ctx, id, *req)
	if err != nil {
		return nil, err
	}
	return &DefinitionResponse{Metakey: &services.DefinitionDetails{MetakeyDefinition: *def, Permissions: []models.MetakeyPermission{}}}, nil
}

func (s *GRPCServer) UpsertPermission(ctx context.Context, req *PermissionRequest) (*Empty, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.attributes.UpsertPermission(ctx, id, req.Key, req.Group, req.CanRead, req.CanSet); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *GRPCServer) DeletePermission(ctx context.Context, req *PermissionRequest) (*Empty, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.attributes.DeletePermission(ctx, id, req.Key, req.Group); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

// target resolves the caller and the object variant named by typ.
func (s *GRPCServer) target(ctx context.Context, typ string) (*access.Identity, models.ObjectType, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, "", err
	}
	t, err := models.ParseObjectType(typ)
	if err != nil {
		return nil, "", err
	}
	return id, t, nil
}
