package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/artivault/internal/common"
	"github.com/dmitrijs2005/artivault/internal/logging"
	"github.com/dmitrijs2005/artivault/internal/server/access"
	"github.com/dmitrijs2005/artivault/internal/server/auth"
)

const (
	accessTokenKey  = common.AccessTokenHeaderName
	requestIDHeader = common.RequestIDHeaderName
)

var publicMethods = map[string]bool{
	"/" + ServiceName + "/Ping": true,
}

// requestInterceptor tags the call and its log entries with a request id, maps domain errors to
// status codes and logs the outcome.
func (s *GRPCServer) requestInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	requestID := uuid.NewString()
	_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, requestID))
	ctx = logging.WithRequestID(ctx, requestID)
	start := time.Now()

	resp, err := handler(ctx, req)
	if err != nil {
		st := toStatus(err)
		if st.Code() == codes.Internal {
			s.logger.Error(ctx, "request failed", "method", info.FullMethod, "error", err.Error())
		}
		err = st.Err()
	}

	s.logger.Info(ctx, "request handled",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)
	return resp, err
}

// accessTokenInterceptor authenticates every non-public call and stores the
// caller's Identity in the context.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if publicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(accessTokenKey); len(values) > 0 {
			accessToken = strings.TrimPrefix(values[0], "Bearer ")
		}
	}
	if accessToken == "" {
		return nil, errors.Wrap(common.ErrUnauthorized, "missing token")
	}

	login, err := auth.GetLoginFromToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	id, err := s.identities.Resolve(ctx, login)
	if err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "authenticated", "method", info.FullMethod, "login", login)
	return handler(access.WithIdentity(ctx, id), req)
}

// toStatus maps err onto a gRPC status. Errors that already carry a status
// pass through unchanged.
func toStatus(err error) *status.Status {
	if st, ok := status.FromError(err); ok {
		return st
	}

	switch {
	case errors.Is(err, common.ErrBadRequest):
		return status.New(codes.InvalidArgument, common.Reason(err))
	case errors.Is(err, common.ErrForbidden):
		return status.New(codes.PermissionDenied, common.Reason(err))
	case errors.Is(err, common.ErrNotFound):
		return status.New(codes.NotFound, common.Reason(err))
	case errors.Is(err, common.ErrConflict):
		return status.New(codes.AlreadyExists, common.Reason(err))
	case errors.Is(err, common.ErrTokenExpired):
		return status.New(codes.Unauthenticated, "token expired")
	case errors.Is(err, common.ErrInvalidToken):
		return status.New(codes.Unauthenticated, "invalid token")
	case errors.Is(err, common.ErrUnauthorized):
		return status.New(codes.Unauthenticated, common.Reason(err))
	case errors.Is(err, context.Canceled):
		return status.New(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.New(codes.DeadlineExceeded, "deadline exceeded")
	}
	return status.New(codes.Internal, "internal error")
}

func identity(ctx context.Context) (*access.Identity, error) {
	id, ok := access.FromContext(ctx)
	if !ok {
		return nil, common.ErrUnauthorized
	}
	return id, nil
}
