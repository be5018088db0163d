package grpc

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/artivault/internal/common"
	"github.com/dmitrijs2005/artivault/internal/logging"
	"github.com/dmitrijs2005/artivault/internal/server/access"
	"github.com/dmitrijs2005/artivault/internal/server/auth"
)

func withToken(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(accessTokenKey, token))
}

func mustToken(t *testing.T, login string, validity time.Duration) string {
	t.Helper()
	token, err := auth.GenerateToken(login, []byte("secret"), validity)
	require.NoError(t, err)
	return token
}

func TestInterceptor_PublicMethodSkipsAuth(t *testing.T) {
	s := newTestServer(&fakeObjects{}, &fakeAttributes{})
	info := &grpc.UnaryServerInfo{FullMethod: "/" + ServiceName + "/Ping"}

	called := false
	_, err := s.accessTokenInterceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		called = true
		return "ok", nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestInterceptor_Rejects(t *testing.T) {
	s := newTestServer(&fakeObjects{}, &fakeAttributes{})
	info := &grpc.UnaryServerInfo{FullMethod: "/" + ServiceName + "/GetObject"}
	h := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler must not be called")
		return nil, nil
	}

	tests := []struct {
		name string
		ctx  context.Context
		want error
	}{
		{"missing token", context.Background(), common.ErrUnauthorized},
		{"garbage token", withToken("not-a-jwt"), common.ErrInvalidToken},
		{"expired token", withToken(mustToken(t, "alice", -time.Minute)), common.ErrTokenExpired},
		{"unknown user", withToken(mustToken(t, "mallory", time.Hour)), common.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.accessTokenInterceptor(tt.ctx, nil, info, h)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, codes.Unauthenticated, toStatus(err).Code())
		})
	}
}

func TestInterceptor_StoresIdentity(t *testing.T) {
	s := newTestServer(&fakeObjects{}, &fakeAttributes{})
	info := &grpc.UnaryServerInfo{FullMethod: "/" + ServiceName + "/GetObject"}

	for _, token := range []string{mustToken(t, "alice", time.Hour), "Bearer " + mustToken(t, "alice", time.Hour)} {
		var got *access.Identity
		_, err := s.accessTokenInterceptor(withToken(token), nil, info, func(ctx context.Context, req any) (any, error) {
			got, _ = access.FromContext(ctx)
			return nil, nil
		})
		require.NoError(t, err)
		assert.Same(t, alice, got)
	}
}

func TestRequestInterceptor_MapsErrors(t *testing.T) {
	s := newTestServer(&fakeObjects{}, &fakeAttributes{})
	info := &grpc.UnaryServerInfo{FullMethod: "/" + ServiceName + "/GetObject"}

	_, err := s.requestInterceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, common.Forbiddenf("You are not permitted to add parents")
	})
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.PermissionDenied, st.Code())
	assert.Equal(t, "You are not permitted to add parents", st.Message())

	var requestID string
	resp, err := s.requestInterceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		requestID = logging.RequestID(ctx)
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Len(t, requestID, 36, "handlers log with the request id")
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
		msg  string
	}{
		{common.BadRequestf("Unknown field 'x'"), codes.InvalidArgument, "Unknown field 'x'"},
		{common.Forbiddenf("nope"), codes.PermissionDenied, "nope"},
		{common.NotFoundf("Object not found"), codes.NotFound, "Object not found"},
		{common.Conflictf("Object already exists as file"), codes.AlreadyExists, "Object already exists as file"},
		{common.ErrTokenExpired, codes.Unauthenticated, "token expired"},
		{common.ErrInvalidToken, codes.Unauthenticated, "invalid token"},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), codes.DeadlineExceeded, "deadline exceeded"},
		{fmt.Errorf("db error: %w", errors.New("connection reset")), codes.Internal, "internal error"},
		{status.Error(codes.Unavailable, "down"), codes.Unavailable, "down"},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			st := toStatus(tt.err)
			assert.Equal(t, tt.code, st.Code())
			assert.Equal(t, tt.msg, st.Message())
		})
	}
}
