package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/dmitrijs2005/artivault/internal/common"
	"github.com/dmitrijs2005/artivault/internal/server/models"
)

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeObjects{}, &fakeAttributes{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeObjects{}, &fakeAttributes{})
	srv.address = "127.0.0.1:99999"

	assert.Error(t, srv.Run(context.Background()))
}

func dial(t *testing.T, s *GRPCServer) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec())),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		<-done
	})
	return conn
}

func method(name string) string {
	return "/" + ServiceName + "/" + name
}

func TestServer_RoundTrip(t *testing.T) {
	objects := &fakeObjects{object: &models.Object{Type: models.TypeTextBlob, DHash: "d1", TextBlob: &models.TextBlob{Name: "n"}}}
	conn := dial(t, newTestServer(objects, &fakeAttributes{}))

	var pong PingResponse
	require.NoError(t, conn.Invoke(context.Background(), method("Ping"), &Empty{}, &pong))
	assert.Equal(t, "OK", pong.Status)

	var resp ObjectResponse
	err := conn.Invoke(context.Background(), method("GetObject"), &ObjectRequest{Type: "text_blob", ID: "d1"}, &resp)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), accessTokenKey, mustToken(t, "alice", time.Hour))
	var header metadata.MD
	require.NoError(t, conn.Invoke(ctx, method("GetObject"), &ObjectRequest{Type: "text_blob", ID: "d1"}, &resp, grpc.Header(&header)))
	assert.Equal(t, "d1", resp.Object.DHash)
	assert.Equal(t, "n", resp.Object.TextBlob.Name)
	assert.Equal(t, "alice", objects.gotID.User.Login)
	assert.Len(t, header.Get(requestIDHeader), 1)

	objects.err = common.NotFoundf("Object not found")
	err = conn.Invoke(ctx, method("GetObject"), &ObjectRequest{Type: "text_blob", ID: "zz"}, &resp)
	st, _ := status.FromError(err)
	assert.Equal(t, codes.NotFound, st.Code())
	assert.Equal(t, "Object not found", st.Message())

	err = conn.Invoke(ctx, method("GetObject"), &ObjectRequest{Type: "sample", ID: "zz"}, &resp)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
