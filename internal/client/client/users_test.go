package client

import (
	"context"
	"net"
	"testing"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeUsers struct {
	rpc.UserServiceServer
	bearer string
}

func (f *fakeUsers) CreateUser(ctx context.Context, in *rpc.CreateUserRequest) (*rpc.User, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get("authorization"); len(v) > 0 {
			f.bearer = v[0]
		}
	}
	if in.Email == "taken@example.com" {
		return nil, status.Error(codes.AlreadyExists, "already exists")
	}
	return &rpc.User{Id: "u-new", Email: in.Email, Role: "free"}, nil
}

func (f *fakeUsers) GetUser(ctx context.Context, in *rpc.GetUserRequest) (*rpc.User, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	if v := md.Get("authorization"); len(v) == 0 || v[0] != "Bearer tok" {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}
	return &rpc.User{Id: in.Id, Email: "me@example.com"}, nil
}

func newUsersClient(t *testing.T, f *fakeUsers) *UsersClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	rpc.RegisterUserServiceServer(srv, f)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
	})
	return NewUsersClient(conn)
}

func TestUsersClient_Register(t *testing.T) {
	f := &fakeUsers{}
	c := newUsersClient(t, f)

	u, err := c.Register(context.Background(), "", &rpc.CreateUserRequest{Email: "new@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "u-new", u.Id)
	assert.Empty(t, f.bearer)

	_, err = c.Register(context.Background(), "admin-tok", &rpc.CreateUserRequest{Email: "taken@example.com"})
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
	assert.Equal(t, "Bearer admin-tok", f.bearer)
}

func TestUsersClient_GetUser(t *testing.T) {
	c := newUsersClient(t, &fakeUsers{})

	u, err := c.GetUser(context.Background(), "tok", "u-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.Id)

	_, err = c.GetUser(context.Background(), "bad", "u-1")
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestUsersClient_CloseWithoutConn(t *testing.T) {
	assert.NoError(t, NewUsersClient(nil).Close())
}

func TestDialUsers_Lazy(t *testing.T) {
	c, err := DialUsers("127.0.0.1:1")
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}
