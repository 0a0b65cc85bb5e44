package client

import (
	"context"

	"github.com/dmitrijs2005/streamflow/internal/rpc"
	"github.com/dmitrijs2005/streamflow/internal/server/grpc/grpcerr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// UsersClient calls the users service over gRPC.
type UsersClient struct {
	conn   *grpc.ClientConn
	client *rpc.UserServiceClient
}

// DialUsers creates a lazy connection to addr; nothing is dialled until
// the first call.
func DialUsers(addr string) (*UsersClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &UsersClient{conn: conn, client: rpc.NewUserServiceClient(conn)}, nil
}

// NewUsersClient wraps an existing connection. Close is then a no-op.
func NewUsersClient(cc grpc.ClientConnInterface) *UsersClient {
	return &UsersClient{client: rpc.NewUserServiceClient(cc)}
}

// Register creates an account. token may be empty; only admins may set
// a role other than the default.
func (c *UsersClient) Register(ctx context.Context, token string, in *rpc.CreateUserRequest) (*rpc.User, error) {
	u, err := c.client.CreateUser(rpc.WithBearer(ctx, token), in)
	return u, grpcerr.ToError(err)
}

// GetUser returns the profile of id as seen by token's owner.
func (c *UsersClient) GetUser(ctx context.Context, token, id string) (*rpc.User, error) {
	u, err := c.client.GetUser(rpc.WithBearer(ctx, token), &rpc.GetUserRequest{Id: id})
	return u, grpcerr.ToError(err)
}

func (c *UsersClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
