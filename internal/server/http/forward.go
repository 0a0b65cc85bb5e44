package http

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/rpc"
	"github.com/dmitrijs2005/streamflow/internal/server/grpc/grpcerr"
	"google.golang.org/grpc"
)

// UsersForwarder relays password changes to the users service over gRPC.
// Each call is bounded by the peer timeout.
type UsersForwarder struct {
	client  *rpc.UserServiceClient
	timeout time.Duration
}

func NewUsersForwarder(cc grpc.ClientConnInterface, timeout time.Duration) *UsersForwarder {
	return &UsersForwarder{client: rpc.NewUserServiceClient(cc), timeout: timeout}
}

func (f *UsersForwarder) ChangePassword(ctx context.Context, authorization string, in *rpc.ChangePasswordRequest) (*rpc.User, error) {
	callCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	out, err := f.client.ChangePassword(rpc.WithBearer(callCtx, authorization), in)
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: users service did not answer within %s", common.ErrUnavailable, f.timeout)
		}
		return nil, grpcerr.ToError(err)
	}
	return out, nil
}
