package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const RevocationServiceName = "auth.v1.RevocationService"

const RevocationServiceCheckToken = "/" + RevocationServiceName + "/CheckToken"

type CheckTokenRequest struct {
	TokenHash string `json:"tokenHash"`
}

type CheckTokenResponse struct {
	Revoked bool `json:"revoked"`
}

// RevocationServiceServer is implemented by the auth service.
type RevocationServiceServer interface {
	CheckToken(context.Context, *CheckTokenRequest) (*CheckTokenResponse, error)
}

var RevocationServiceDesc = grpc.ServiceDesc{
	ServiceName: RevocationServiceName,
	HandlerType: (*RevocationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(RevocationServiceName, "CheckToken", func(srv any, ctx context.Context, in *CheckTokenRequest) (*CheckTokenResponse, error) {
			return srv.(RevocationServiceServer).CheckToken(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "auth/v1/revocation.json",
}

func RegisterRevocationServiceServer(s grpc.ServiceRegistrar, srv RevocationServiceServer) {
	s.RegisterService(&RevocationServiceDesc, srv)
}

type RevocationServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewRevocationServiceClient(cc grpc.ClientConnInterface) *RevocationServiceClient {
	return &RevocationServiceClient{cc: cc}
}

func (c *RevocationServiceClient) CheckToken(ctx context.Context, in *CheckTokenRequest, opts ...grpc.CallOption) (*CheckTokenResponse, error) {
	out := new(CheckTokenResponse)
	if err := c.cc.Invoke(ctx, RevocationServiceCheckToken, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// IsRevoked asks the auth service whether tokenHash is revoked, so the
// client can serve as an authz.RevocationChecker in other services.
func (c *RevocationServiceClient) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	resp, err := c.CheckToken(ctx, &CheckTokenRequest{TokenHash: tokenHash})
	if err != nil {
		return false, err
	}
	return resp.Revoked, nil
}
