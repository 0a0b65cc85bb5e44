package authz

import (
	"context"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/server/grpc/grpcerr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

type targetedRequest interface {
	GetId() string
}

type roleRequest interface {
	GetRole() string
}

// UnaryServerInterceptor enforces policy on every unary method. The
// principal, when there is one, is attached to the handler's context.
func (a *Authorizer) UnaryServerInterceptor(policy Policy) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		r := Request{Authorization: authorizationFromMetadata(ctx)}
		if t, ok := req.(targetedRequest); ok {
			r.Target = t.GetId()
		}
		if rr, ok := req.(roleRequest); ok {
			r.RequestedRole = rr.GetRole()
		}

		p, err := a.Authorize(ctx, policy.RuleFor(info.FullMethod), r)
		if err != nil {
			return nil, grpcerr.FromError(err)
		}
		if p != nil {
			ctx = NewContext(ctx, p)
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor enforces policy on streaming methods. Streams
// carry no target, so RuleSelfOrAdmin admits privileged callers only.
func (a *Authorizer) StreamServerInterceptor(policy Policy) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()

		p, err := a.Authorize(ctx, policy.RuleFor(info.FullMethod), Request{Authorization: authorizationFromMetadata(ctx)})
		if err != nil {
			return grpcerr.FromError(err)
		}
		if p != nil {
			ss = &principalStream{ServerStream: ss, ctx: NewContext(ctx, p)}
		}
		return handler(srv, ss)
	}
}

type principalStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *principalStream) Context() context.Context { return s.ctx }

func authorizationFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(common.AuthorizationHeaderName); len(v) > 0 {
		return v[0]
	}
	return ""
}
