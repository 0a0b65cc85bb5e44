// Package rpc defines the gRPC contracts between streamflow services:
// message types, service descriptors, client stubs and the JSON codec the
// messages travel in.
package rpc

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
)

// CodecName is the content-subtype of every streamflow RPC
// ("application/grpc+json").
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// CallOptions are prepended to every stub call.
func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

// WithBearer returns ctx with an outgoing authorization header for token.
// token may already carry the scheme.
func WithBearer(ctx context.Context, token string) context.Context {
	token = strings.TrimSpace(token)
	if token == "" {
		return ctx
	}
	if !strings.HasPrefix(strings.ToLower(token), strings.ToLower(common.BearerScheme)+" ") {
		token = common.BearerScheme + " " + token
	}
	return metadata.AppendToOutgoingContext(ctx, common.AuthorizationHeaderName, token)
}

// unaryMethod builds a method descriptor that decodes into Req and calls
// fn on the registered implementation.
func unaryMethod[Req any, Resp any](service, name string, fn func(srv any, ctx context.Context, in *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(srv, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
