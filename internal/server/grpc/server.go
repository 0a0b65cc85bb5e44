// Package grpc hosts the gRPC side of the streamflow services: the server
// runner and the handlers of users.v1.UserService and
// auth.v1.RevocationService.
package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/dmitrijs2005/streamflow/internal/logging"
	"github.com/dmitrijs2005/streamflow/internal/server/authz"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server is a gRPC server with health reporting, tracing and the
// authorization interceptor installed in front of every method.
type Server struct {
	address string
	logger  logging.Logger
	srv     *grpc.Server
	health  *health.Server
}

func NewServer(address string, l logging.Logger, a *authz.Authorizer, policy authz.Policy) *Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(a.UnaryServerInterceptor(policy)),
		grpc.ChainStreamInterceptor(a.StreamServerInterceptor(policy)),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &Server{
		address: address,
		logger:  l.With("module", "grpc_server"),
		srv:     srv,
		health:  hs,
	}
}

// Registrar is where service implementations are registered before Run.
func (s *Server) Registrar() grpc.ServiceRegistrar {
	return s.srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done, then stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		s.srv.GracefulStop()
	}()

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
