// Package grpc exposes license checks and the standard health service over
// gRPC for in-cluster consumers.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/keyauth/internal/logging"
	"github.com/dmitrijs2005/keyauth/internal/server/models"
	"github.com/dmitrijs2005/keyauth/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type userSvc interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type licenseSvc interface {
	Validate(ctx context.Context, caller *models.User, key, hwid string) (*services.ValidationResult, error)
	Status(ctx context.Context, caller *models.User) ([]*services.LicenseView, error)
}

type GRPCServer struct {
	address  string
	users    userSvc
	licenses licenseSvc
	health   *health.Server
	logger   logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, us userSvc, ls licenseSvc) *GRPCServer {
	if l == nil {
		l = logging.Nop{}
	}
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		users:    us,
		licenses: ls,
		health:   health.NewServer(),
	}
}

// SetServing flips the health status reported for the whole server and for
// the license service.
func (s *GRPCServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)
	Register(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
