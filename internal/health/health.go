// Package health exposes the standard grpc.health.v1 service.
package health

import (
	"context"

	"github.com/appetiteclub/apt"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Server reports SERVING for the process and each named component once
// started, and NOT_SERVING after Stop.
type Server struct {
	*grpchealth.Server
	services []string
	logger   apt.Logger
}

func NewServer(logger apt.Logger, services ...string) *Server {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	s := &Server{
		Server:   grpchealth.NewServer(),
		services: append([]string{""}, services...),
		logger:   logger,
	}
	s.set(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return s
}

// RegisterGRPCService registers the health service with the gRPC server.
func (s *Server) RegisterGRPCService(server *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(server, s.Server)
}

func (s *Server) Start(ctx context.Context) error {
	s.set(grpc_health_v1.HealthCheckResponse_SERVING)
	s.logger.Info("grpc health serving", "services", s.services[1:])
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.Shutdown()
	return nil
}

// SetServing flips one component without touching the others.
func (s *Server) SetServing(service string, serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.SetServingStatus(service, status)
}

func (s *Server) set(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	for _, name := range s.services {
		s.SetServingStatus(name, status)
	}
}
