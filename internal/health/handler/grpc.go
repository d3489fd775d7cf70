package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Server implements the standard gRPC health protocol on top of a Checker. The empty service name and
// ServiceName report overall readiness; other names are NotFound.
type Server struct {
	healthpb.UnimplementedHealthServer
	checker *Checker
}

// ServiceName is the named service reported by the ops gRPC server.
const ServiceName = "dashboard.Gateway"

// NewServer returns a health server backed by checker.
func NewServer(checker *Checker) *Server {
	return &Server{checker: checker}
}

// Check reports SERVING when every readiness probe passes, else NOT_SERVING. Probe failures are never
// returned as gRPC errors.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != ServiceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}
	if err := s.checker.Ready(ctx); err != nil {
		s.checker.logger.Warn("health: grpc check not serving")
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
