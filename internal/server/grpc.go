package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthhandler "marketing-dashboard/backend/internal/health/handler"
)

// NewGRPCServer returns the ops gRPC server. It serves only the standard health protocol, traced with
// the otelgrpc stats handler.
func NewGRPCServer(checker *healthhandler.Checker, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	s := grpc.NewServer(opts...)
	RegisterServices(s, checker)
	return s
}

// RegisterServices registers the ops services with s.
func RegisterServices(s grpc.ServiceRegistrar, checker *healthhandler.Checker) {
	healthpb.RegisterHealthServer(s, healthhandler.NewServer(checker))
}
