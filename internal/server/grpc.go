// Package server assembles the gRPC server exposed next to the bot.
package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthhandler "github.com/Starlight90415/O-quvbot/internal/health/handler"
	"github.com/Starlight90415/O-quvbot/internal/server/interceptors"
)

// Deps holds the dependencies of the gRPC services.
type Deps struct {
	// HealthPinger is pinged by Health/Check (e.g. *sheet.Conn). If nil, Check always reports SERVING.
	HealthPinger healthhandler.Pinger
	Logger       *zap.Logger
}

// quietMethods are only logged when they fail.
var quietMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
}

// NewGRPCServer returns a server with OTel stats, panic recovery and request logging installed.
func NewGRPCServer(deps Deps, opts ...grpc.ServerOption) *grpc.Server {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.Recovery(log),
			interceptors.Logging(log, quietMethods),
		),
	}
	s := grpc.NewServer(append(base, opts...)...)
	RegisterServices(s, deps)
	return s
}

// RegisterServices registers every service with s.
//
//   - grpc.health.v1.Health → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	healthpb.RegisterHealthServer(s, healthhandler.NewServer(deps.HealthPinger, deps.Logger))
}
