package handler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the named service accepted by Check besides the empty (overall) name.
const ServiceName = "oquvbot"

const pingTimeout = 2 * time.Second

// Pinger reports whether the table store is reachable. *sheet.Conn implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server implements grpc.health.v1.Health. SERVING means the table store answered a ping.
type Server struct {
	healthpb.UnimplementedHealthServer
	pinger Pinger
	log    *zap.Logger
}

// NewServer returns a health server. A nil pinger always reports SERVING.
func NewServer(pinger Pinger, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{pinger: pinger, log: log}
}

// Check pings the store with a short timeout.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != ServiceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}
	if s.pinger == nil {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.pinger.Ping(pingCtx); err != nil {
		s.log.Warn("health check: store ping failed", zap.Error(err))
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
