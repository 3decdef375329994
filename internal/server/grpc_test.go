package server

import (
	"context"
	"errors"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func dial(t *testing.T, deps Deps) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(deps)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func TestHealthOverGRPC(t *testing.T) {
	testCases := []struct {
		name string
		deps Deps
		want healthpb.HealthCheckResponse_ServingStatus
	}{
		{"no pinger", Deps{}, healthpb.HealthCheckResponse_SERVING},
		{"store up", Deps{HealthPinger: stubPinger{}}, healthpb.HealthCheckResponse_SERVING},
		{"store down", Deps{HealthPinger: stubPinger{err: errors.New("down")}}, healthpb.HealthCheckResponse_NOT_SERVING},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := dial(t, tc.deps)
			resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if resp.GetStatus() != tc.want {
				t.Errorf("status = %v, want %v", resp.GetStatus(), tc.want)
			}
		})
	}
}
