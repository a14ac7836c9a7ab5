package server

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func TestGRPCHealth(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	g := NewGRPCHealth("", nil)
	go func() { _ = g.Serve(lis) }()
	defer g.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	client := grpc_health_v1.NewHealthClient(conn)

	check := func() grpc_health_v1.HealthCheckResponse_ServingStatus {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		return resp.GetStatus()
	}

	if st := check(); st != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", st)
	}
	g.SetServing(false)
	if st := check(); st != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %v", st)
	}
}

func TestGRPCHealthStartAndStop(t *testing.T) {
	g := NewGRPCHealth("127.0.0.1:0", nil)
	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	g.SetServing(false)
	g.Stop()

	resp, err := g.health.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING after Stop, got %v", resp.GetStatus())
	}
}

func TestGRPCHealthStartBadAddr(t *testing.T) {
	g := NewGRPCHealth("127.0.0.1:notaport", nil)
	defer g.Stop()
	if err := g.Start(); err == nil {
		t.Fatal("expected listen error")
	}
}
