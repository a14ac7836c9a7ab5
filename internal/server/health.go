package server

import (
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealth serves the standard gRPC health service. The overall status is
// SERVING while the worker accepts jobs.
type GRPCHealth struct {
	addr   string
	srv    *grpc.Server
	health *health.Server
	logger *slog.Logger
}

func NewGRPCHealth(addr string, logger *slog.Logger) *GRPCHealth {
	if logger == nil {
		logger = slog.Default()
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	return &GRPCHealth{addr: addr, srv: srv, health: hs, logger: logger}
}

// SetServing flips the overall health status.
func (g *GRPCHealth) SetServing(serving bool) {
	st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		st = grpc_health_v1.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus("", st)
}

// Serve serves on lis until Stop.
func (g *GRPCHealth) Serve(lis net.Listener) error {
	return g.srv.Serve(lis)
}

func (g *GRPCHealth) Stop() {
	g.health.Shutdown()
	g.srv.GracefulStop()
}

// Start listens on the configured address and serves in the background
// until Stop.
func (g *GRPCHealth) Start() error {
	lis, err := net.Listen("tcp", g.addr)
	if err != nil {
		g.logger.Error("grpc.health.listen_error", "addr", g.addr, "error", err)
		return err
	}
	g.logger.Info("grpc.health.listening", "addr", lis.Addr().String())
	go func() {
		if err := g.Serve(lis); err != nil {
			g.logger.Error("grpc.health.serve_error", "error", err)
		}
	}()
	return nil
}
