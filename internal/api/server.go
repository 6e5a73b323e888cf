package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/miradorstack/climate-econometrics/internal/config"
)

// Server exposes DiagnosticsService on one TCP listener. Handling metrics are exported
// through go-grpc-prometheus; grpc.health.v1 reports the service as SERVING until
// Shutdown begins.
type Server struct {
	drain  time.Duration
	rpc    *grpc.Server
	health *health.Server
	lis    net.Listener
}

// NewServer listens on cfg.Address and mounts diagnostics, health and reflection.
func NewServer(cfg config.ServerConfig, diagnostics DiagnosticsServer, opts ...grpc.ServerOption) (*Server, error) {
	if diagnostics == nil {
		return nil, errors.New("diagnostics service is required")
	}
	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Address, err)
	}

	rpc := grpc.NewServer(instrumented(opts)...)
	RegisterDiagnosticsServer(rpc, diagnostics)
	grpc_prometheus.Register(rpc)

	checks := health.NewServer()
	for _, name := range []string{"", ServiceName} {
		checks.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}
	healthpb.RegisterHealthServer(rpc, checks)
	reflection.Register(rpc)

	return &Server{drain: cfg.GracefulTimeout, rpc: rpc, health: checks, lis: lis}, nil
}

// instrumented prepends the Prometheus interceptors to caller-supplied options.
func instrumented(extra []grpc.ServerOption) []grpc.ServerOption {
	grpc_prometheus.EnableHandlingTimeHistogram()
	return append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}, extra...)
}

// Start accepts connections until the server is shut down.
func (s *Server) Start() error {
	if s.rpc == nil || s.lis == nil {
		return errors.New("server not initialised")
	}
	return s.rpc.Serve(s.lis)
}

// Shutdown flips health checks to NOT_SERVING and lets running analyses finish.
// Calls still in flight when ctx ends are cut off.
func (s *Server) Shutdown(ctx context.Context) {
	if s.rpc == nil {
		return
	}
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.rpc.GracefulStop()
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.rpc.Stop()
	}
}

// Address reports the listener address, which differs from the configured one when
// the port was 0.
func (s *Server) Address() string {
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// GracefulTimeout is how long serve waits for running analyses on shutdown.
func (s *Server) GracefulTimeout() time.Duration {
	return s.drain
}
