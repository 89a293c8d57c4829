package grpcserver

import (
	"context"
	"net"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/rzbill/logwindow/internal/runtime"
	"github.com/rzbill/logwindow/pkg/log"
)

// Server owns the gRPC server instance and runtime.
type Server struct {
	rt     *runtime.Runtime
	grpc   *grpc.Server
	health *healthProber
	lis    net.Listener
	logger log.Logger
}

// New constructs a gRPC server and registers the standard health and
// reflection services. The health status is probed once before returning.
func New(rt *runtime.Runtime, logger log.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	logger = logger.WithComponent("grpc")
	s := &Server{
		rt:     rt,
		grpc:   grpc.NewServer(opts...),
		health: newHealthProber(rt, logger),
		logger: logger,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health.srv)
	reflection.Register(s.grpc)
	s.health.probe(context.Background())
	return s
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("grpc listening", log.Str("addr", l.Addr().String()))

	pctx, stopProbe := context.WithCancel(ctx)
	defer stopProbe()
	go s.health.run(pctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
