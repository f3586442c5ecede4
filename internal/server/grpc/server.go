package grpcserver

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rzbill/taskboard/internal/relayapi"
	"github.com/rzbill/taskboard/internal/runtime"
	channelsvc "github.com/rzbill/taskboard/internal/services/channels"
	"github.com/rzbill/taskboard/pkg/log"
)

// Server owns the gRPC server instance and runtime.
type Server struct {
	rt     *runtime.Runtime
	chsvc  *channelsvc.Service
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
	logger log.Logger
}

// New constructs a gRPC server and registers the relay and health services.
func New(rt *runtime.Runtime, svc *channelsvc.Service, logger log.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	s := &Server{
		rt:     rt,
		chsvc:  svc,
		grpc:   grpc.NewServer(opts...),
		health: health.NewServer(),
		logger: logger.WithComponent("grpc"),
	}
	relayapi.RegisterRelayServer(s.grpc, &relaySvc{svc: svc, logger: s.logger})
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.refreshHealth(context.Background())
	return s
}

// refreshHealth maps the runtime health check onto the standard health
// service for both the overall server and the relay service.
func (s *Server) refreshHealth(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.rt.CheckHealth(ctx); err != nil {
		s.logger.Warn("runtime unhealthy", log.Err(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(relayapi.ServiceName, status)
}

// Serve serves on an existing listener until it is closed.
func (s *Server) Serve(l net.Listener) error {
	s.lis = l
	return s.grpc.Serve(l)
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.logger.Info("grpc listening", log.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(l) }()
	select {
	case <-ctx.Done():
		s.Close()
		return nil
	case err := <-errCh:
		return err
	}
}

// Close marks the server not serving and stops it. Open subscription streams
// are cancelled.
func (s *Server) Close() {
	s.health.Shutdown()
	if s.grpc != nil {
		s.grpc.Stop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
