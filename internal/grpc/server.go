package grpc

import (
	"context"
	"errors"
	"net"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/LeJamon/goPresale/internal/metrics"
)

// Check reports whether a dependency is ready. A nil error means serving.
type Check func(ctx context.Context) error

// Server is the gRPC listener carrying the health service. The overall
// status, registered under the empty service name, is SERVING only while
// every check passes.
type Server struct {
	mu sync.RWMutex

	grpcServer *grpc.Server
	health     *health.Server
	config     *ServerConfig
	logger     *zap.Logger
	metrics    *metrics.Metrics

	checks map[string]Check
	status map[string]healthpb.HealthCheckResponse_ServingStatus

	listener net.Listener
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewServer creates a new gRPC server with the given configuration.
func NewServer(cfg *ServerConfig, logger *zap.Logger, m *metrics.Metrics) (*Server, error) {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		health:  health.NewServer(),
		config:  cfg,
		logger:  logger.Named("grpc"),
		metrics: m,
		checks:  make(map[string]Check),
		status:  make(map[string]healthpb.HealthCheckResponse_ServingStatus),
	}
	s.grpcServer = grpc.NewServer(
		grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(cfg.MaxSendMsgSize),
		grpc.ChainUnaryInterceptor(s.unaryInterceptor()),
	)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)

	// nothing has been checked yet
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return s, nil
}

// AddCheck registers a readiness check under a health service name such as
// "presaled.store". Checks must be added before Start.
func (s *Server) AddCheck(service string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[service] = check
	s.health.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
}

// Services returns the checked service names, sorted.
func (s *Server) Services() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Refresh runs every check once and publishes the results.
func (s *Server) Refresh(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING
	for _, name := range s.Services() {
		s.mu.RLock()
		check := s.checks[name]
		s.mu.RUnlock()

		checkCtx, cancel := context.WithTimeout(ctx, s.config.CheckInterval)
		err := check(checkCtx)
		cancel()

		st := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = st
		}
		s.publish(name, st, err)
	}
	s.publish("", overall, nil)
}

func (s *Server) publish(name string, st healthpb.HealthCheckResponse_ServingStatus, err error) {
	s.mu.Lock()
	prev, seen := s.status[name]
	s.status[name] = st
	s.mu.Unlock()

	s.health.SetServingStatus(name, st)
	if seen && prev == st {
		return
	}
	if err != nil {
		s.logger.Warn("health status changed", zap.String("service", name), zap.Stringer("status", st), zap.Error(err))
		return
	}
	s.logger.Info("health status changed", zap.String("service", name), zap.Stringer("status", st))
}

// Start listens, runs the checks once and serves in the background until
// Stop or until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	s.listener = listener
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.Refresh(ctx)

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.config.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Refresh(ctx)
			}
		}
	}()

	go func() {
		s.logger.Info("grpc server listening", zap.String("addr", listener.Addr().String()))
		if err := s.grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.logger.Error("grpc server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop marks every service NOT_SERVING and gracefully stops the server.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// IsRunning returns true if the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Address returns the address the server is listening on.
// Returns empty string if the server is not running.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// unaryInterceptor logs and counts unary calls the same way the JSON-RPC
// server does.
func (s *Server) unaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		s.metrics.RPC("grpc:"+info.FullMethod, code.String(), time.Since(start))
		s.logger.Debug("grpc call",
			zap.String("method", info.FullMethod),
			zap.Stringer("code", code),
			zap.Duration("took", time.Since(start)))
		return resp, err
	}
}
