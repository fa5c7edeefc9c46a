package grpc

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// DefaultCheckInterval is how often dependency checks are re-run
const DefaultCheckInterval = 10 * time.Second

// DefaultShutdownTimeout bounds how long Stop waits for open streams
const DefaultShutdownTimeout = 30 * time.Second

const checkTimeout = 2 * time.Second

// Check reports whether a dependency is reachable
type Check func(ctx context.Context) error

// Server exposes the standard gRPC health service for one microservice.
// The serving status follows the result of the dependency checks.
type Server struct {
	GRPC            *grpc.Server
	ShutdownTimeout time.Duration

	service  string
	health   *health.Server
	checks   map[string]Check
	interval time.Duration
	log      zerolog.Logger

	stopOnce sync.Once
}

// NewServer creates a new gRPC server with the health and reflection services registered
func NewServer(service string, checks map[string]Check, interval time.Duration, log zerolog.Logger) *Server {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}

	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			LoggingInterceptor(log),
			RecoveryInterceptor(log),
			ErrorInterceptor(),
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	// not serving until the first check passes
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{
		GRPC:            gs,
		ShutdownTimeout: DefaultShutdownTimeout,
		service:         service,
		health:          hs,
		checks:          checks,
		interval:        interval,
		log:             log,
	}
}

// RefreshStatus runs every check once and publishes the resulting serving status
func (s *Server) RefreshStatus(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.log.Warn().Err(err).Str("dependency", name).Msg("health check failed")
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(s.service, st)
	return st
}

// Serve checks the dependencies periodically and serves on lis until ctx is done
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.RefreshStatus(ctx)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.ShutdownTimeout)
				s.Stop(stopCtx)
				cancel()
				return
			case <-ticker.C:
				s.RefreshStatus(ctx)
			}
		}
	}()

	s.log.Info().Str("addr", lis.Addr().String()).Msg("gRPC server listening")
	if err := s.GRPC.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop marks every service as not serving and drains in-flight calls.
// Health watch streams stay open until clients leave, so once ctx is done
// the remaining connections are closed forcibly.
func (s *Server) Stop(ctx context.Context) {
	s.stopOnce.Do(func() {
		s.health.Shutdown()

		done := make(chan struct{})
		go func() {
			s.GRPC.GracefulStop()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			s.GRPC.Stop()
			<-done
		}
		s.log.Info().Msg("gRPC server stopped")
	})
}
