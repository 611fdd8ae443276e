// Package server wires the collab runtime: storage, postal code cipher,
// gRPC health and the periodic expiry sweep.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/finalProject2025/TP-sub000/internal/platform/timeouts"
	"github.com/finalProject2025/TP-sub000/internal/services/collab/domain"
	"github.com/finalProject2025/TP-sub000/internal/services/collab/postalcode"
	collabsqlite "github.com/finalProject2025/TP-sub000/internal/services/collab/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServiceName is the health status key for the collab engine.
const HealthServiceName = "collab.v1.CollaborationEngine"

// Config controls runtime startup.
type Config struct {
	Addr             string
	DBPath           string
	PostalCodeSecret string
	// SweepInterval is the period of the background expiry sweep. Zero
	// disables it; reads still sweep lazily.
	SweepInterval time.Duration
	Logger        *zap.Logger
}

// Server hosts the collab engine and its storage lifecycle.
type Server struct {
	listener      net.Listener
	grpcServer    *grpc.Server
	health        *health.Server
	store         *collabsqlite.Store
	service       *domain.Service
	sweepInterval time.Duration
	logger        *zap.SugaredLogger
}

// New opens storage, builds the cipher and starts listening on cfg.Addr.
func New(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return nil, errors.New("db path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cipher, err := postalcode.NewCipher(cfg.PostalCodeSecret)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	store, err := openCollabStore(cfg.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(errorUnaryInterceptor()),
		grpc.ChainStreamInterceptor(errorStreamInterceptor()),
	)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(HealthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listener:      listener,
		grpcServer:    grpcServer,
		health:        healthServer,
		store:         store,
		service:       domain.NewService(store, cipher, domain.WithLogger(logger.Named("collab"))),
		sweepInterval: cfg.SweepInterval,
		logger:        logger.Sugar(),
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Service returns the collab use-cases backed by this server's store.
func (s *Server) Service() *domain.Service {
	if s == nil {
		return nil
	}
	return s.service
}

// Run creates and serves a collab server until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs the gRPC server and the sweep loop until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	s.logger.Infow("collab server listening", "addr", s.listener.Addr().String(), "sweep_interval", s.sweepInterval.String())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		s.runSweeps(sweepCtx)
	}()
	defer func() {
		stopSweep()
		<-sweepDone
	}()

	select {
	case <-ctx.Done():
		if s.health != nil {
			s.health.Shutdown()
		}
		s.grpcServer.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
}

// runSweeps auto-closes expired posts every sweepInterval until ctx ends.
func (s *Server) runSweeps(ctx context.Context) {
	if s.sweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Server) sweepOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, timeouts.SweepRun)
	defer cancel()
	changed, err := s.service.SweepExpiredPosts(runCtx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warnw("sweep expired posts", "error", err)
		}
		return
	}
	if changed > 0 {
		s.logger.Infow("auto-closed expired posts", "count", changed)
	}
}

// Close releases collab server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warnw("close collab store", "error", err)
		}
		s.store = nil
	}
}

func openCollabStore(path string) (*collabsqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := collabsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open collab sqlite store: %w", err)
	}
	return store, nil
}
