package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"umbra-hq/umbra/pkg/audit"
	"umbra-hq/umbra/pkg/config"
	"umbra-hq/umbra/pkg/pipeline"
	"umbra-hq/umbra/pkg/plugin"
	"umbra-hq/umbra/pkg/stream"
	"umbra-hq/umbra/pkg/telemetry/health"
	"umbra-hq/umbra/pkg/telemetry/metrics"
)

// Processor runs one document through the pipeline. *pipeline.Pipeline
// satisfies this.
type Processor interface {
	Process(ctx context.Context, doc *plugin.Document) (*plugin.Result, error)
}

var _ Processor = (*pipeline.Pipeline)(nil)

// Deps are the components the server exposes over HTTP. Pipeline is
// required; the rest are optional and their endpoints degrade gracefully.
type Deps struct {
	Pipeline  Processor
	Runner    *stream.Runner
	Health    *health.Checker
	Collector *metrics.Collector
	Audit     audit.Storage

	// Version information served on /version.
	Version   string
	Commit    string
	BuildTime string
}

// Server is the HTTP front door for the redaction engine.
type Server struct {
	config *config.ServerConfig
	deps   Deps
	logger *slog.Logger

	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a server. It does not start listening.
func New(cfg *config.ServerConfig, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:       cfg,
		deps:         deps,
		logger:       logger.With("component", "server"),
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server, draining in-flight requests
// within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("server stopped")
	})

	return shutdownErr
}

// Stop requests shutdown from another goroutine. Safe to call more than
// once.
func (s *Server) Stop() {
	select {
	case <-s.shutdownChan:
	default:
		close(s.shutdownChan)
	}
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/v1/redact", s.redactHandler())
	mux.Handle("/v1/audit", s.auditHandler())
	mux.Handle("/version", health.VersionHandler(s.deps.Version, s.deps.Commit, s.deps.BuildTime))

	if s.deps.Health != nil {
		mux.Handle("/healthz", s.deps.Health.LivenessHandler())
		mux.Handle("/readyz", s.deps.Health.ReadinessHandler())
	}
	if s.deps.Collector != nil {
		mux.Handle("/metrics", s.deps.Collector.Handler())
	}

	var handler http.Handler = mux
	handler = maxBodyMiddleware(s.config.MaxBodyBytes)(handler)
	handler = loggingMiddleware(s.logger)(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(s.logger)(handler)
	return handler
}
