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

	"heliox-hq/charon/pkg/bridge"
	"heliox-hq/charon/pkg/config"
	"heliox-hq/charon/pkg/pool"
	"heliox-hq/charon/pkg/server/middleware"
	"heliox-hq/charon/pkg/telemetry/health"
	"heliox-hq/charon/pkg/telemetry/metrics"
)

// Deps carries the core components the server fronts.
type Deps struct {
	Pool      *pool.Manager
	Bridge    *bridge.Bridge
	Collector *metrics.Collector

	// Health, when set, backs /healthz and /readyz with registered
	// component probes. Nil falls back to a bare liveness response.
	Health *health.Checker
}

// Server is the gateway HTTP server.
type Server struct {
	config       *config.Config
	deps         Deps
	dedup        *dedupCache
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a gateway server from configuration and core components.
func New(cfg *config.Config, deps Deps) *Server {
	var dc *dedupCache
	if cfg.Dedup.Enabled {
		dc = newDedupCache(cfg.Dedup.MaxEntries, cfg.Dedup.Window)
	}
	return &Server{
		config:       cfg,
		deps:         deps,
		dedup:        dc,
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

	handler := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         s.config.Server.ListenAddress,
		Handler:      handler,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting gateway server", "address", s.config.Server.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		slog.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.config.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("gateway server stopped")
	})

	return shutdownErr
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/v1/models", s.handleModels)

	if s.deps.Health != nil {
		mux.HandleFunc("/healthz", s.deps.Health.LivenessHandler())
		mux.HandleFunc("/readyz", s.deps.Health.ReadinessHandler())
	} else {
		mux.HandleFunc("/healthz", s.handleHealthz)
	}

	mux.HandleFunc("/api/accounts/allocate", s.handleAccountsAllocate)
	mux.HandleFunc("/api/accounts/release", s.handleAccountsRelease)
	mux.HandleFunc("/api/accounts/mark_blocked", s.handleAccountsMarkBlocked)
	mux.HandleFunc("/api/accounts/refresh_credits", s.handleAccountsRefreshCredits)
	mux.HandleFunc("/api/accounts/list", s.handleAccountsList)
	mux.HandleFunc("/api/status", s.handleStatus)

	exempt := []string{"/healthz", "/readyz"}
	if s.config.Telemetry.Metrics.Enabled && s.deps.Collector != nil {
		mux.Handle(s.config.Telemetry.Metrics.Path, s.deps.Collector.Handler())
		exempt = append(exempt, s.config.Telemetry.Metrics.Path)
	}

	var handler http.Handler = mux
	handler = middleware.Auth(s.config.Server.APIKey, exempt...)(handler)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.Enabled = s.config.Server.EnableCORS
	handler = middleware.CORS(corsCfg)(handler)

	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(handler)

	return handler
}

// Handler returns the configured HTTP handler. Used by tests and by
// callers that embed the server behind their own listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
