package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"aegis-hq/aegis/pkg/config"
	"aegis-hq/aegis/pkg/gateway/middleware"
)

// Server wraps an Orchestrator with an HTTP listener, graceful shutdown,
// and the standard middleware chain. TLS termination is assumed to happen
// upstream of Aegis (load balancer / service mesh) and is out of scope
// here.
type Server struct {
	cfg          config.GatewayConfig
	orchestrator *Orchestrator
	adminRoutes  func(*http.ServeMux)
	logger       *slog.Logger

	httpServer   *http.Server
	mu           sync.Mutex
	shutdownOnce sync.Once
}

// NewServer constructs a Server. adminRoutes registers the read-only admin
// routes (pkg/admin); it may be nil if the admin surface is disabled.
func NewServer(cfg config.GatewayConfig, orchestrator *Orchestrator, adminRoutes func(*http.ServeMux), logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		adminRoutes:  adminRoutes,
		logger:       logger,
	}
}

// handler builds the full middleware chain over the registered routes.
// Composition order (outermost first): Recovery, Logging, CORS, RequestID,
// Deadline.
func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	s.orchestrator.Routes(mux)
	if s.adminRoutes != nil {
		s.adminRoutes(mux)
	}

	var h http.Handler = mux
	h = middleware.Deadline(s.cfg.RequestTimeout)(h)
	h = middleware.RequestID(h)
	h = middleware.CORS(s.cfg.CORS)(h)
	h = middleware.Logging(h)
	h = middleware.Recovery(h)
	return h
}

// Start binds the listener and serves until ctx is cancelled, then performs
// a graceful shutdown. Returns nil on a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:           s.cfg.ListenAddr,
		Handler:        s.handler(),
		ReadTimeout:    s.cfg.ReadTimeout,
		WriteTimeout:   s.cfg.WriteTimeout,
		IdleTimeout:    s.cfg.IdleTimeout,
		MaxHeaderBytes: s.cfg.MaxHeaderBytes,
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "addr", s.cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("gateway listen: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP listener. Safe to call once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()

		s.mu.Lock()
		httpServer := s.httpServer
		s.mu.Unlock()

		if httpServer == nil {
			return
		}
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			err = fmt.Errorf("gateway shutdown: %w", shutdownErr)
			return
		}
		s.logger.Info("gateway stopped")
	})
	return err
}
