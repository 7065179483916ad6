package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/mamba/pkg/agent"
	"github.com/kadirpekel/mamba/pkg/auth"
	"github.com/kadirpekel/mamba/pkg/config"
	"github.com/kadirpekel/mamba/pkg/title"
	"github.com/kadirpekel/mamba/pkg/tools"
)

// Server is the chat proxy HTTP server.
type Server struct {
	cfg          *config.Config
	provider     agent.Provider
	agents       *agent.Registry
	displayTools *tools.Registry
	titles       *title.Service
	authn        auth.Authenticator
	health       *healthChecker
	logger       *slog.Logger
	version      string

	httpServer *http.Server
}

// Option configures the server.
type Option func(*Server)

// WithAgents sets the named agent registry.
func WithAgents(agents *agent.Registry) Option {
	return func(s *Server) {
		s.agents = agents
	}
}

// WithTitleService sets the title generation service.
func WithTitleService(titles *title.Service) Option {
	return func(s *Server) {
		s.titles = titles
	}
}

// WithAuthenticator sets the client authenticator.
func WithAuthenticator(authn auth.Authenticator) Option {
	return func(s *Server) {
		s.authn = authn
	}
}

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version reported by the health endpoints.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// New builds a server from config, an upstream provider, and the display
// tool registry used on the default chat path.
func New(cfg *config.Config, provider agent.Provider, displayTools *tools.Registry, opts ...Option) *Server {
	s := &Server{
		cfg:          cfg,
		provider:     provider,
		displayTools: displayTools,
		authn:        auth.Noop(),
		logger:       slog.Default(),
		version:      "dev",
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.titles == nil {
		s.titles = title.NewService(provider, &cfg.Title, s.logger)
	}
	s.health = newHealthChecker(&cfg.Health, &cfg.OpenAI, s.version)

	return s
}

// Handler builds the routing tree with the full middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(corsMiddleware(&s.cfg.Server.CORS))
	r.Use(auth.Middleware(s.authn, s.logger))

	r.Post("/chat", s.handleChat)
	r.Post("/title/generate", s.handleTitle)
	r.Get("/models", s.handleModels)
	r.Get("/health", s.handleHealth)
	r.Get("/health/live", s.handleLive)
	r.Get("/health/ready", s.handleHealth)

	return r
}

// Start runs the server until ctx is cancelled or the listener fails.
// WriteTimeout stays unset: streaming responses are bounded by the
// application's own wall-clock timer instead.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:        s.cfg.Server.Address(),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	s.logger.Info("server starting", "address", s.cfg.Server.Address(), "version", s.version)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown drains in-flight requests with a bounded grace period.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	s.logger.Info("server shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.cfg.Server.Address()
}
