// Package gateway exposes the admin HTTP surface: health, Prometheus
// metrics, read-only store inspection, and a live journal tail over
// WebSocket.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mnemod/mnemod/internal/store"
)

// Config controls the gateway server.
type Config struct {
	// Listen is the bind address. Defaults to 127.0.0.1:7468.
	Listen string

	// Token is the bearer token required by the /api and /ws routes.
	// An empty token leaves those routes unmounted.
	Token string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

func (c *Config) defaults() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:7468"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		// The journal WebSocket holds its connection open; write timeout
		// applies only to the plain HTTP routes via per-handler deadlines.
		c.WriteTimeout = 0
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// Server is the admin gateway.
type Server struct {
	cfg      Config
	store    *store.Store
	registry *prometheus.Registry
	logger   *slog.Logger
	server   *http.Server
}

// New creates a gateway Server over st. registry backs the /metrics
// endpoint; nil disables it.
func New(st *store.Store, registry *prometheus.Registry, logger *slog.Logger, cfg Config) *Server {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		store:    st,
		registry: registry,
		logger:   logger.With("component", "gateway"),
	}
}

// buildRouter constructs the chi mux with all routes wired.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public, no auth required.
	r.Get("/health", s.handleHealth())
	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	// Inspection endpoints require bearer auth. Not mounted without a token.
	if s.cfg.Token != "" {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(s.cfg.Token))
			r.Route("/api", func(r chi.Router) {
				r.Get("/stats", s.handleStats())
				r.Get("/records", s.handleListRecords())
				r.Get("/records/{id}", s.handleGetRecord())
				r.Get("/search", s.handleSearch())
				r.Get("/journal", s.handleJournal())
			})
			r.Get("/ws/journal", s.handleJournalTail())
		})
	}

	return r
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.buildRouter(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", s.cfg.Listen)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		s.logger.Info("gateway listening", "addr", s.cfg.Listen)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully within the configured timeout.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("gateway shutting down")
	return s.server.Shutdown(shutdownCtx)
}
