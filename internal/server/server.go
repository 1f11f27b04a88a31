// Package server assembles the HTTP surface of the explorer service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/busantrip/map-explorer/internal/boundary"
	"github.com/busantrip/map-explorer/internal/config"
	"github.com/busantrip/map-explorer/internal/content"
	"github.com/busantrip/map-explorer/internal/geocode"
	"github.com/busantrip/map-explorer/internal/health"
	imw "github.com/busantrip/map-explorer/internal/middleware"
	"github.com/busantrip/map-explorer/internal/surface"
	"github.com/busantrip/map-explorer/internal/trending"
)

// Deps carries the wired collaborators into the server.
type Deps struct {
	Manager        *surface.Manager
	Resolver       geocode.Resolver
	Fetcher        content.Fetcher
	Trending       *trending.Tracker
	BoundaryLoader *boundary.Loader
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger

	manager    *surface.Manager
	resolver   geocode.Resolver
	fetcher    content.Fetcher
	trending   *trending.Tracker
	boundaries *boundarySource
	registry   *registry
}

func New(cfg config.Config, logger *slog.Logger, deps Deps) (*Server, error) {
	if deps.Manager == nil || deps.Resolver == nil || deps.Fetcher == nil {
		return nil, errors.New("server: missing dependencies (manager/resolver/fetcher)")
	}
	if deps.Trending == nil {
		deps.Trending = trending.New(cfg.TrendingHalfLife)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:        cfg,
		logger:     logger,
		manager:    deps.Manager,
		resolver:   deps.Resolver,
		fetcher:    deps.Fetcher,
		trending:   deps.Trending,
		boundaries: newBoundarySource(deps.BoundaryLoader, cfg.BoundarySource, logger),
		registry:   newRegistry(cfg.MaxSessions),
	}, nil
}

// Handler builds the chi router for the service.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(imw.Recover(s.logger))
	r.Use(imw.Logging(s.logger))
	r.Use(imw.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(map[string]func() error{
		"map_provider": func() error {
			if state, err := s.manager.Status(); state == surface.StateFailed {
				return fmt.Errorf("bootstrap failed: %w", err)
			}
			return nil
		},
		"boundaries": func() error {
			if !s.boundaries.Loaded() {
				return errors.New("boundary dataset not loaded")
			}
			return nil
		},
	}))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/explorer", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/click", s.handleClick)
			r.Post("/hover", s.handleHover)
			r.Post("/select", s.handleSelect)
			r.Post("/back", s.handleBack)
		})
		r.Get("/trending", s.handleTrending)
	})

	return r
}

// Run serves until ctx is cancelled, then drains open sessions.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http listen", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.registry.closeAll()
		return nil
	case err := <-errCh:
		return err
	}
}
