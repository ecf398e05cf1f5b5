// Package web serves the QA report JSON API.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/qareports/internal/blob"
	"github.com/JonMunkholm/qareports/internal/config"
	"github.com/JonMunkholm/qareports/internal/core"
	"github.com/JonMunkholm/qareports/internal/persist"
	"github.com/JonMunkholm/qareports/internal/web/middleware"
)

// RemoteStatus is the view of the remote tier exposed over HTTP.
// *persist.Sync implements it.
type RemoteStatus interface {
	RemoteEnabled() bool
	WarnState() persist.WarnState
	Artifacts(ctx context.Context, reportID string) ([]blob.Info, error)
}

// Server is the HTTP front end for a core.Service.
type Server struct {
	service *core.Service
	remote  RemoteStatus
	metrics http.Handler
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
	limits  []*middleware.RateLimiter
}

// Option customizes a Server.
type Option func(*Server)

// WithRemote exposes remote status and artifact listings.
func WithRemote(r RemoteStatus) Option {
	return func(s *Server) { s.remote = r }
}

// WithMetrics serves h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// NewServer creates a Server with routes and middleware configured from cfg.
func NewServer(service *core.Service, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(middleware.SecurityHeaders(s.cfg.Security.EnableCSP))
}

// rateLimit returns a limiter middleware, or a pass-through when rate
// limiting is disabled.
func (s *Server) rateLimit(perMinute int) func(http.Handler) http.Handler {
	if !s.cfg.Rate.Enabled || perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	rl := middleware.NewRateLimiter(perMinute, time.Minute)
	s.limits = append(s.limits, rl)
	return rl.Handler
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Security.RequireAPIKey, s.cfg.Security.APIKeys))

		// Uploads are bounded by their own limit and by the ingest timeout
		// rather than the request timeout.
		r.With(s.rateLimit(s.cfg.Rate.UploadLimit)).Post("/reports", s.handleUpload)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit(s.cfg.Rate.RequestsPerMinute))
			r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

			r.Get("/reports", s.handleListReports)
			r.Get("/reports/{id}", s.handleGetReport)
			r.Get("/reports/{id}/artifacts", s.handleListArtifacts)

			r.Get("/records", s.handleListRecords)
			r.Get("/records/{id}", s.handleGetRecord)
			r.Patch("/records/{id}", s.handleUpdateRecord)
			r.Post("/records/{id}/correct", s.handleCorrectRecord)
			r.Delete("/records/{id}", s.handleDeleteRecord)

			r.Post("/sample", s.handleLoadSample)
			r.Post("/clear", s.handleClear)

			r.Get("/stats", s.handleStats)
			r.Get("/charts", s.handleCharts)
		})
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	c := s.cfg.Server
	s.server = &http.Server{
		Addr:         c.Addr(),
		Handler:      s.router,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		IdleTimeout:  c.IdleTimeout,
	}

	slog.Info("starting server", "addr", c.Addr())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limits {
		rl.Stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
