// Package web serves the dashboard pages. Every request resolves its
// browser session and drives that session's view store and provisioning
// form; pages are rendered on the server from embedded templates.
package web

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jbweber/homelab/fleetdash/internal/session"
)

// Settings is the read-only configuration shown on the settings page
type Settings struct {
	BackendURL  string
	ExportURL   string
	Model       string
	AIAvailable bool
}

// Server renders the dashboard for all sessions
type Server struct {
	sessions  *session.Manager
	settings  Settings
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
	templates map[string]*template.Template
}

// Option configures a Server
type Option func(*Server)

// WithGatherer sets the registry exposed on /metrics
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer parses the page templates and returns a ready Server
func NewServer(sessions *session.Manager, settings Settings, opts ...Option) (*Server, error) {
	s := &Server{
		sessions: sessions,
		settings: settings,
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	s.templates = templates
	return s, nil
}

// Routes returns the dashboard router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.dashboard)
	r.Post("/refresh", s.refresh)

	r.Route("/servers/{serverID}/users", func(r chi.Router) {
		r.Get("/", s.serverUsers)
		r.Post("/{username}/toggle", s.toggleLock)
	})

	r.Get("/users/new", s.newUser)
	r.Post("/users/new", s.newUserAction)

	r.Get("/settings", s.settingsPage)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return r
}
