// Package api is the reference fleet backend: the HTTP endpoints the
// dashboard's gateway talks to, backed by the sqlite datastore.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jbweber/homelab/fleetdash/internal/datastore"
	"github.com/jbweber/homelab/fleetdash/internal/repository"
)

// API holds repository dependencies for the backend handlers
type API struct {
	serverRepo repository.ServerRepository
	userRepo   repository.UserRepository
	passwords  PasswordGenerator
	logger     *slog.Logger
}

// Option configures the API
type Option func(*API)

// WithPasswordGenerator replaces the temporary password generator
func WithPasswordGenerator(g PasswordGenerator) Option {
	return func(a *API) {
		a.passwords = g
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// NewAPI creates the backend API over ds
func NewAPI(ds *datastore.Datastore, opts ...Option) *API {
	a := &API{
		serverRepo: repository.NewServerRepository(ds),
		userRepo:   repository.NewUserRepository(ds),
		passwords:  RandomPassword,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RegisterRoutes mounts the backend endpoints on r
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/servers", a.ListServersHandler)
	r.Get("/servers/{serverID}", a.GetServerHandler)

	r.Route("/users", func(r chi.Router) {
		r.Post("/", a.CreateUserHandler)
		r.Get("/export", a.ExportUsersHandler)
		r.Post("/lock", a.LockUserHandler)
		r.Post("/unlock", a.UnlockUserHandler)
		r.Get("/{serverID}", a.ListUsersHandler)
	})
}

// NewRouter returns the backend's HTTP handler with the API under /api
func NewRouter(a *API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", a.RegisterRoutes)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, a.logger, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}
