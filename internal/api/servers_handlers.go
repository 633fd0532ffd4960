package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jbweber/homelab/fleetdash/internal/repository"
)

// ListServersHandler returns the whole fleet
func (a *API) ListServersHandler(w http.ResponseWriter, r *http.Request) {
	servers, err := a.serverRepo.FindAll(r.Context())
	if err != nil {
		a.logger.Error("failed to list servers", slog.String("error", err.Error()))
		writeError(w, a.logger, http.StatusInternalServerError, "Failed to list servers")
		return
	}
	writeJSON(w, a.logger, http.StatusOK, servers)
}

// GetServerHandler returns one server
func (a *API) GetServerHandler(w http.ResponseWriter, r *http.Request) {
	server, err := a.serverRepo.FindByID(r.Context(), chi.URLParam(r, "serverID"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, a.logger, http.StatusNotFound, "Server not found")
			return
		}
		a.logger.Error("failed to get server", slog.String("error", err.Error()))
		writeError(w, a.logger, http.StatusInternalServerError, "Failed to get server")
		return
	}
	writeJSON(w, a.logger, http.StatusOK, server)
}
