package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is the body of lock and unlock
type StatusResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}
