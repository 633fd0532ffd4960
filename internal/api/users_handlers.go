package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/jbweber/homelab/fleetdash/internal/datastore"
	"github.com/jbweber/homelab/fleetdash/internal/domain"
	"github.com/jbweber/homelab/fleetdash/internal/repository"
)

const (
	msgServerNotFound = "Server not found"
	msgUserNotFound   = "User not found"
	msgUserExists     = "Username already exists."
	msgInvalidJSON    = "Invalid JSON"
	msgInvalidName    = "Invalid username"
)

// reservedUsernames are refused as if they were already taken
var reservedUsernames = map[string]bool{"error": true, "root": true}

var usernamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

// ListUsersHandler returns the accounts of one server
func (a *API) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverID")

	exists, err := a.serverRepo.ExistsByID(r.Context(), serverID)
	if err != nil {
		a.internalError(w, "failed to check server", err)
		return
	}
	if !exists {
		writeError(w, a.logger, http.StatusNotFound, msgServerNotFound)
		return
	}

	users, err := a.userRepo.FindByServer(r.Context(), serverID)
	if err != nil {
		a.internalError(w, "failed to list users", err)
		return
	}
	writeJSON(w, a.logger, http.StatusOK, lo.Map(users, func(u datastore.User, _ int) domain.ServerUser {
		return u.ToModel()
	}))
}

// CreateUserHandler provisions an account with a temporary password
func (a *API) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.UserCreationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, a.logger, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	req.ServerID = strings.TrimSpace(req.ServerID)
	req.Username = strings.TrimSpace(req.Username)

	if req.ServerID == "" {
		writeError(w, a.logger, http.StatusBadRequest, "Server ID is required")
		return
	}
	exists, err := a.serverRepo.ExistsByID(r.Context(), req.ServerID)
	if err != nil {
		a.internalError(w, "failed to check server", err)
		return
	}
	if !exists {
		writeError(w, a.logger, http.StatusNotFound, msgServerNotFound)
		return
	}

	if reservedUsernames[req.Username] {
		writeError(w, a.logger, http.StatusConflict, msgUserExists)
		return
	}
	if !usernamePattern.MatchString(req.Username) {
		writeError(w, a.logger, http.StatusBadRequest, msgInvalidName)
		return
	}

	// Only the hash is kept; the temporary password never leaves this handler.
	password, err := a.passwords()
	if err != nil {
		a.internalError(w, "failed to generate password", err)
		return
	}
	hash, err := hashPassword(password)
	if err != nil {
		a.internalError(w, "failed to hash password", err)
		return
	}

	created, err := a.userRepo.Save(r.Context(), datastore.User{
		ServerID:     req.ServerID,
		Username:     req.Username,
		Home:         datastore.HomeDir(req.Username),
		Shell:        datastore.DefaultShell,
		Status:       string(domain.UserActive),
		FullName:     req.FullName,
		Email:        req.Email,
		Role:         string(domain.ParseUserRole(string(req.Role))),
		SSHKey:       req.SSHKey,
		Sudo:         req.Sudo,
		Expiry:       req.Expiry,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeError(w, a.logger, http.StatusConflict, msgUserExists)
			return
		}
		a.internalError(w, "failed to create user", err)
		return
	}

	a.logger.Info("user created",
		slog.String("server_id", created.ServerID),
		slog.String("username", created.Username),
		slog.Int("uid", created.UID),
		slog.Bool("sudo", created.Sudo))
	writeJSON(w, a.logger, http.StatusCreated, created.ToModel())
}

// LockUserHandler locks an account
func (a *API) LockUserHandler(w http.ResponseWriter, r *http.Request) {
	a.setStatus(w, r, domain.UserLocked)
}

// UnlockUserHandler unlocks an account
func (a *API) UnlockUserHandler(w http.ResponseWriter, r *http.Request) {
	a.setStatus(w, r, domain.UserActive)
}

func (a *API) setStatus(w http.ResponseWriter, r *http.Request, status domain.UserStatus) {
	var ref domain.UserRef
	if err := json.NewDecoder(r.Body).Decode(&ref); err != nil {
		writeError(w, a.logger, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	err := a.userRepo.SetStatus(r.Context(), repository.UserKey{ServerID: ref.ServerID, Username: ref.Username}, status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, a.logger, http.StatusNotFound, msgUserNotFound)
			return
		}
		a.internalError(w, "failed to set user status", err)
		return
	}

	a.logger.Info("user status changed",
		slog.String("server_id", ref.ServerID),
		slog.String("username", ref.Username),
		slog.String("status", string(status)))
	writeJSON(w, a.logger, http.StatusOK, StatusResponse{Status: string(status)})
}

var exportHeader = []string{"server_id", "username", "uid", "gid", "home", "shell", "status", "full_name", "email", "role", "sudo", "expiry"}

// ExportUsersHandler streams every account as CSV
func (a *API) ExportUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := a.userRepo.FindAll(r.Context())
	if err != nil {
		a.internalError(w, "failed to export users", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="users.csv"`)

	cw := csv.NewWriter(w)
	rows := make([][]string, 0, len(users)+1)
	rows = append(rows, exportHeader)
	for _, u := range users {
		rows = append(rows, []string{
			u.ServerID, u.Username, strconv.Itoa(u.UID), strconv.Itoa(u.GID), u.Home, u.Shell,
			u.Status, u.FullName, u.Email, u.Role, strconv.FormatBool(u.Sudo), u.Expiry,
		})
	}
	if err := cw.WriteAll(rows); err != nil {
		a.logger.Error("failed to write export", slog.String("error", err.Error()))
	}
}

func (a *API) internalError(w http.ResponseWriter, msg string, err error) {
	a.logger.Error(msg, slog.String("error", err.Error()))
	writeError(w, a.logger, http.StatusInternalServerError, "Internal server error")
}
