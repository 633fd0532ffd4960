package api

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jbweber/homelab/fleetdash/internal/datastore"
	"github.com/jbweber/homelab/fleetdash/internal/domain"
	"github.com/jbweber/homelab/fleetdash/internal/testutil"
)

const fixedPassword = "Temp0rary-Pass"

func setupTestAPI(t *testing.T) (http.Handler, *datastore.Datastore) {
	t.Helper()
	ds := testutil.SeededDatastore(t)
	a := NewAPI(ds, WithPasswordGenerator(func() (string, error) { return fixedPassword, nil }))
	return NewRouter(a), ds
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Error
}

func TestListServers(t *testing.T) {
	h, _ := setupTestAPI(t)

	w := doJSON(t, h, http.MethodGet, "/api/servers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var servers []domain.Server
	require.NoError(t, json.NewDecoder(w.Body).Decode(&servers))
	require.Len(t, servers, 3)
	assert.Equal(t, "Primary Web Server", servers[0].Name)
	assert.Equal(t, 45, servers[0].Stats.CPU)
	assert.Equal(t, domain.StatusMaintenance, servers[2].Status)
}

func TestGetServer(t *testing.T) {
	h, _ := setupTestAPI(t)

	w := doJSON(t, h, http.MethodGet, "/api/servers/srv-002", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/servers/srv-404", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Server not found", decodeError(t, w))
}

func TestListUsers(t *testing.T) {
	h, _ := setupTestAPI(t)

	w := doJSON(t, h, http.MethodGet, "/api/users/srv-001", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var users []domain.ServerUser
	require.NoError(t, json.NewDecoder(w.Body).Decode(&users))
	require.Len(t, users, 3)
	assert.Equal(t, domain.ServerUser{
		Username: "deploy", UID: "1000", GID: "1000", Home: "/home/deploy", Shell: "/bin/bash", Status: domain.UserActive,
	}, users[0])
	assert.True(t, users[2].Locked())
}

func TestListUsers_UnknownServer(t *testing.T) {
	h, _ := setupTestAPI(t)

	w := doJSON(t, h, http.MethodGet, "/api/users/srv-404", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Server not found", decodeError(t, w))
}

func TestCreateUser(t *testing.T) {
	h, ds := setupTestAPI(t)

	w := doJSON(t, h, http.MethodPost, "/api/users", domain.UserCreationRequest{
		ServerID: "srv-003",
		Username: "jdoe",
		FullName: "Jane Doe",
		Email:    "jane@example.com",
		Role:     domain.RoleAdmin,
		Sudo:     true,
		Expiry:   "2026-12-31",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created domain.ServerUser
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, domain.ServerUser{
		Username: "jdoe", UID: "1001", GID: "1001", Home: "/home/jdoe", Shell: "/bin/bash", Status: domain.UserActive,
	}, created)

	stored, err := ds.GetUser(t.Context(), "srv-003", "jdoe")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "admin", stored.Role)
	assert.True(t, stored.Sudo)
	assert.Equal(t, "2026-12-31", stored.Expiry)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(fixedPassword)))
}

func TestCreateUser_PasswordNeverExposed(t *testing.T) {
	ds := testutil.SeededDatastore(t)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := NewRouter(NewAPI(ds,
		WithLogger(logger),
		WithPasswordGenerator(func() (string, error) { return fixedPassword, nil })))

	w := doJSON(t, h, http.MethodPost, "/api/users", domain.UserCreationRequest{
		ServerID: "srv-003",
		Username: "jdoe",
		Expiry:   "2026-12-31",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), fixedPassword)

	export := doJSON(t, h, http.MethodGet, "/api/users/export", nil)
	require.Equal(t, http.StatusOK, export.Code)
	assert.NotContains(t, export.Body.String(), fixedPassword)

	assert.NotContains(t, logs.String(), fixedPassword)
}

func TestCreateUser_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
		msg    string
	}{
		{"reserved error name", domain.UserCreationRequest{ServerID: "srv-001", Username: "error"}, http.StatusConflict, "Username already exists."},
		{"duplicate", domain.UserCreationRequest{ServerID: "srv-001", Username: "deploy"}, http.StatusConflict, "Username already exists."},
		{"unknown server", domain.UserCreationRequest{ServerID: "srv-404", Username: "jdoe"}, http.StatusNotFound, "Server not found"},
		{"missing server", domain.UserCreationRequest{Username: "jdoe"}, http.StatusBadRequest, "Server ID is required"},
		{"invalid username", domain.UserCreationRequest{ServerID: "srv-001", Username: "Bad Name"}, http.StatusBadRequest, "Invalid username"},
		{"empty username", domain.UserCreationRequest{ServerID: "srv-001"}, http.StatusBadRequest, "Invalid username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setupTestAPI(t)
			w := doJSON(t, h, http.MethodPost, "/api/users", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.msg, decodeError(t, w))
		})
	}
}

func TestCreateUser_InvalidJSON(t *testing.T) {
	h, _ := setupTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid JSON", decodeError(t, w))
}

func TestLockAndUnlock(t *testing.T) {
	h, ds := setupTestAPI(t)
	ref := domain.UserRef{ServerID: "srv-001", Username: "jsmith"}

	w := doJSON(t, h, http.MethodPost, "/api/users/lock", ref)
	require.Equal(t, http.StatusOK, w.Code)
	var status StatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "locked", status.Status)

	u, err := ds.GetUser(t.Context(), "srv-001", "jsmith")
	require.NoError(t, err)
	assert.Equal(t, "locked", u.Status)

	w = doJSON(t, h, http.MethodPost, "/api/users/lock", ref)
	assert.Equal(t, http.StatusOK, w.Code, "locking a locked user is idempotent")

	w = doJSON(t, h, http.MethodPost, "/api/users/unlock", ref)
	require.Equal(t, http.StatusOK, w.Code)
	u, err = ds.GetUser(t.Context(), "srv-001", "jsmith")
	require.NoError(t, err)
	assert.Equal(t, "active", u.Status)
}

func TestLock_UnknownUser(t *testing.T) {
	h, _ := setupTestAPI(t)

	w := doJSON(t, h, http.MethodPost, "/api/users/lock", domain.UserRef{ServerID: "srv-001", Username: "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", decodeError(t, w))
}

func TestExportUsers(t *testing.T) {
	h, _ := setupTestAPI(t)

	w := doJSON(t, h, http.MethodGet, "/api/users/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "users.csv")

	records, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 7)
	assert.Equal(t, exportHeader, records[0])
	assert.Equal(t, []string{"srv-001", "deploy", "1000", "1000", "/home/deploy", "/bin/bash", "active", "", "", "developer", "false", ""}, records[1])
}

func TestHealthz(t *testing.T) {
	h, _ := setupTestAPI(t)

	w := doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRandomPassword(t *testing.T) {
	a, err := RandomPassword()
	require.NoError(t, err)
	b, err := RandomPassword()
	require.NoError(t, err)

	assert.Len(t, a, passwordLength)
	assert.NotEqual(t, a, b)
	for _, c := range a {
		assert.Contains(t, passwordAlphabet, string(c))
	}
}
