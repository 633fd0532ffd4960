package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/homelab/fleetdash/internal/domain"
)

func newTestClient(t *testing.T, r http.Handler) (*Client, *prometheus.Registry) {
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	reg := prometheus.NewRegistry()
	return New(srv.URL+"/api/", WithRegisterer(reg)), reg
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestFetchServers_Success(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/servers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, []map[string]any{
			{"id": "srv-1", "name": "Web Prod 01", "ip": "10.0.1.10", "status": "ONLINE", "tags": []string{"Web"}},
			{"id": "srv-2", "name": "Narrow"},
		})
	})
	client, reg := newTestClient(t, r)

	res := client.FetchServers(context.Background())

	require.True(t, res.Success, res.Error)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "Web Prod 01", res.Data[0].Name)
	assert.Equal(t, domain.StatusOnline, res.Data[0].Status)
	assert.Equal(t, domain.StatusOffline, res.Data[1].Status)
	assert.Equal(t, domain.DefaultOS, res.Data[1].OS)
	assert.NotNil(t, res.Data[1].Tags)

	assert.Equal(t, 1.0, promtest.ToFloat64(client.metrics.requests.WithLabelValues("fetch_servers", "success")))
	count, err := promtest.GatherAndCount(reg, "fleetdash_gateway_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFetchServers_Envelope(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/servers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"success": true,
			"data":    []map[string]any{{"id": "srv-1", "name": "A", "status": "MAINTENANCE"}},
		})
	})
	client, _ := newTestClient(t, r)

	res := client.FetchServers(context.Background())

	require.True(t, res.Success)
	require.Len(t, res.Data, 1)
	assert.Equal(t, domain.StatusMaintenance, res.Data[0].Status)
}

func TestFetchServers_EnvelopeFailure(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/servers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"success": false, "error": "inventory offline"})
	})
	client, _ := newTestClient(t, r)

	res := client.FetchServers(context.Background())

	assert.False(t, res.Success)
	assert.Equal(t, "inventory offline", res.Error)
}

func TestFetchServers_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := New(url, WithRegisterer(prometheus.NewRegistry()))
	res := client.FetchServers(context.Background())

	assert.False(t, res.Success)
	assert.Equal(t, MsgUnreachable, res.Error)
	assert.Equal(t, 1.0, promtest.ToFloat64(client.metrics.requests.WithLabelValues("fetch_servers", "failure")))
}

func TestFetchServers_MalformedBody(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/servers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"servers": oops`))
	})
	client, _ := newTestClient(t, r)

	res := client.FetchServers(context.Background())

	assert.False(t, res.Success)
	assert.Equal(t, MsgBadResponse, res.Error)
}

func TestFetchUsers_EscapesServerID(t *testing.T) {
	r := chi.NewRouter()
	var got string
	r.Get("/api/users/{serverID}", func(w http.ResponseWriter, r *http.Request) {
		got = chi.URLParam(r, "serverID")
		writeJSON(t, w, http.StatusOK, []domain.ServerUser{
			{Username: "alice", UID: "1000", GID: "1000", Home: "/home/alice", Shell: "/bin/bash", Status: domain.UserLocked},
		})
	})
	client, _ := newTestClient(t, r)

	res := client.FetchUsers(context.Background(), "srv-001")

	require.True(t, res.Success)
	assert.Equal(t, "srv-001", got)
	require.Len(t, res.Data, 1)
	assert.True(t, res.Data[0].Locked())
}

func TestFetchUsers_NullBodyIsEmptyCollection(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/users/{serverID}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("null"))
	})
	client, _ := newTestClient(t, r)

	res := client.FetchUsers(context.Background(), "srv-1")

	require.True(t, res.Success)
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
}

func TestCreateUser_ApplicationError(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/users", func(w http.ResponseWriter, r *http.Request) {
		var req domain.UserCreationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "srv-1", req.ServerID)
		writeJSON(t, w, http.StatusConflict, map[string]string{"error": "Username already exists."})
	})
	client, _ := newTestClient(t, r)

	res := client.CreateUser(context.Background(), domain.UserCreationRequest{ServerID: "srv-1", Username: "error"})

	assert.False(t, res.Success)
	assert.Equal(t, "Username already exists.", res.Error)
}

func TestCreateUser_Created(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusCreated, domain.ServerUser{Username: "jdoe", UID: "1001", Status: domain.UserActive})
	})
	client, _ := newTestClient(t, r)

	res := client.CreateUser(context.Background(), domain.UserCreationRequest{ServerID: "srv-1", Username: "jdoe"})

	require.True(t, res.Success)
	assert.Equal(t, "jdoe", res.Data.Username)
	assert.Equal(t, "1001", res.Data.UID)
}

func TestLockAndUnlock(t *testing.T) {
	var calls []string
	r := chi.NewRouter()
	handler := func(w http.ResponseWriter, r *http.Request) {
		var ref domain.UserRef
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ref))
		calls = append(calls, r.URL.Path+":"+ref.ServerID+"/"+ref.Username)
		w.WriteHeader(http.StatusNoContent)
	}
	r.Post("/api/users/lock", handler)
	r.Post("/api/users/unlock", handler)
	client, _ := newTestClient(t, r)

	assert.True(t, client.LockUser(context.Background(), "srv-1", "alice").Success)
	assert.True(t, client.UnlockUser(context.Background(), "srv-1", "alice").Success)
	assert.Equal(t, []string{"/api/users/lock:srv-1/alice", "/api/users/unlock:srv-1/alice"}, calls)
}

func TestErrorMessage_Fallbacks(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "message field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, http.StatusBadRequest, map[string]string{"message": "bad user"})
			},
			want: "bad user",
		},
		{
			name: "plain text",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "User not found", http.StatusNotFound)
			},
			want: "User not found",
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			want: "Backend request failed: Bad Gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Post("/api/users/lock", tt.handler)
			client, _ := newTestClient(t, r)

			res := client.LockUser(context.Background(), "srv-1", "alice")

			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.Error)
		})
	}
}

func TestExportURL(t *testing.T) {
	client := New("http://backend:9090/api/", WithRegisterer(prometheus.NewRegistry()))
	assert.Equal(t, "http://backend:9090/api/users/export", client.ExportURL())
	assert.Equal(t, "http://backend:9090/api", client.BaseURL())
}

func TestNew_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New("http://a", WithRegisterer(reg))
	b := New("http://b", WithRegisterer(reg))
	assert.Same(t, a.metrics.requests, b.metrics.requests)
}
