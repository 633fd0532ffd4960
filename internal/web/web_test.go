package web

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/homelab/fleetdash/internal/api"
	"github.com/jbweber/homelab/fleetdash/internal/datastore"
	"github.com/jbweber/homelab/fleetdash/internal/domain"
	"github.com/jbweber/homelab/fleetdash/internal/gateway"
	"github.com/jbweber/homelab/fleetdash/internal/session"
	"github.com/jbweber/homelab/fleetdash/internal/testutil"
	"github.com/jbweber/homelab/fleetdash/internal/textgen"
)

type harness struct {
	t        *testing.T
	ds       *datastore.Datastore
	dash     *httptest.Server
	sessions *session.Manager
}

// newHarness runs the dashboard against a seeded reference backend
func newHarness(t *testing.T) *harness {
	t.Helper()
	ds := testutil.SeededDatastore(t)
	backend := httptest.NewServer(api.NewRouter(api.NewAPI(ds,
		api.WithPasswordGenerator(func() (string, error) { return "Temp0rary-Pass", nil }))))
	t.Cleanup(backend.Close)

	return newHarnessFor(t, ds, backend.URL+"/api")
}

func newHarnessFor(t *testing.T, ds *datastore.Datastore, backendURL string) *harness {
	t.Helper()
	reg := prometheus.NewRegistry()
	gw := gateway.New(backendURL, gateway.WithRegisterer(reg))
	sessions := session.NewManager(gw, textgen.NewAssistant(nil), time.Hour, nil)

	srv, err := NewServer(sessions, Settings{
		BackendURL: gw.BaseURL(),
		ExportURL:  gw.ExportURL(),
		Model:      "gemini-2.5-flash",
	}, WithGatherer(reg))
	require.NoError(t, err)

	dash := httptest.NewServer(srv.Routes())
	t.Cleanup(dash.Close)
	return &harness{t: t, ds: ds, dash: dash, sessions: sessions}
}

// browser is an HTTP client with its own cookie jar, i.e. its own session
func (h *harness) browser() *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(h.t, err)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func (h *harness) get(c *http.Client, path string) (int, string) {
	h.t.Helper()
	resp, err := c.Get(h.dash.URL + path)
	require.NoError(h.t, err)
	return readBody(h.t, resp)
}

func (h *harness) post(c *http.Client, path string, form url.Values) (int, string, string) {
	h.t.Helper()
	resp, err := c.PostForm(h.dash.URL+path, form)
	require.NoError(h.t, err)
	final := resp.Request.URL.RequestURI()
	code, body := readBody(h.t, resp)
	return code, body, final
}

func readBody(t *testing.T, resp *http.Response) (int, string) {
	t.Helper()
	defer func() {
		_ = resp.Body.Close()
	}()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestDashboard_LoadsFleet(t *testing.T) {
	h := newHarness(t)
	c := h.browser()

	code, body := h.get(c, "/")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Primary Web Server")
	assert.Contains(t, body, "Database Node A")
	assert.Contains(t, body, "Dev Environment")
	assert.Contains(t, body, "ID: srv-001")
	assert.Contains(t, body, `id="stat-total">3<`)
	assert.Contains(t, body, `id="stat-online">2<`)
	assert.Contains(t, body, `id="stat-maintenance">1<`)
	assert.Contains(t, body, `href="/servers/srv-001/users"`)
	assert.Contains(t, body, `href="/users/new?server=srv-002"`)
	assert.Equal(t, 1, h.sessions.Len())
}

func TestDashboard_SearchAndFilterPersistInSession(t *testing.T) {
	h := newHarness(t)
	c := h.browser()

	_, body := h.get(c, "/?q=database")
	assert.Contains(t, body, "Database Node A")
	assert.NotContains(t, body, "Primary Web Server")
	assert.Contains(t, body, `id="stat-total">3<`, "stats ignore the filter")

	_, body = h.get(c, "/")
	assert.Contains(t, body, "Database Node A")
	assert.NotContains(t, body, "Primary Web Server")

	_, body = h.get(c, "/?q=&status=MAINTENANCE")
	assert.Contains(t, body, "Dev Environment")
	assert.NotContains(t, body, "Database Node A")

	_, body = h.get(c, "/?q=database")
	assert.Contains(t, body, "No servers match your filters.")

	other := h.browser()
	_, body = h.get(other, "/")
	assert.Contains(t, body, "Primary Web Server")
	assert.Contains(t, body, "Database Node A")
	assert.Equal(t, 2, h.sessions.Len())
}

func TestDashboard_UnknownStatusMeansAll(t *testing.T) {
	h := newHarness(t)
	_, body := h.get(h.browser(), "/?status=BOGUS")
	assert.Contains(t, body, "Primary Web Server")
	assert.Contains(t, body, "Dev Environment")
}

func TestDashboard_BackendUnavailable(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	backendURL := down.URL
	down.Close()

	h := newHarnessFor(t, nil, backendURL)
	code, body := h.get(h.browser(), "/")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `class="alert error"`)
	assert.Contains(t, body, `id="stat-total">0<`)
}

func TestRefresh_PicksUpBackendChanges(t *testing.T) {
	h := newHarness(t)
	c := h.browser()

	_, body := h.get(c, "/?status=ONLINE")
	assert.NotContains(t, body, "Edge Cache")

	_, err := h.ds.SaveServer(context.Background(), domain.Server{
		ID: "srv-004", Name: "Edge Cache", IP: "10.0.4.1", OS: "Debian 12", Status: domain.StatusOnline,
	})
	require.NoError(t, err)

	_, body = h.get(c, "/")
	assert.NotContains(t, body, "Edge Cache", "servers are only fetched on demand")

	code, body, final := h.post(c, "/refresh", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "/?status=ONLINE", final)
	assert.Contains(t, body, "Edge Cache")
	assert.Contains(t, body, `id="stat-total">4<`)
}

func TestServerUsers(t *testing.T) {
	h := newHarness(t)
	c := h.browser()

	code, body := h.get(c, "/servers/srv-001/users")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Users on Primary Web Server")
	assert.Contains(t, body, `id="user-deploy"`)
	assert.Contains(t, body, `id="user-jsmith"`)
	assert.Contains(t, body, `id="user-backup"`)
	assert.Contains(t, body, "3 Users")
	assert.Contains(t, body, "/api/users/export")

	_, body = h.get(c, "/servers/srv-003/users")
	assert.Contains(t, body, `id="user-devuser"`)
	assert.NotContains(t, body, `id="user-deploy"`)
}

func TestServerUsers_UnknownServer(t *testing.T) {
	h := newHarness(t)
	_, body := h.get(h.browser(), "/servers/srv-999/users")
	assert.Contains(t, body, "Server not found")
	assert.Contains(t, body, "No users found on this server.")
}

func TestToggleLock(t *testing.T) {
	h := newHarness(t)
	c := h.browser()
	ctx := context.Background()

	h.get(c, "/servers/srv-001/users")

	code, body, final := h.post(c, "/servers/srv-001/users/jsmith/toggle", url.Values{"status": {"active"}})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "/servers/srv-001/users", final)
	assert.NotContains(t, body, `class="alert error"`)

	u, err := h.ds.GetUser(ctx, "srv-001", "jsmith")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, string(domain.UserLocked), u.Status)

	// the store's copy wins over a stale form value
	h.post(c, "/servers/srv-001/users/backup/toggle", url.Values{"status": {"active"}})
	u, err = h.ds.GetUser(ctx, "srv-001", "backup")
	require.NoError(t, err)
	assert.Equal(t, string(domain.UserActive), u.Status)
}

func TestToggleLock_UnknownUser(t *testing.T) {
	h := newHarness(t)
	c := h.browser()

	h.get(c, "/servers/srv-001/users")
	_, body, _ := h.post(c, "/servers/srv-001/users/ghost/toggle", nil)
	assert.Contains(t, body, "Action failed: User not found")
	assert.Contains(t, body, `id="user-deploy"`, "users are kept on failure")
}

func TestCreateUser_Success(t *testing.T) {
	h := newHarness(t)
	c := h.browser()

	_, body := h.get(c, "/users/new?server=srv-002")
	assert.Contains(t, body, `<option value="srv-002" selected>Database Node A</option>`)

	code, body, final := h.post(c, "/users/new", url.Values{
		"action":   {"submit"},
		"serverId": {"srv-002"},
		"fullName": {"Alice Example"},
		"username": {"alice"},
		"email":    {"alice@example.com"},
		"role":     {"admin"},
		"sudo":     {"on"},
		"expiry":   {"2027-01-31"},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "/", final)
	assert.Contains(t, body, "User alice created.")

	u, err := h.ds.GetUser(context.Background(), "srv-002", "alice")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "Alice Example", u.FullName)

	_, body = h.get(c, "/")
	assert.NotContains(t, body, "User alice created.", "flash is shown once")

	_, body = h.get(c, "/users/new")
	assert.NotContains(t, body, "Alice Example", "draft is cleared after success")
}

func TestCreateUser_RefreshesScopedUsers(t *testing.T) {
	h := newHarness(t)
	c := h.browser()

	_, body := h.get(c, "/servers/srv-003/users")
	assert.NotContains(t, body, `id="user-carol"`)

	h.post(c, "/users/new", url.Values{
		"action":   {"submit"},
		"serverId": {"srv-003"},
		"username": {"carol"},
		"expiry":   {"2027-01-31"},
	})

	_, body = h.get(c, "/servers/srv-003/users")
	assert.Contains(t, body, `id="user-carol"`)
}

func TestCreateUser_BackendRejection(t *testing.T) {
	h := newHarness(t)
	c := h.browser()

	code, body, final := h.post(c, "/users/new", url.Values{
		"action":   {"submit"},
		"serverId": {"srv-001"},
		"fullName": {"Root Person"},
		"username": {"root"},
		"expiry":   {"2027-01-31"},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "/users/new", final)
	assert.Contains(t, body, "Username already exists.")
	assert.Contains(t, body, `value="Root Person"`)
	assert.Contains(t, body, `value="root"`)
}

func TestCreateUser_NoServerSelected(t *testing.T) {
	h := newHarness(t)
	_, body, final := h.post(h.browser(), "/users/new", url.Values{
		"action":   {"submit"},
		"username": {"dave"},
	})
	assert.Equal(t, "/users/new", final)
	assert.Contains(t, body, "Select a target server.")
}

func TestCreateUser_FieldErrors(t *testing.T) {
	h := newHarness(t)
	_, body, _ := h.post(h.browser(), "/users/new", url.Values{
		"action":   {"submit"},
		"serverId": {"srv-001"},
		"email":    {"not-an-email"},
		"expiry":   {"31/01/2027"},
	})
	assert.Contains(t, body, "Please correct the highlighted fields.")
	assert.Contains(t, body, "Username is required.")
	assert.Contains(t, body, "Enter a valid email address.")
	assert.Contains(t, body, "Use the YYYY-MM-DD date format.")
}

func TestCreateUser_ExpiryRequired(t *testing.T) {
	h := newHarness(t)
	_, body, final := h.post(h.browser(), "/users/new", url.Values{
		"action":   {"submit"},
		"serverId": {"srv-001"},
		"username": {"erin"},
	})
	assert.Equal(t, "/users/new", final)
	assert.Contains(t, body, "Expiry date is required.")

	u, err := h.ds.GetUser(context.Background(), "srv-001", "erin")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestCreateUser_SuggestAndDraftEmail(t *testing.T) {
	h := newHarness(t)
	c := h.browser()

	_, body, _ := h.post(c, "/users/new", url.Values{
		"action":   {"suggest"},
		"serverId": {"srv-001"},
		"fullName": {"Jane Doe"},
	})
	assert.Contains(t, body, `value="`+textgen.FallbackUsername("Jane Doe")+`"`)
	assert.Contains(t, body, "AI assistant offline")

	_, body, _ = h.post(c, "/users/new", url.Values{
		"action":   {"email"},
		"serverId": {"srv-001"},
		"fullName": {"Jane Doe"},
		"username": {"janedoe"},
	})
	expected := textgen.FallbackWelcomeEmail("Jane Doe", "janedoe", "Primary Web Server")
	firstLine := strings.SplitN(expected, "\n", 2)[0]
	assert.Contains(t, body, firstLine)
}

func TestCreateUser_Cancel(t *testing.T) {
	h := newHarness(t)
	c := h.browser()

	h.post(c, "/users/new", url.Values{"action": {"suggest"}, "fullName": {"Jane Doe"}})
	_, _, final := h.post(c, "/users/new", url.Values{"action": {"cancel"}})
	assert.Equal(t, "/", final)

	_, body := h.get(c, "/users/new")
	assert.NotContains(t, body, "Jane Doe")
}

func TestSettings(t *testing.T) {
	h := newHarness(t)
	_, body := h.get(h.browser(), "/settings")
	assert.Contains(t, body, "Portal Settings")
	assert.Contains(t, body, "/api</td>")
	assert.Contains(t, body, "/api/users/export")
	assert.Contains(t, body, "Offline, using built-in templates")
}

func TestHealthzAndMetrics(t *testing.T) {
	h := newHarness(t)
	c := h.browser()

	code, body := h.get(c, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok\n", body)

	h.get(c, "/")
	code, body = h.get(c, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `fleetdash_gateway_requests_total{operation="fetch_servers",outcome="success"} 1`)
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, "", sparkline(nil))
	assert.Equal(t, "0,16 120,16", sparkline([]domain.StatsPoint{{Time: "10:00", Usage: 50}}))
	assert.Equal(t, "0.0,32 60.0,0 120.0,32", sparkline([]domain.StatsPoint{
		{Time: "10:00", Usage: 0}, {Time: "10:05", Usage: 100}, {Time: "10:10", Usage: 0},
	}))
	assert.Equal(t, "0,0 120,0", sparkline([]domain.StatsPoint{{Usage: 150}}), "usage is clamped")
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "online", statusClass(domain.StatusOnline))
	assert.Equal(t, "maintenance", statusClass(domain.StatusMaintenance))
	assert.Equal(t, "offline", statusClass(domain.StatusOffline))
	assert.Equal(t, "offline", statusClass(""))
}
