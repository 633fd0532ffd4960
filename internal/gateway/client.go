// Package gateway is the dashboard's only path to the server management
// backend. Every operation issues exactly one HTTP request and reports the
// outcome as a domain.Response; failures are never returned as Go errors.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jbweber/homelab/fleetdash/internal/domain"
)

// Messages shown to the user for failures that carry no backend text
const (
	MsgUnreachable = "Unable to reach the server management backend. Check your connection and try again."
	MsgBadResponse = "Unexpected response from backend."
)

// maxErrorBody bounds how much of a failed response is read for its message
const maxErrorBody = 64 << 10

// Client talks to the remote inventory and user-management API
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics
	tracer  trace.Tracer
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger used for request logging
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRegisterer registers the client's collectors with reg instead of the
// default Prometheus registry
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.metrics = newMetrics(reg)
	}
}

// New creates a Client for the API rooted at baseURL, e.g. http://host:9090/api
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{},
		logger:  slog.Default(),
		tracer:  otel.Tracer("github.com/jbweber/homelab/fleetdash/internal/gateway"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = newMetrics(prometheus.DefaultRegisterer)
	}
	return c
}

// BaseURL returns the API root the client was configured with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchServers returns the full server collection
func (c *Client) FetchServers(ctx context.Context) domain.Response[[]domain.Server] {
	var servers []domain.Server
	res := do(ctx, c, "fetch_servers", http.MethodGet, "/servers", nil, &servers)
	if !res.Success {
		return domain.Fail[[]domain.Server](res.Error)
	}
	return domain.OK(domain.NormalizeServers(servers))
}

// FetchUsers returns the accounts on one server
func (c *Client) FetchUsers(ctx context.Context, serverID string) domain.Response[[]domain.ServerUser] {
	var users []domain.ServerUser
	res := do(ctx, c, "fetch_users", http.MethodGet, "/users/"+url.PathEscape(serverID), nil, &users)
	if !res.Success {
		return domain.Fail[[]domain.ServerUser](res.Error)
	}
	if users == nil {
		users = []domain.ServerUser{}
	}
	return domain.OK(domain.NormalizeUsers(users))
}

// CreateUser provisions a new account. The created user is returned when the
// backend includes it in the response body.
func (c *Client) CreateUser(ctx context.Context, req domain.UserCreationRequest) domain.Response[domain.ServerUser] {
	var created domain.ServerUser
	res := do(ctx, c, "create_user", http.MethodPost, "/users", req, &created)
	if !res.Success {
		return domain.Fail[domain.ServerUser](res.Error)
	}
	return domain.OK(created)
}

// LockUser locks an account
func (c *Client) LockUser(ctx context.Context, serverID, username string) domain.Response[struct{}] {
	return do(ctx, c, "lock_user", http.MethodPost, "/users/lock", domain.UserRef{ServerID: serverID, Username: username}, nil)
}

// UnlockUser unlocks an account
func (c *Client) UnlockUser(ctx context.Context, serverID, username string) domain.Response[struct{}] {
	return do(ctx, c, "unlock_user", http.MethodPost, "/users/unlock", domain.UserRef{ServerID: serverID, Username: username}, nil)
}

// ExportURL is the download link for the user export. It is never fetched
// by the client itself.
func (c *Client) ExportURL() string {
	return c.baseURL + "/users/export"
}

// do performs one request. out may be nil when the payload is not needed.
func do(ctx context.Context, c *Client, op, method, path string, body any, out any) domain.Response[struct{}] {
	ctx, span := c.tracer.Start(ctx, "gateway."+op, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	))
	defer span.End()

	start := time.Now()
	res := c.roundTrip(ctx, method, path, body, out)
	elapsed := time.Since(start)

	outcome := "success"
	if !res.Success {
		outcome = "failure"
		span.SetStatus(codes.Error, res.Error)
	}
	c.metrics.observe(op, outcome, elapsed)

	c.logger.Debug("backend request",
		slog.String("op", op),
		slog.String("method", method),
		slog.String("path", path),
		slog.String("outcome", outcome),
		slog.Duration("elapsed", elapsed))

	return res
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any, out any) domain.Response[struct{}] {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			c.logger.Error("failed to encode request body", slog.String("path", path), slog.Any("error", err))
			return domain.Fail[struct{}]("Failed to encode request.")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		c.logger.Error("failed to build request", slog.String("path", path), slog.Any("error", err))
		return domain.Fail[struct{}](MsgUnreachable)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend unreachable", slog.String("path", path), slog.Any("error", err))
		return domain.Fail[struct{}](MsgUnreachable)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug("failed to close response body", slog.Any("error", err))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Fail[struct{}](errorMessage(resp))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("failed to read response body", slog.String("path", path), slog.Any("error", err))
		return domain.Fail[struct{}](MsgUnreachable)
	}
	return decodeSuccess(raw, out)
}

// decodeSuccess decodes a 2xx body into out. The body may be the raw payload
// or a {success, data, error} envelope.
func decodeSuccess(raw []byte, out any) domain.Response[struct{}] {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return domain.OK(struct{}{})
	}

	var env struct {
		Success *bool           `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	if raw[0] == '{' && json.Unmarshal(raw, &env) == nil && env.Success != nil {
		if !*env.Success {
			return domain.Fail[struct{}](firstNonEmpty(env.Error, env.Message))
		}
		raw = env.Data
	}

	if out == nil || len(raw) == 0 || string(raw) == "null" {
		return domain.OK(struct{}{})
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.Fail[struct{}](MsgBadResponse)
	}
	return domain.OK(struct{}{})
}

// errorMessage extracts the backend's message from a failed response, falling
// back to the HTTP status text.
func errorMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	raw = bytes.TrimSpace(raw)

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if len(raw) > 0 && json.Unmarshal(raw, &body) == nil {
		if msg := firstNonEmpty(body.Error, body.Message); msg != "" {
			return msg
		}
	}

	ct := resp.Header.Get("Content-Type")
	if len(raw) > 0 && len(raw) <= 200 && strings.HasPrefix(ct, "text/plain") {
		return string(raw)
	}

	return fmt.Sprintf("Backend request failed: %s", http.StatusText(resp.StatusCode))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
