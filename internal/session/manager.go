package session

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/jbweber/homelab/fleetdash/internal/workflow"
)

// CookieName is the session cookie
const CookieName = "fleetdash_session"

// Manager tracks sessions by ID and expires idle ones
type Manager struct {
	backend   Backend
	assistant workflow.Assistant
	ttl       time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	cron *cron.Cron
}

// NewManager creates a session manager. Sessions idle for longer than ttl
// are removed by Sweep.
func NewManager(backend Backend, assistant workflow.Assistant, ttl time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		backend:   backend,
		assistant: assistant,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[string]*Session),
		cron:      cron.New(),
	}
}

// Get returns the session with the given ID and marks it as used
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.touch(m.now())
	}
	return s, ok
}

// Create starts a new empty session
func (m *Manager) Create() *Session {
	s := newSession(uuid.NewString(), m.backend, m.assistant, m.logger, m.now())

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Debug("session created", slog.String("session_id", s.ID))
	return s
}

// Delete drops a session
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len is the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// FromRequest resolves the request's session, starting a new one and setting
// the cookie when the request carries none or an expired one.
func (m *Manager) FromRequest(w http.ResponseWriter, r *http.Request) *Session {
	if c, err := r.Cookie(CookieName); err == nil {
		if s, ok := m.Get(c.Value); ok {
			return s
		}
	}

	s := m.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return s
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("expired idle sessions", slog.Int("removed", removed), slog.Int("remaining", len(m.sessions)))
	}
	return removed
}

// StartSweeper schedules Sweep with a cron spec such as "@every 1m"
func (m *Manager) StartSweeper(spec string) error {
	if _, err := m.cron.AddFunc(spec, func() { m.Sweep() }); err != nil {
		return fmt.Errorf("failed to schedule session sweeper: %w", err)
	}
	m.cron.Start()
	return nil
}

// Stop halts the sweeper and waits for a running sweep to finish
func (m *Manager) Stop() {
	<-m.cron.Stop().Done()
}
