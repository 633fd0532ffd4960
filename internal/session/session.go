// Package session keeps per-browser dashboard state in memory. Each session
// owns its own view store and provisioning form; nothing outlives the process.
package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jbweber/homelab/fleetdash/internal/domain"
	"github.com/jbweber/homelab/fleetdash/internal/store"
	"github.com/jbweber/homelab/fleetdash/internal/workflow"
)

// Backend is everything a session needs from the backend gateway
type Backend interface {
	store.Gateway
	workflow.UserCreator
}

// FlashKind selects how a flash message is rendered
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
)

// Flash is a one-shot message shown on the next rendered page
type Flash struct {
	Kind    FlashKind
	Message string
}

// Session is the state of one browser
type Session struct {
	ID    string
	Store *store.Store
	Form  *workflow.Form

	mu       sync.Mutex
	flash    *Flash
	lastSeen time.Time
}

func newSession(id string, backend Backend, assistant workflow.Assistant, logger *slog.Logger, now time.Time) *Session {
	logger = logger.With(slog.String("session_id", id))
	st := store.New(backend, logger)
	s := &Session{
		ID:       id,
		Store:    st,
		Form:     workflow.New(backend, assistant, st, logger),
		lastSeen: now,
	}
	s.Form.OnSuccess = func(created domain.ServerUser) {
		s.SetFlash(FlashSuccess, fmt.Sprintf("User %s created.", created.Username))
		s.Form.Reset()
	}
	return s
}

// SetFlash replaces the pending flash message
func (s *Session) SetFlash(kind FlashKind, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flash = &Flash{Kind: kind, Message: msg}
}

// PopFlash returns and clears the pending flash message
func (s *Session) PopFlash() *Flash {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.flash
	s.flash = nil
	return f
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

// LastSeen is when the session was last used
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
