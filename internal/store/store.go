// Package store holds the dashboard's view state for one session: the fetched
// server collection, the user collection of at most one server, loading and
// error flags, and the search/filter inputs from which derived views are
// computed.
//
// Collections are only ever replaced wholesale by a fetch, and every mutating
// action is followed by a re-fetch, so the displayed state never drifts from
// the backend by more than one round trip.
package store

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/jbweber/homelab/fleetdash/internal/domain"
)

// Gateway is the subset of the backend client the store needs
type Gateway interface {
	FetchServers(ctx context.Context) domain.Response[[]domain.Server]
	FetchUsers(ctx context.Context, serverID string) domain.Response[[]domain.ServerUser]
	LockUser(ctx context.Context, serverID, username string) domain.Response[struct{}]
	UnlockUser(ctx context.Context, serverID, username string) domain.Response[struct{}]
}

// Store is safe for concurrent use. Network calls run without holding the lock.
type Store struct {
	gw     Gateway
	logger *slog.Logger

	mu sync.Mutex

	servers        []domain.Server
	serversLoaded  bool
	loadingServers bool
	serversErr     string
	serversGen     uint64

	users         []domain.ServerUser
	usersServerID string
	loadingUsers  bool
	usersErr      string
	usersGen      uint64
	pendingUsers  map[string]struct{}

	searchQuery  string
	statusFilter domain.StatusFilter
}

// New creates an empty Store
func New(gw Gateway, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		gw:           gw,
		logger:       logger,
		statusFilter: domain.FilterAll,
	}
}

// LoadServers fetches the fleet and replaces the server collection. On
// failure the previous collection is kept and the error is recorded. The
// result of a load superseded by a later one is discarded.
func (s *Store) LoadServers(ctx context.Context) domain.Response[[]domain.Server] {
	s.mu.Lock()
	s.serversGen++
	gen := s.serversGen
	s.loadingServers = true
	s.mu.Unlock()

	res := s.gw.FetchServers(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.serversGen {
		s.logger.Debug("discarding superseded server load", slog.Uint64("generation", gen))
		return res
	}
	s.loadingServers = false
	if !res.Success {
		s.serversErr = res.Error
		s.logger.Warn("failed to load servers", slog.String("error", res.Error))
		return res
	}
	s.servers = res.Data
	s.serversLoaded = true
	s.serversErr = ""
	return res
}

// LoadUsers fetches the accounts of serverID and replaces the user
// collection. Switching to another server drops the previous server's users
// before the fetch starts.
func (s *Store) LoadUsers(ctx context.Context, serverID string) domain.Response[[]domain.ServerUser] {
	s.mu.Lock()
	s.usersGen++
	gen := s.usersGen
	if s.usersServerID != serverID {
		s.users = nil
		s.usersErr = ""
		clear(s.pendingUsers)
		s.usersServerID = serverID
	}
	s.loadingUsers = true
	s.mu.Unlock()

	res := s.gw.FetchUsers(ctx, serverID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.usersGen {
		s.logger.Debug("discarding superseded user load",
			slog.String("server_id", serverID), slog.Uint64("generation", gen))
		return res
	}
	s.loadingUsers = false
	if !res.Success {
		s.usersErr = res.Error
		s.logger.Warn("failed to load users", slog.String("server_id", serverID), slog.String("error", res.Error))
		return res
	}
	s.users = res.Data
	s.usersErr = ""
	return res
}

// SetSearchQuery updates the search input
func (s *Store) SetSearchQuery(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchQuery = q
}

// SetStatusFilter updates the status filter
func (s *Store) SetStatusFilter(f domain.StatusFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusFilter = domain.ParseStatusFilter(string(f))
}

// FilteredServers is the server collection narrowed by query and status filter
func (s *Store) FilteredServers() []domain.Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FilterServers(s.servers, s.searchQuery, s.statusFilter)
}

// Stats aggregates the full server collection, ignoring query and filter
func (s *Store) Stats() domain.FleetStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeStats(s.servers)
}

// Server looks up a server in the current collection
func (s *Store) Server(id string) (domain.Server, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, srv := range s.servers {
		if srv.ID == id {
			return srv, true
		}
	}
	return domain.Server{}, false
}

// ServersLoaded reports whether a server fetch has succeeded at least once
func (s *Store) ServersLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serversLoaded
}

// UsersServerID is the server the user collection currently belongs to
func (s *Store) UsersServerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usersServerID
}

// ToggleUserLock unlocks a locked account or locks an active one, then
// re-fetches the server's users. On failure the error is recorded and the
// user collection is left untouched.
func (s *Store) ToggleUserLock(ctx context.Context, serverID, username string, current domain.UserStatus) domain.Response[struct{}] {
	s.mu.Lock()
	if s.pendingUsers == nil {
		s.pendingUsers = make(map[string]struct{})
	}
	s.pendingUsers[username] = struct{}{}
	s.mu.Unlock()

	var res domain.Response[struct{}]
	if current == domain.UserLocked {
		res = s.gw.UnlockUser(ctx, serverID, username)
	} else {
		res = s.gw.LockUser(ctx, serverID, username)
	}

	if !res.Success {
		s.mu.Lock()
		if s.usersServerID == serverID {
			s.usersErr = "Action failed: " + res.Error
		}
		delete(s.pendingUsers, username)
		s.mu.Unlock()
		s.logger.Warn("failed to toggle user lock",
			slog.String("server_id", serverID),
			slog.String("username", username),
			slog.String("error", res.Error))
		return res
	}

	s.logger.Info("toggled user lock",
		slog.String("server_id", serverID),
		slog.String("username", username),
		slog.String("previous_status", string(current)))

	s.LoadUsers(ctx, serverID)

	s.mu.Lock()
	delete(s.pendingUsers, username)
	s.mu.Unlock()
	return res
}

// Snapshot is a read-only copy of the store state and its derived views
type Snapshot struct {
	Servers         []domain.Server
	FilteredServers []domain.Server
	Stats           domain.FleetStats
	ServersLoaded   bool
	LoadingServers  bool
	ServersError    string

	UsersServerID string
	Users         []domain.ServerUser
	LoadingUsers  bool
	UsersError    string
	PendingUsers  map[string]bool

	SearchQuery  string
	StatusFilter domain.StatusFilter
}

// Snapshot copies the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Servers:         slices.Clone(s.servers),
		FilteredServers: FilterServers(s.servers, s.searchQuery, s.statusFilter),
		Stats:           ComputeStats(s.servers),
		ServersLoaded:   s.serversLoaded,
		LoadingServers:  s.loadingServers,
		ServersError:    s.serversErr,
		UsersServerID:   s.usersServerID,
		Users:           slices.Clone(s.users),
		LoadingUsers:    s.loadingUsers,
		UsersError:      s.usersErr,
		PendingUsers:    pendingSet(s.pendingUsers),
		SearchQuery:     s.searchQuery,
		StatusFilter:    s.statusFilter,
	}
}

func pendingSet(pending map[string]struct{}) map[string]bool {
	out := make(map[string]bool, len(pending))
	for name := range pending {
		out[name] = true
	}
	return out
}
