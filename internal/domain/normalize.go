package domain

import (
	"strings"

	"github.com/samber/lo"
)

// DefaultOS is used when the backend omits the operating system label
const DefaultOS = "unknown"

// Normalize fills defaults for fields a narrower backend payload may omit,
// so every server in a collection has the canonical shape.
func (s Server) Normalize() Server {
	s.ID = strings.TrimSpace(s.ID)
	if !s.Status.Valid() {
		s.Status = StatusOffline
	}
	if s.OS == "" {
		s.OS = DefaultOS
	}
	if s.Name == "" {
		s.Name = s.ID
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	s.Stats.CPU = clampPercent(s.Stats.CPU)
	s.Stats.Memory = clampPercent(s.Stats.Memory)
	s.Stats.Disk = clampPercent(s.Stats.Disk)
	return s
}

// NormalizeServers normalizes every server, dropping entries without an ID
// and later duplicates of an ID. Order is preserved.
func NormalizeServers(servers []Server) []Server {
	normalized := lo.Map(servers, func(s Server, _ int) Server { return s.Normalize() })
	normalized = lo.Filter(normalized, func(s Server, _ int) bool { return s.ID != "" })
	return lo.UniqBy(normalized, func(s Server) string { return s.ID })
}

// Normalize maps an unknown status to active
func (u ServerUser) Normalize() ServerUser {
	if u.Status != UserLocked {
		u.Status = UserActive
	}
	return u
}

// NormalizeUsers normalizes every user and drops later duplicates of a username
func NormalizeUsers(users []ServerUser) []ServerUser {
	normalized := lo.Map(users, func(u ServerUser, _ int) ServerUser { return u.Normalize() })
	return lo.UniqBy(normalized, func(u ServerUser) string { return u.Username })
}

func clampPercent(v int) int {
	return lo.Clamp(v, 0, 100)
}
