package store

import (
	"strings"

	"github.com/samber/lo"

	"github.com/jbweber/homelab/fleetdash/internal/domain"
)

// FilterServers returns the servers that pass the status filter and match
// the search query, preserving order. A server matches a non-empty query when
// the query is a case-insensitive substring of its name, its IP address or
// any tag. Only the empty query matches everything; whitespace is searched
// for literally.
func FilterServers(servers []domain.Server, query string, filter domain.StatusFilter) []domain.Server {
	q := strings.ToLower(query)
	return lo.Filter(servers, func(s domain.Server, _ int) bool {
		return filter.Matches(s.Status) && matchesQuery(s, q)
	})
}

// matchesQuery expects q to be lowercased already
func matchesQuery(s domain.Server, q string) bool {
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(s.Name), q) || strings.Contains(strings.ToLower(s.IP), q) {
		return true
	}
	return lo.ContainsBy(s.Tags, func(tag string) bool {
		return strings.Contains(strings.ToLower(tag), q)
	})
}

// ComputeStats counts servers by status over the given collection
func ComputeStats(servers []domain.Server) domain.FleetStats {
	counts := lo.CountValuesBy(servers, func(s domain.Server) domain.ServerStatus { return s.Status })
	return domain.FleetStats{
		Total:       len(servers),
		Online:      counts[domain.StatusOnline],
		Offline:     counts[domain.StatusOffline],
		Maintenance: counts[domain.StatusMaintenance],
	}
}
