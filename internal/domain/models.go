package domain

// ServerStatus is the operational state reported for a server
type ServerStatus string

const (
	StatusOnline      ServerStatus = "ONLINE"
	StatusOffline     ServerStatus = "OFFLINE"
	StatusMaintenance ServerStatus = "MAINTENANCE"
)

// Valid reports whether s is one of the known server statuses
func (s ServerStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusMaintenance:
		return true
	}
	return false
}

// StatsPoint is one sample of a server's usage history
type StatsPoint struct {
	Time  string `json:"time" yaml:"time"`   // Sample label, e.g. "10:05"
	Usage int    `json:"usage" yaml:"usage"` // CPU usage percentage
}

// ServerStats is a resource usage snapshot, all values are percentages
type ServerStats struct {
	CPU     int          `json:"cpu" yaml:"cpu"`
	Memory  int          `json:"memory" yaml:"memory"`
	Disk    int          `json:"disk" yaml:"disk"`
	History []StatsPoint `json:"history,omitempty" yaml:"history,omitempty"`
}

// Server represents one managed host in the fleet
type Server struct {
	ID     string       `json:"id" yaml:"id"`         // Unique identifier
	Name   string       `json:"name" yaml:"name"`     // Display name
	IP     string       `json:"ip" yaml:"ip"`         // Network address
	OS     string       `json:"os" yaml:"os"`         // Operating system label
	Status ServerStatus `json:"status" yaml:"status"` // ONLINE, OFFLINE or MAINTENANCE
	Tags   []string     `json:"tags" yaml:"tags"`     // Free-form tags
	Stats  ServerStats  `json:"stats" yaml:"stats"`   // Usage snapshot
}

// UserStatus is the account state of a server user
type UserStatus string

const (
	UserActive UserStatus = "active"
	UserLocked UserStatus = "locked"
)

// ServerUser represents an OS-level account on a server
type ServerUser struct {
	Username string     `json:"username"`
	UID      string     `json:"uid"`
	GID      string     `json:"gid"`
	Home     string     `json:"home"`
	Shell    string     `json:"shell"`
	Status   UserStatus `json:"status"`
}

// Locked reports whether the account is locked
func (u ServerUser) Locked() bool {
	return u.Status == UserLocked
}

// UserRole is the access profile requested for a new account
type UserRole string

const (
	RoleDeveloper UserRole = "developer"
	RoleAdmin     UserRole = "admin"
	RoleViewer    UserRole = "viewer"
)

// Roles lists the selectable roles in display order
var Roles = []UserRole{RoleDeveloper, RoleAdmin, RoleViewer}

// ParseUserRole maps a form value to a role, defaulting to developer
func ParseUserRole(s string) UserRole {
	switch UserRole(s) {
	case RoleAdmin, RoleViewer:
		return UserRole(s)
	}
	return RoleDeveloper
}

// UserCreationRequest is the payload sent to the backend to provision an account
type UserCreationRequest struct {
	ServerID       string   `json:"serverId"`
	Username       string   `json:"username"`
	FullName       string   `json:"fullName,omitempty"`
	Email          string   `json:"email,omitempty"`
	Role           UserRole `json:"role,omitempty"`
	SSHKey         string   `json:"sshKey,omitempty"`
	Sudo           bool     `json:"sudo"`
	Expiry         string   `json:"expiry,omitempty"` // YYYY-MM-DD
	WelcomeMessage string   `json:"welcomeMessage,omitempty"`
}

// UserRef identifies a user on a server, used by lock and unlock
type UserRef struct {
	ServerID string `json:"serverId"`
	Username string `json:"username"`
}

// StatusFilter restricts the dashboard to servers of one status
type StatusFilter string

const FilterAll StatusFilter = "ALL"

// StatusFilters lists the filter choices in display order
var StatusFilters = []StatusFilter{
	FilterAll,
	StatusFilter(StatusOnline),
	StatusFilter(StatusOffline),
	StatusFilter(StatusMaintenance),
}

// ParseStatusFilter maps a query value to a filter; unknown values mean ALL
func ParseStatusFilter(s string) StatusFilter {
	if ServerStatus(s).Valid() {
		return StatusFilter(s)
	}
	return FilterAll
}

// Matches reports whether a server with status s passes the filter
func (f StatusFilter) Matches(s ServerStatus) bool {
	return f == FilterAll || ServerStatus(f) == s
}

// FleetStats aggregates server counts by status
type FleetStats struct {
	Total       int
	Online      int
	Offline     int
	Maintenance int
}
