package migrations

import (
	"database/sql"
)

// lookupIndices covers the status filter and per-server account queries
func lookupIndices() []Migration {
	return []Migration{
		{
			Version: 2,
			Name:    "add_lookup_indices",
			Up: func(tx *sql.Tx) error {
				return execAll(tx,
					"CREATE INDEX IF NOT EXISTS idx_servers_status ON servers(status)",
					"CREATE INDEX IF NOT EXISTS idx_server_users_server_id ON server_users(server_id)",
					"CREATE INDEX IF NOT EXISTS idx_server_users_uid ON server_users(server_id, uid)",
				)
			},
			Down: func(tx *sql.Tx) error {
				return execAll(tx,
					"DROP INDEX IF EXISTS idx_servers_status",
					"DROP INDEX IF EXISTS idx_server_users_server_id",
					"DROP INDEX IF EXISTS idx_server_users_uid",
				)
			},
		},
	}
}
