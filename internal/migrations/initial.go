package migrations

import (
	"database/sql"
)

// fleetSchema creates the server, tag, usage history and account tables
func fleetSchema() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_fleet_tables",
			Up: func(tx *sql.Tx) error {
				return execAll(tx,
					`CREATE TABLE servers (
						id TEXT PRIMARY KEY,
						name TEXT NOT NULL,
						ip TEXT NOT NULL,
						os TEXT NOT NULL DEFAULT 'unknown',
						status TEXT NOT NULL CHECK (status IN ('ONLINE', 'OFFLINE', 'MAINTENANCE')),
						cpu INTEGER NOT NULL DEFAULT 0,
						memory INTEGER NOT NULL DEFAULT 0,
						disk INTEGER NOT NULL DEFAULT 0,
						created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE TABLE server_tags (
						server_id TEXT NOT NULL,
						position INTEGER NOT NULL,
						tag TEXT NOT NULL,
						PRIMARY KEY (server_id, position),
						FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
					)`,
					`CREATE TABLE server_stats_history (
						server_id TEXT NOT NULL,
						position INTEGER NOT NULL,
						label TEXT NOT NULL,
						usage INTEGER NOT NULL,
						PRIMARY KEY (server_id, position),
						FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
					)`,
					`CREATE TABLE server_users (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						server_id TEXT NOT NULL,
						username TEXT NOT NULL,
						uid INTEGER NOT NULL,
						gid INTEGER NOT NULL,
						home TEXT NOT NULL,
						shell TEXT NOT NULL,
						status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'locked')),
						full_name TEXT NOT NULL DEFAULT '',
						email TEXT NOT NULL DEFAULT '',
						role TEXT NOT NULL DEFAULT 'developer',
						ssh_key TEXT NOT NULL DEFAULT '',
						sudo INTEGER NOT NULL DEFAULT 0,
						expiry TEXT NOT NULL DEFAULT '',
						password_hash TEXT NOT NULL DEFAULT '',
						created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
						UNIQUE (server_id, username),
						FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
					)`,
				)
			},
			Down: func(tx *sql.Tx) error {
				return execAll(tx,
					"DROP TABLE IF EXISTS server_users",
					"DROP TABLE IF EXISTS server_stats_history",
					"DROP TABLE IF EXISTS server_tags",
					"DROP TABLE IF EXISTS servers",
				)
			},
		},
	}
}
