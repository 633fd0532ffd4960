package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/jbweber/homelab/fleetdash/internal/migrations"
)

// InitializeDatabase opens the backend database and applies every migration
func (c *Config) InitializeDatabase() (*sqlx.DB, error) {
	db, err := c.OpenDatabase()
	if err != nil {
		return nil, err
	}

	if err := migrations.Run(db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// OpenDatabase opens the backend database, creating its directory and tuning
// the connection, without touching the schema
func (c *Config) OpenDatabase() (*sqlx.DB, error) {
	dbPath := c.expandPath(c.Backend.DBPath)

	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Per-connection pragmas go in the DSN so every pooled connection gets them.
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	OptimizeDatabaseConnection(db)

	if err := ApplyPragmaOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply performance optimizations: %w", err)
	}

	return db, nil
}

// OptimizeDatabaseConnection sizes the connection pool
func OptimizeDatabaseConnection(db *sqlx.DB) {
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
}

// ApplyPragmaOptimizations applies SQLite-specific performance pragmas
func ApplyPragmaOptimizations(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = 10000",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return nil
}
