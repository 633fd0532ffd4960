// Package migrations versions the reference backend's sqlite schema. Applied
// versions are recorded in schema_migrations; each step and its record share
// one transaction so a failed step leaves no trace.
package migrations

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"math"
	"slices"

	sq "github.com/Masterminds/squirrel"
)

const versionTable = "schema_migrations"

// Migration is one versioned schema change
type Migration struct {
	Version int64
	Name    string
	Up      func(*sql.Tx) error
	Down    func(*sql.Tx) error
}

// All is the full schema history in version order
func All() []Migration {
	return append(fleetSchema(), lookupIndices()...)
}

// Migrator applies and reverts a set of migrations against one database
type Migrator struct {
	db    *sql.DB
	steps []Migration
}

// NewMigrator creates a Migrator for the given steps
func NewMigrator(db *sql.DB, steps ...Migration) *Migrator {
	m := &Migrator{db: db}
	m.Register(steps...)
	return m
}

// Register adds steps, keeping them ordered by version
func (m *Migrator) Register(steps ...Migration) {
	m.steps = append(m.steps, steps...)
	slices.SortStableFunc(m.steps, func(a, b Migration) int {
		return cmp.Compare(a.Version, b.Version)
	})
}

// Steps returns the registered migrations in version order
func (m *Migrator) Steps() []Migration {
	return slices.Clone(m.steps)
}

// Up applies every registered step newer than the recorded version
func (m *Migrator) Up(ctx context.Context) error {
	return m.upTo(ctx, math.MaxInt64)
}

// MigrateTo moves the schema to target, applying missing steps up to it or
// reverting the steps newer than it. A negative target means the latest step.
func (m *Migrator) MigrateTo(ctx context.Context, target int64) error {
	if target < 0 {
		return m.Up(ctx)
	}
	current, err := m.Version(ctx)
	if err != nil {
		return err
	}
	if target < current {
		return m.RollbackTo(ctx, target)
	}
	return m.upTo(ctx, target)
}

func (m *Migrator) upTo(ctx context.Context, target int64) error {
	current, err := m.Version(ctx)
	if err != nil {
		return err
	}

	for _, step := range m.steps {
		if step.Version <= current {
			continue
		}
		if step.Version > target {
			break
		}
		record := sq.Insert(versionTable).Columns("version", "name").Values(step.Version, step.Name)
		if err := m.inTx(ctx, step.Up, func(tx *sql.Tx) error {
			_, err := record.RunWith(tx).ExecContext(ctx)
			return err
		}); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", step.Version, step.Name, err)
		}
	}
	return nil
}

// RollbackTo reverts applied steps newer than target, newest first. A step
// without Down stops the rollback.
func (m *Migrator) RollbackTo(ctx context.Context, target int64) error {
	current, err := m.Version(ctx)
	if err != nil {
		return err
	}

	for _, step := range slices.Backward(m.steps) {
		if step.Version <= target || step.Version > current {
			continue
		}
		if step.Down == nil {
			return fmt.Errorf("migration %d (%s) cannot be reverted", step.Version, step.Name)
		}
		forget := sq.Delete(versionTable).Where(sq.Eq{"version": step.Version})
		if err := m.inTx(ctx, step.Down, func(tx *sql.Tx) error {
			_, err := forget.RunWith(tx).ExecContext(ctx)
			return err
		}); err != nil {
			return fmt.Errorf("failed to revert migration %d (%s): %w", step.Version, step.Name, err)
		}
	}
	return nil
}

// Version is the highest applied version, 0 for a fresh database
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	if _, err := m.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+versionTable+` (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", versionTable, err)
	}

	var version int64
	err := sq.Select("COALESCE(MAX(version), 0)").From(versionTable).
		RunWith(m.db).QueryRowContext(ctx).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func (m *Migrator) inTx(ctx context.Context, step, record func(*sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if step != nil {
		if err := step(tx); err != nil {
			return err
		}
	}
	if err := record(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Run brings db up to the latest schema
func Run(db *sql.DB) error {
	return NewMigrator(db, All()...).Up(context.Background())
}

func execAll(tx *sql.Tx, statements ...string) error {
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
