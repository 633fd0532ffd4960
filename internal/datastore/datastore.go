// Package datastore is the sqlite persistence of the reference backend: the
// server fleet with its tags and usage history, and the accounts on each
// server.
package datastore

import (
	"context"
	"reflect"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/jbweber/homelab/fleetdash/internal/migrations"
)

const (
	serversTable = "servers"
	tagsTable    = "server_tags"
	historyTable = "server_stats_history"
	usersTable   = "server_users"
)

// Datastore wraps the database handle. Statements issued outside a
// transaction are prepared once and cached.
type Datastore struct {
	DB    *sqlx.DB
	cache *sq.StmtCache
	now   func() time.Time
}

// New opens the database at dsn and applies migrations
func New(dsn string) (*Datastore, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := migrations.Run(db.DB); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	return NewFromDB(db), nil
}

// NewFromDB wraps an already initialized database
func NewFromDB(db *sqlx.DB) *Datastore {
	return &Datastore{
		DB:    db,
		cache: sq.NewStmtCache(db),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Close releases cached statements and the database
func (ds *Datastore) Close() error {
	if err := ds.cache.Clear(); err != nil {
		_ = ds.DB.Close()
		return errors.Wrap(err, "clear statement cache")
	}
	return ds.DB.Close()
}

// builder runs statements through the statement cache
func (ds *Datastore) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Question).RunWith(ds.cache)
}

// txBuilder runs statements inside tx
func txBuilder(tx *sqlx.Tx) sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Question).RunWith(tx)
}

// withTx runs fn in a transaction, committing when it returns nil
func (ds *Datastore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := ds.DB.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

// selectAll runs a select through the statement cache and scans every row into dest
func (ds *Datastore) selectAll(ctx context.Context, query sq.SelectBuilder, dest any) error {
	rows, err := query.RunWith(ds.cache).QueryContext(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = rows.Close()
	}()
	return sqlx.StructScan(rows, dest)
}

// columns lists the db tags of a row struct
func columns(row any) []string {
	t := reflect.TypeOf(row)
	cols := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("db"); tag != "" {
			cols = append(cols, tag)
		}
	}
	return cols
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
