package testutil

import (
	"context"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/jbweber/homelab/fleetdash/internal/datastore"
)

// SetupTestDB creates an empty in-memory database closed at test end
func SetupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite", NewTestDSN(dsnName(t)))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
	})
	return db
}

// SetupTestDatastore creates a migrated, empty datastore closed at test end
func SetupTestDatastore(t *testing.T) *datastore.Datastore {
	t.Helper()

	ds, err := datastore.New(NewTestDSN(dsnName(t)))
	if err != nil {
		t.Fatalf("Failed to create test datastore: %v", err)
	}
	t.Cleanup(func() {
		if err := ds.Close(); err != nil {
			t.Logf("Warning: failed to close test datastore: %v", err)
		}
	})
	return ds
}

// SeededDatastore creates a datastore holding the embedded demo fleet
func SeededDatastore(t *testing.T) *datastore.Datastore {
	t.Helper()

	ds := SetupTestDatastore(t)
	seed, err := datastore.DefaultSeed()
	if err != nil {
		t.Fatalf("Failed to load default seed: %v", err)
	}
	if _, err := ds.ApplySeed(context.Background(), seed); err != nil {
		t.Fatalf("Failed to apply seed: %v", err)
	}
	return ds
}

// dsnName turns a test name into a database name; subtests get their own
func dsnName(t *testing.T) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
}
