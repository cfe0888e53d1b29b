package database

import (
	"os"
	"path/filepath"
	"testing"
)

// NewTestDB opens a migrated SQLite database in a temporary directory.
// It is closed when the test finishes.
func NewTestDB(t testing.TB) *DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "reviews.db")
	db, err := New(DriverSQLite, path)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

// postgresTestDSN returns the PostgreSQL DSN for integration tests, skipping
// the test when TEST_POSTGRES_DSN is not set
func postgresTestDSN(t *testing.T) string {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set, skipping PostgreSQL test")
	}
	return dsn
}
