package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		driver      string
		dsn         string
		expectError bool
	}{
		{
			name:   "sqlite file",
			driver: DriverSQLite,
			dsn:    filepath.Join(t.TempDir(), "new.db"),
		},
		{
			name:        "unsupported driver",
			driver:      "mysql",
			dsn:         "whatever",
			expectError: true,
		},
		{
			name:        "sqlite in missing directory",
			driver:      DriverSQLite,
			dsn:         filepath.Join(t.TempDir(), "missing", "dir", "new.db"),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := New(tt.driver, tt.dsn)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer db.Close()
			assert.NotNil(t, db.Conn())
			assert.Equal(t, tt.driver, db.Driver())
		})
	}
}

func TestMigrate(t *testing.T) {
	db := NewTestDB(t)

	version, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].Version, version)

	// running again is a no-op
	require.NoError(t, db.Migrate())
	version, err = db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].Version, version)

	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM reviews").Scan(&count))
	assert.Zero(t, count)
}

func TestRebind(t *testing.T) {
	sqlite := &DB{driver: DriverSQLite}
	postgres := &DB{driver: DriverPostgres}

	query := "SELECT * FROM reviews WHERE id = ? AND rating > ? LIMIT ?"
	assert.Equal(t, query, sqlite.rebind(query))
	assert.Equal(t, "SELECT * FROM reviews WHERE id = $1 AND rating > $2 LIMIT $3", postgres.rebind(query))
	assert.Equal(t, "SELECT 1", postgres.rebind("SELECT 1"))
}

func TestPostgresRoundTrip(t *testing.T) {
	dsn := postgresTestDSN(t)

	db, err := New(DriverPostgres, dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	review := newTestReview(uuid.NewString(), "pg-property", "Great flat")
	require.NoError(t, db.SaveReview(review))
	defer db.DeleteReview(review.ID)

	require.NoError(t, db.UpdateSentiment(review.ID, 0.5, "positive", "flat"))

	got, err := db.GetReview(review.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SentimentScore)
	assert.Equal(t, 0.5, *got.SentimentScore)
	assert.WithinDuration(t, review.CreatedAt, got.CreatedAt, time.Second)
}
