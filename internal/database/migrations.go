package database

import (
	"fmt"
	"log/slog"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     []string
}

// schemaVersionSQL is applied before any migration so the current version can be read
const schemaVersionSQL = `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

// migrations contains all database migrations in order. Statements are kept
// to the subset of SQL shared by SQLite and PostgreSQL.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_reviews_table",
		SQL: []string{
			`CREATE TABLE IF NOT EXISTS reviews (
				id TEXT PRIMARY KEY,
				property_id TEXT NOT NULL,
				booking_id TEXT NOT NULL DEFAULT '',
				student_id TEXT NOT NULL DEFAULT '',
				rating INTEGER NOT NULL,
				comment TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_reviews_property_id ON reviews(property_id)`,
			`CREATE INDEX IF NOT EXISTS idx_reviews_created_at ON reviews(created_at)`,
		},
	},
	{
		Version: 2,
		Name:    "add_sentiment_columns",
		SQL: []string{
			`ALTER TABLE reviews ADD COLUMN sentiment_score DOUBLE PRECISION`,
			`ALTER TABLE reviews ADD COLUMN sentiment_label TEXT`,
			`ALTER TABLE reviews ADD COLUMN keywords TEXT`,
			`ALTER TABLE reviews ADD COLUMN scored_at TIMESTAMP`,
			`CREATE INDEX IF NOT EXISTS idx_reviews_sentiment_label ON reviews(sentiment_label)`,
		},
	},
	{
		Version: 3,
		Name:    "add_summary_column",
		SQL: []string{
			`ALTER TABLE reviews ADD COLUMN summary TEXT`,
		},
	},
}

// Migrate runs all pending migrations
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(schemaVersionSQL); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var currentVersion int
	err := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	slog.Debug("current schema version", "version", currentVersion, "driver", db.driver)

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("applying migration", "version", migration.Version, "name", migration.Name)
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		for _, stmt := range migration.SQL {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Name, err)
			}
		}

		if _, err := tx.Exec(db.rebind("INSERT INTO schema_version (version) VALUES (?)"), migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration version
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
