package db

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.DB) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "add_forced_column_to_sessions",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_duration_ms_to_events",
		Up:      migrationV2,
	},
}

// RunMigrations applies all pending migrations in version order.
func RunMigrations(database *sql.DB) error {
	if _, err := database.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var current int
	if err := database.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := m.Up(database); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		if _, err := database.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// columnExists checks whether a table already carries a column. Needed
// because fresh installs get the full schema from SchemaSQL while old
// installs get it from a migration.
func columnExists(database *sql.DB, table, column string) (bool, error) {
	rows, err := database.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func migrationV1(database *sql.DB) error {
	exists, err := columnExists(database, "sessions", "forced")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = database.Exec("ALTER TABLE sessions ADD COLUMN forced INTEGER NOT NULL DEFAULT 0")
	return err
}

func migrationV2(database *sql.DB) error {
	exists, err := columnExists(database, "events", "duration_ms")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = database.Exec("ALTER TABLE events ADD COLUMN duration_ms INTEGER NOT NULL DEFAULT 0")
	return err
}
