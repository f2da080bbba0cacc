package db

// SchemaSQL is the complete schema for fresh dlqwatch installs.
//
// This is the single source of truth for the database schema. All
// repository tests load it via GetSchemaSQL() instead of hardcoding
// CREATE TABLE statements, so any drift between repository code and the
// schema fails tests immediately with "no such column".
//
// Keep this in sync with the migration registry in migrations.go: a new
// column gets both a migration (for existing installs) and an edit here
// (for fresh installs).
const SchemaSQL = `
-- Investigation sessions (append-only history, one row per attempt)
CREATE TABLE IF NOT EXISTS sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	queue_name TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('triggered', 'running', 'completed', 'failed', 'timed_out')),
	handle TEXT,
	detail TEXT,
	forced INTEGER NOT NULL DEFAULT 0,
	started_at DATETIME NOT NULL,
	ended_at DATETIME,
	cooldown_until DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Single-flight invariant: at most one non-terminal session per queue.
-- The partial unique index makes the check-and-insert atomic inside
-- sqlite, so two racing writers cannot both create an active session.
CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_single_flight
	ON sessions(queue_name) WHERE status IN ('triggered', 'running');

CREATE INDEX IF NOT EXISTS idx_sessions_queue_started
	ON sessions(queue_name, started_at);

-- Lifecycle event log (audit trail consumed by status/dashboard views)
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	queue_name TEXT NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0,
	detail TEXT,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);
`

// GetSchemaSQL returns the authoritative schema. Tests use this instead of
// hardcoding their own CREATE TABLE statements.
func GetSchemaSQL() string {
	return SchemaSQL
}

// InitSchema creates all tables and runs pending migrations.
func InitSchema() error {
	database, err := GetDB()
	if err != nil {
		return err
	}

	if _, err := database.Exec(SchemaSQL); err != nil {
		return err
	}

	return RunMigrations(database)
}
