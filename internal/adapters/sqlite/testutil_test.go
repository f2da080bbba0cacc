// Package sqlite_test contains integration tests for SQLite repositories.
//
// All test setup uses db.GetSchemaSQL() so tests always run against the
// authoritative schema. Do not hardcode CREATE TABLE statements here.
package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/dlqwatch/internal/adapters/sqlite"
	"github.com/example/dlqwatch/internal/db"
	"github.com/example/dlqwatch/internal/models"
)

// setupTestDB creates an in-memory database with the authoritative schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedSession creates a triggered session through the repository and
// returns it. Callers transition it further as needed.
func seedSession(t *testing.T, repo *sqlite.SessionRepository, queue string, startedAt time.Time) *models.Session {
	t.Helper()

	session := &models.Session{QueueName: queue, StartedAt: startedAt}
	if err := repo.Create(context.Background(), session, 10); err != nil {
		t.Fatalf("failed to seed session for %s: %v", queue, err)
	}
	return session
}
