// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/example/dlqwatch/internal/models"
	"github.com/example/dlqwatch/internal/ports/secondary"
)

// SessionRepository implements secondary.SessionRepository with SQLite.
//
// Atomicity notes: Create relies on the partial unique index
// idx_sessions_single_flight for single-flight, and its INSERT..SELECT
// form embeds the concurrency-ceiling count, so both checks and the
// insert are a single atomic statement - racing processes sharing the
// database file cannot slip past either. Transition is a compare-and-swap
// UPDATE guarded by the expected source status.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = "id, queue_name, status, handle, detail, forced, started_at, ended_at, cooldown_until"

// Create persists a new triggered session and assigns its ID. The
// INSERT..SELECT form makes the ceiling count part of the insert
// statement: when the store already holds maxActive non-terminal
// sessions the SELECT yields no row, nothing is inserted, and
// ErrCapacityExceeded is returned. The single-flight check still comes
// from the partial unique index.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session, maxActive int) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (queue_name, status, forced, started_at)
		 SELECT ?, ?, ?, ?
		 WHERE (SELECT COUNT(*) FROM sessions WHERE status IN ('triggered', 'running')) < ?`,
		session.QueueName, string(models.StatusTriggered), session.Forced, session.StartedAt, maxActive,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return secondary.ErrAlreadyActive
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check session insert: %w", err)
	}
	if affected == 0 {
		return secondary.ErrCapacityExceeded
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read session id: %w", err)
	}
	session.ID = id
	session.Status = models.StatusTriggered
	return nil
}

// Transition moves a session between statuses with a compare-and-swap on
// the source status. Non-zero fields are written in the same statement.
func (r *SessionRepository) Transition(ctx context.Context, id int64, from, to models.SessionStatus, fields secondary.TransitionFields) error {
	query := "UPDATE sessions SET status = ?, updated_at = CURRENT_TIMESTAMP"
	args := []any{string(to)}

	if fields.Handle != "" {
		query += ", handle = ?"
		args = append(args, fields.Handle)
	}
	if fields.Detail != "" {
		query += ", detail = ?"
		args = append(args, fields.Detail)
	}
	if !fields.EndedAt.IsZero() {
		query += ", ended_at = ?"
		args = append(args, fields.EndedAt)
	}
	if !fields.CooldownUntil.IsZero() {
		query += ", cooldown_until = ?"
		args = append(args, fields.CooldownUntil)
	}

	query += " WHERE id = ? AND status = ?"
	args = append(args, id, string(from))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to transition session %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check transition of session %d: %w", id, err)
	}
	if affected == 0 {
		return secondary.ErrStaleTransition
	}
	return nil
}

// LoadActive returns all sessions with a non-terminal status.
func (r *SessionRepository) LoadActive(ctx context.Context) ([]*models.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE status IN ('triggered', 'running') ORDER BY queue_name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load active sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// Latest returns the most recent session for a queue.
func (r *SessionRepository) Latest(ctx context.Context, queueName string) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE queue_name = ? ORDER BY id DESC LIMIT 1",
		queueName,
	)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, secondary.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest session for %s: %w", queueName, err)
	}
	return session, nil
}

// LatestAll returns the most recent session per queue.
func (r *SessionRepository) LatestAll(ctx context.Context) (map[string]*models.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE id IN (SELECT MAX(id) FROM sessions GROUP BY queue_name)`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest sessions: %w", err)
	}
	defer rows.Close()

	sessions, err := scanSessions(rows)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]*models.Session, len(sessions))
	for _, s := range sessions {
		latest[s.QueueName] = s
	}
	return latest, nil
}

// List returns session history matching the filters, newest first.
func (r *SessionRepository) List(ctx context.Context, filters secondary.SessionFilters) ([]*models.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions WHERE 1=1"
	args := []any{}

	if filters.QueueName != "" {
		query += " AND queue_name = ?"
		args = append(args, filters.QueueName)
	}
	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filters.Status))
	}

	query += " ORDER BY id DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// CountRunning returns the number of running sessions.
func (r *SessionRepository) CountRunning(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE status = 'running'").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(s scanner) (*models.Session, error) {
	var (
		status        string
		handle        sql.NullString
		detail        sql.NullString
		startedAt     time.Time
		endedAt       sql.NullTime
		cooldownUntil sql.NullTime
	)

	session := &models.Session{}
	err := s.Scan(&session.ID, &session.QueueName, &status, &handle, &detail, &session.Forced, &startedAt, &endedAt, &cooldownUntil)
	if err != nil {
		return nil, err
	}

	session.Status = models.SessionStatus(status)
	session.Handle = handle.String
	session.Detail = detail.String
	session.StartedAt = startedAt
	if endedAt.Valid {
		session.EndedAt = endedAt.Time
	}
	if cooldownUntil.Valid {
		session.CooldownUntil = cooldownUntil.Time
	}
	return session, nil
}

func scanSessions(rows *sql.Rows) ([]*models.Session, error) {
	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}
