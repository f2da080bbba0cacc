package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/dlqwatch/internal/models"
)

// EventLog implements secondary.EventRepository with SQLite. It doubles as
// an event-emitter listener so every lifecycle event lands in the audit
// trail that status views read.
type EventLog struct {
	db *sql.DB
}

// NewEventLog creates a new SQLite event log.
func NewEventLog(db *sql.DB) *EventLog {
	return &EventLog{db: db}
}

// Append records one event.
func (l *EventLog) Append(ctx context.Context, event models.Event) error {
	at := event.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := l.db.ExecContext(ctx,
		"INSERT INTO events (kind, queue_name, message_count, detail, duration_ms, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		string(event.Kind), event.QueueName, event.MessageCount, event.Detail, event.Duration.Milliseconds(), at,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Recent returns the latest events, newest first.
func (l *EventLog) Recent(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.db.QueryContext(ctx,
		"SELECT kind, queue_name, message_count, detail, duration_ms, created_at FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var (
			kind       string
			detail     sql.NullString
			durationMs int64
			createdAt  time.Time
		)
		event := models.Event{}
		if err := rows.Scan(&kind, &event.QueueName, &event.MessageCount, &detail, &durationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.Kind = models.EventKind(kind)
		event.Detail = detail.String
		event.Duration = time.Duration(durationMs) * time.Millisecond
		event.At = createdAt
		events = append(events, event)
	}
	return events, rows.Err()
}

// HandleEvent lets the event log subscribe to the emitter directly.
func (l *EventLog) HandleEvent(ctx context.Context, event models.Event) error {
	return l.Append(ctx, event)
}
