package secondary

import (
	"context"
	"errors"
	"time"

	"github.com/example/dlqwatch/internal/models"
)

// ErrAlreadyActive indicates an insert that would give a queue a second
// active session.
var ErrAlreadyActive = errors.New("queue already has an active session")

// ErrCapacityExceeded indicates an insert that would push the number of
// active sessions past the concurrency ceiling.
var ErrCapacityExceeded = errors.New("max concurrent sessions reached")

// ErrNotFound indicates a session lookup that matched nothing.
var ErrNotFound = errors.New("session not found")

// ErrStaleTransition indicates a compare-and-swap transition whose
// expected source status no longer matched the stored row.
var ErrStaleTransition = errors.New("session status changed concurrently")

// TransitionFields carries the columns written alongside a status change.
// Zero values are left untouched.
type TransitionFields struct {
	Handle        string
	Detail        string
	EndedAt       time.Time
	CooldownUntil time.Time
}

// SessionRepository defines the secondary port for session persistence.
// It is the single source of truth for session state; implementations
// must make Create and Transition atomic per queue.
type SessionRepository interface {
	// Create persists a new session with status triggered, assigning its
	// ID. Returns ErrAlreadyActive if the queue has an active session and
	// ErrCapacityExceeded if the store already holds maxActive
	// non-terminal sessions. Both checks are one atomic operation with
	// the insert, so they hold across processes sharing the store.
	Create(ctx context.Context, session *models.Session, maxActive int) error

	// Transition moves a session from one status to another, writing
	// fields in the same statement. Returns ErrStaleTransition if the
	// stored status is no longer from.
	Transition(ctx context.Context, id int64, from, to models.SessionStatus, fields TransitionFields) error

	// LoadActive returns all sessions with a non-terminal status.
	LoadActive(ctx context.Context) ([]*models.Session, error)

	// Latest returns the most recent session for a queue, or ErrNotFound.
	Latest(ctx context.Context, queueName string) (*models.Session, error)

	// LatestAll returns the most recent session per queue.
	LatestAll(ctx context.Context) (map[string]*models.Session, error)

	// List returns session history, newest first.
	List(ctx context.Context, filters SessionFilters) ([]*models.Session, error)

	// CountRunning returns the number of sessions with status running.
	CountRunning(ctx context.Context) (int, error)
}

// SessionFilters contains filter options for querying session history.
type SessionFilters struct {
	QueueName string
	Status    models.SessionStatus
	Limit     int
}

// EventRepository defines the secondary port for the lifecycle event log.
type EventRepository interface {
	// Append records one event.
	Append(ctx context.Context, event models.Event) error

	// Recent returns the latest events, newest first.
	Recent(ctx context.Context, limit int) ([]models.Event, error)
}
