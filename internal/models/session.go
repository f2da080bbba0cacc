// Package models contains the domain types shared across layers.
package models

import "time"

// SessionStatus represents the lifecycle state of an investigation session.
type SessionStatus string

const (
	// StatusTriggered means the session record exists but the worker has
	// not been launched yet.
	StatusTriggered SessionStatus = "triggered"
	// StatusRunning means the external worker was launched and is being
	// supervised.
	StatusRunning SessionStatus = "running"
	// StatusCompleted means the worker reported success.
	StatusCompleted SessionStatus = "completed"
	// StatusFailed means the worker reported failure, failed to launch,
	// or was lost across a restart.
	StatusFailed SessionStatus = "failed"
	// StatusTimedOut means the supervisor cancelled the worker after the
	// session deadline elapsed.
	StatusTimedOut SessionStatus = "timed_out"
)

// Terminal reports whether the status is a final state.
func (s SessionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut:
		return true
	}
	return false
}

// Active reports whether the status occupies the queue's single-flight slot.
func (s SessionStatus) Active() bool {
	return s == StatusTriggered || s == StatusRunning
}

// ReasonLostOnRestart is recorded as the detail of sessions that could not
// be re-attached to their worker after a process restart.
const ReasonLostOnRestart = "lost_on_restart"

// Session is one investigation attempt against a queue. Records are
// append-only history; at most one session per queue is active at a time.
type Session struct {
	ID        int64
	QueueName string
	Status    SessionStatus

	// Handle is an opaque reference to the external worker. Owned by the
	// session supervisor; nobody else interprets it.
	Handle string

	// Detail carries the worker's free-form outcome report, a launch
	// error, or ReasonLostOnRestart.
	Detail string

	// Forced marks sessions started by an operator bypassing cooldown.
	Forced bool

	StartedAt time.Time
	// EndedAt is zero while the session is non-terminal.
	EndedAt time.Time
	// CooldownUntil is set on the terminal transition. A new non-forced
	// session for the queue may not start before it.
	CooldownUntil time.Time
}

// Duration returns the session's wall-clock duration, using now for
// sessions that have not ended.
func (s *Session) Duration(now time.Time) time.Duration {
	end := s.EndedAt
	if end.IsZero() {
		end = now
	}
	return end.Sub(s.StartedAt)
}
