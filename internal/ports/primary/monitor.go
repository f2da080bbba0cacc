// Package primary defines the primary ports (driving interfaces) for the
// application. CLI commands talk to the engine exclusively through these.
package primary

import (
	"context"

	"github.com/example/dlqwatch/internal/models"
)

// QueueStatus pairs a queue's live snapshot with its most recent session,
// if any.
type QueueStatus struct {
	Snapshot models.QueueSnapshot
	Latest   *models.Session // nil when the queue has no session history
	Targeted bool            // in the automation allow-list
}

// StatusReport is the full picture the status command renders: every
// discovered queue plus how much of the concurrency budget is in use.
type StatusReport struct {
	Queues        []QueueStatus
	Running       int
	MaxConcurrent int
}

// MonitorService is the operator-facing surface of the engine: one-shot
// status reads, manual triggers, and explicit purges. The continuous
// orchestration loop lives behind a separate entry point (wire.Orchestrator).
type MonitorService interface {
	// Status fetches a fresh snapshot of every discovered dead-letter
	// queue together with its latest session and the running-session
	// count.
	Status(ctx context.Context) (*StatusReport, error)

	// Trigger manually starts an investigation session for a queue.
	// force bypasses the cooldown check only; single-flight and the
	// concurrency ceiling still apply.
	Trigger(ctx context.Context, queueName string, force bool) (*models.Session, error)

	// Sessions returns session history, newest first.
	Sessions(ctx context.Context, filters SessionFilters) ([]*models.Session, error)

	// Purge removes all messages from a queue. Operator-only.
	Purge(ctx context.Context, queueName string) error

	// Events returns the latest lifecycle events, newest first.
	Events(ctx context.Context, limit int) ([]models.Event, error)
}

// SessionFilters contains filter options for session history queries.
type SessionFilters struct {
	QueueName string
	Status    string
	Limit     int
}
