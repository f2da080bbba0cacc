package models

import "time"

// EventKind identifies a lifecycle event published by the engine.
type EventKind string

const (
	// EventMessagesDetected fires when a polled queue holds dead-letter
	// messages it did not hold on the previous reading.
	EventMessagesDetected EventKind = "messages_detected"
	// EventSessionStarted fires once a worker launch succeeded.
	EventSessionStarted EventKind = "session_started"
	// EventSessionCompleted fires when a worker reported success.
	EventSessionCompleted EventKind = "session_completed"
	// EventSessionFailed fires on worker failure, launch failure, or a
	// session lost across a restart.
	EventSessionFailed EventKind = "session_failed"
	// EventSessionTimedOut fires when the supervisor cancelled a worker
	// past its deadline.
	EventSessionTimedOut EventKind = "session_timed_out"
)

// Event is a lifecycle notification fanned out to registered listeners.
// Delivery is best-effort and never blocks orchestration.
type Event struct {
	Kind      EventKind
	QueueName string

	// MessageCount is set for EventMessagesDetected.
	MessageCount int

	// Detail carries the worker's outcome report for terminal events.
	Detail string

	// Duration is the session wall-clock time for terminal events.
	Duration time.Duration

	At time.Time
}
