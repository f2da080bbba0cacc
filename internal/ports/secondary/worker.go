package secondary

import (
	"context"
	"errors"
)

// ErrHandleLost indicates a worker handle that cannot be re-attached,
// typically because the worker's host process died across a restart.
var ErrHandleLost = errors.New("worker handle lost")

// WorkerState is the coarse state an external worker reports.
type WorkerState string

const (
	WorkerRunning WorkerState = "running"
	WorkerSuccess WorkerState = "success"
	WorkerFailure WorkerState = "failure"
)

// WorkerReport is the result of a non-blocking worker status check.
type WorkerReport struct {
	State WorkerState
	// Detail is the worker's free-form outcome report. Opaque to the
	// engine; stored and surfaced verbatim.
	Detail string
}

// LaunchContext is the payload handed to a new worker. The engine fills
// it in and never interprets what the worker does with it.
type LaunchContext struct {
	QueueName    string
	Region       string
	Profile      string
	MessageCount int
	Instructions string
}

// WorkerLauncher defines the secondary port for the external investigation
// worker. The worker is a black box: the engine starts it, polls it, and
// kills it, nothing more.
type WorkerLauncher interface {
	// Launch starts a worker and returns an opaque handle for it.
	Launch(ctx context.Context, lc LaunchContext) (handle string, err error)

	// Status is a non-blocking check of the worker behind a handle.
	Status(ctx context.Context, handle string) (WorkerReport, error)

	// Terminate requests worker shutdown. Best-effort; used by the
	// timeout path.
	Terminate(ctx context.Context, handle string) error

	// Reattach verifies a handle persisted before a restart still
	// refers to an observable worker. Returns ErrHandleLost otherwise.
	Reattach(ctx context.Context, handle string) error
}
