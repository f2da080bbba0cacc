// Package secondary defines the secondary ports (driven adapters) for the
// application. These are the interfaces through which the engine drives
// external systems.
package secondary

import (
	"context"

	"github.com/example/dlqwatch/internal/models"
)

// QueueBackend defines the secondary port for the message-queue service
// holding the dead-letter queues.
type QueueBackend interface {
	// Discover returns the names of all dead-letter queues visible to
	// the engine.
	Discover(ctx context.Context) ([]string, error)

	// Attributes returns the current snapshot for one queue.
	Attributes(ctx context.Context, queueName string) (models.QueueSnapshot, error)

	// Purge removes all messages from a queue. Only invoked on explicit
	// operator request, never automatically.
	Purge(ctx context.Context, queueName string) error
}
