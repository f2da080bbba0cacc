package models

import "time"

// QueueSnapshot is one reading of a queue's dead-letter state. Snapshots are
// ephemeral; the queue-state repository keeps only the latest per queue.
type QueueSnapshot struct {
	Name         string
	MessageCount int

	// OldestMessageAge is zero when the queue is empty or the backend did
	// not report it.
	OldestMessageAge time.Duration

	ObservedAt time.Time
}
