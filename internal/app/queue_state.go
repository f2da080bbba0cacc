package app

import (
	"sort"
	"sync"

	"github.com/example/dlqwatch/internal/models"
)

// QueueStateRepository is the in-memory view of queue name to last known
// snapshot. It is refreshed each poll cycle; when a poll fails for one
// queue, the previous snapshot is deliberately kept so a transient
// backend error does not look like an empty queue.
type QueueStateRepository struct {
	mu        sync.RWMutex
	snapshots map[string]models.QueueSnapshot
}

// NewQueueStateRepository creates an empty queue-state repository.
func NewQueueStateRepository() *QueueStateRepository {
	return &QueueStateRepository{snapshots: make(map[string]models.QueueSnapshot)}
}

// Update stores the latest snapshot for a queue and returns the previous
// one, if any.
func (r *QueueStateRepository) Update(snap models.QueueSnapshot) (previous models.QueueSnapshot, existed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, existed = r.snapshots[snap.Name]
	r.snapshots[snap.Name] = snap
	return previous, existed
}

// Get returns the last known snapshot for a queue.
func (r *QueueStateRepository) Get(name string) (models.QueueSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.snapshots[name]
	return snap, ok
}

// All returns every known snapshot sorted by queue name. The stable order
// keeps eligibility evaluation deterministic per tick.
func (r *QueueStateRepository) All() []models.QueueSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]models.QueueSnapshot, 0, len(r.snapshots))
	for _, snap := range r.snapshots {
		all = append(all, snap)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}
