// Package eligibility contains the pure decision logic for admitting
// investigation sessions. This is part of the Functional Core - no I/O,
// only pure functions.
package eligibility

import (
	"fmt"
	"sort"
	"time"

	"github.com/example/dlqwatch/internal/models"
)

// Policy carries the limits the evaluator decides against. The cooldown
// window itself is not part of the policy here: it is stamped onto each
// session as CooldownUntil when it ends, and the guards read that.
type Policy struct {
	// TargetQueues is the allow-list of queues eligible for automation.
	// Queues outside it are monitored but never auto-triggered.
	TargetQueues []string
	// MaxConcurrent caps running sessions across all queues.
	MaxConcurrent int
}

// Targeted reports whether a queue is in the automation allow-list.
func (p Policy) Targeted(queue string) bool {
	for _, q := range p.TargetQueues {
		if q == queue {
			return true
		}
	}
	return false
}

// GuardResult is the outcome of a trigger guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string // populated when not allowed
}

// Error returns the guard result as an error if not allowed, nil otherwise.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// CanTrigger evaluates whether a single queue may start a session now.
// latest is the queue's most recent session, nil if none exists; its
// CooldownUntil carries the cooldown window. forced bypasses the
// cooldown check only - never single-flight, and an empty queue is
// never investigated.
func CanTrigger(snap models.QueueSnapshot, latest *models.Session, now time.Time, forced bool) GuardResult {
	if snap.MessageCount == 0 {
		return GuardResult{Allowed: false, Reason: fmt.Sprintf("queue %s has no dead-letter messages", snap.Name)}
	}
	if latest == nil {
		return GuardResult{Allowed: true}
	}
	if latest.Status.Active() {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("queue %s already has an active session (status: %s)", snap.Name, latest.Status),
		}
	}
	if !forced && now.Before(latest.CooldownUntil) {
		remaining := latest.CooldownUntil.Sub(now).Round(time.Second)
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("queue %s is cooling down for another %s (until %s)", snap.Name, remaining, latest.CooldownUntil.Format(time.RFC3339)),
		}
	}
	return GuardResult{Allowed: true}
}

// Evaluate returns the queues eligible to start a session this cycle, in
// ascending name order so identical inputs always admit the same subset.
// latest maps queue name to its most recent session of any status.
// No side effects; the caller applies the concurrency ceiling.
func Evaluate(snapshots []models.QueueSnapshot, latest map[string]*models.Session, policy Policy, now time.Time) []string {
	var eligible []string
	for _, snap := range snapshots {
		if !policy.Targeted(snap.Name) {
			continue
		}
		if result := CanTrigger(snap, latest[snap.Name], now, false); !result.Allowed {
			continue
		}
		eligible = append(eligible, snap.Name)
	}
	sort.Strings(eligible)
	return eligible
}
