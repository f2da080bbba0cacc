// Package session contains the pure business logic for investigation
// session lifecycle. This is part of the Functional Core - no I/O, only
// pure functions.
package session

import (
	"fmt"
	"time"

	"github.com/example/dlqwatch/internal/models"
)

// legalTransitions maps each status to the statuses it may move to.
// Terminal statuses have no outgoing edges; history is append-only.
var legalTransitions = map[models.SessionStatus][]models.SessionStatus{
	models.StatusTriggered: {models.StatusRunning, models.StatusFailed},
	models.StatusRunning:   {models.StatusCompleted, models.StatusFailed, models.StatusTimedOut},
}

// CanTransition reports whether a session may move from one status to
// another. Every store mutation goes through this check first.
func CanTransition(from, to models.SessionStatus) error {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("illegal session transition %s -> %s", from, to)
}

// TerminalFields captures the side effects of a terminal transition: the
// end timestamp and the cooldown boundary derived from it.
type TerminalFields struct {
	EndedAt       time.Time
	CooldownUntil time.Time
}

// ApplyTerminal computes the terminal-transition side effects. Completed,
// failed, and timed-out sessions all consume the same cooldown window:
// cooldown bounds trigger frequency, it does not encode outcome quality.
func ApplyTerminal(now time.Time, cooldown time.Duration) TerminalFields {
	return TerminalFields{
		EndedAt:       now,
		CooldownUntil: now.Add(cooldown),
	}
}

// Deadline returns the instant after which a running session must be
// cancelled and marked timed out.
func Deadline(startedAt time.Time, timeout time.Duration) time.Time {
	return startedAt.Add(timeout)
}

// Expired reports whether a running session has passed its deadline.
func Expired(s *models.Session, timeout time.Duration, now time.Time) bool {
	return s.Status == models.StatusRunning && now.After(Deadline(s.StartedAt, timeout))
}
