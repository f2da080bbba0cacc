package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/example/dlqwatch/internal/core/eligibility"
	"github.com/example/dlqwatch/internal/models"
	"github.com/example/dlqwatch/internal/ports/primary"
	"github.com/example/dlqwatch/internal/ports/secondary"
)

// MonitorServiceImpl implements the MonitorService primary port. It backs
// the one-shot CLI commands and therefore reads queue state fresh from
// the backend instead of relying on the daemon's in-memory repository.
type MonitorServiceImpl struct {
	backend    secondary.QueueBackend
	sessions   secondary.SessionRepository
	events     secondary.EventRepository
	supervisor *Supervisor
	policy     eligibility.Policy
	logger     *zap.Logger

	now func() time.Time
}

// NewMonitorService creates a MonitorService with injected dependencies.
func NewMonitorService(
	backend secondary.QueueBackend,
	sessions secondary.SessionRepository,
	events secondary.EventRepository,
	supervisor *Supervisor,
	policy eligibility.Policy,
	logger *zap.Logger,
) *MonitorServiceImpl {
	return &MonitorServiceImpl{
		backend:    backend,
		sessions:   sessions,
		events:     events,
		supervisor: supervisor,
		policy:     policy,
		logger:     logger,
		now:        time.Now,
	}
}

// Status fetches a fresh snapshot of every discovered dead-letter queue
// together with its latest session and the engine's running-session count.
func (s *MonitorServiceImpl) Status(ctx context.Context) (*primary.StatusReport, error) {
	names, err := s.backend.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to discover queues: %w", err)
	}
	sort.Strings(names)

	latest, err := s.sessions.LatestAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	running, err := s.sessions.CountRunning(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count running sessions: %w", err)
	}

	statuses := make([]primary.QueueStatus, 0, len(names))
	for _, name := range names {
		snap, err := s.backend.Attributes(ctx, name)
		if err != nil {
			// One unreachable queue should not empty the whole view.
			s.logger.Warn("failed to fetch queue attributes",
				zap.String("queue", name), zap.Error(err))
			snap = models.QueueSnapshot{Name: name}
		}
		statuses = append(statuses, primary.QueueStatus{
			Snapshot: snap,
			Latest:   latest[name],
			Targeted: s.policy.Targeted(name),
		})
	}
	return &primary.StatusReport{
		Queues:        statuses,
		Running:       running,
		MaxConcurrent: s.policy.MaxConcurrent,
	}, nil
}

// Trigger manually starts a session for a queue. force bypasses cooldown
// only; an active session or a full engine still reject the trigger.
func (s *MonitorServiceImpl) Trigger(ctx context.Context, queueName string, force bool) (*models.Session, error) {
	snap, err := s.backend.Attributes(ctx, queueName)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue %s: %w", queueName, err)
	}

	latest, err := s.sessions.Latest(ctx, queueName)
	if err != nil && !errors.Is(err, secondary.ErrNotFound) {
		return nil, fmt.Errorf("failed to load latest session: %w", err)
	}

	if result := eligibility.CanTrigger(snap, latest, s.now(), force); !result.Allowed {
		return nil, result.Error()
	}

	return s.supervisor.Start(ctx, snap, force)
}

// Sessions returns session history, newest first.
func (s *MonitorServiceImpl) Sessions(ctx context.Context, filters primary.SessionFilters) ([]*models.Session, error) {
	return s.sessions.List(ctx, secondary.SessionFilters{
		QueueName: filters.QueueName,
		Status:    models.SessionStatus(filters.Status),
		Limit:     filters.Limit,
	})
}

// Purge removes all messages from a queue. Never called automatically.
func (s *MonitorServiceImpl) Purge(ctx context.Context, queueName string) error {
	if err := s.backend.Purge(ctx, queueName); err != nil {
		return err
	}
	s.logger.Info("queue purged", zap.String("queue", queueName))
	return nil
}

// Events returns the latest lifecycle events, newest first.
func (s *MonitorServiceImpl) Events(ctx context.Context, limit int) ([]models.Event, error) {
	return s.events.Recent(ctx, limit)
}
