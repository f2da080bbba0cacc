package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	coresession "github.com/example/dlqwatch/internal/core/session"
	"github.com/example/dlqwatch/internal/models"
	"github.com/example/dlqwatch/internal/ports/secondary"
)

// SupervisorConfig carries the per-session policy.
type SupervisorConfig struct {
	// Timeout is the per-session deadline measured from StartedAt.
	Timeout time.Duration
	// Cooldown is applied on every terminal transition.
	Cooldown time.Duration
	// MaxConcurrent caps active sessions across all queues.
	MaxConcurrent int
	// Region and Profile are passed to workers as launch context.
	Region  string
	Profile string
	// Instructions is the operator-supplied preamble for every worker.
	Instructions string
}

// Supervisor owns the lifecycle of investigation sessions: it starts
// workers, reaps their outcomes, enforces timeouts, and is the only
// component that writes session transitions. Every transition is
// persisted before the matching event is published, so a crash between
// the two can never notify about an unrecorded state.
type Supervisor struct {
	sessions secondary.SessionRepository
	launcher secondary.WorkerLauncher
	emitter  *Emitter
	config   SupervisorConfig
	logger   *zap.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewSupervisor creates a session supervisor.
func NewSupervisor(
	sessions secondary.SessionRepository,
	launcher secondary.WorkerLauncher,
	emitter *Emitter,
	config SupervisorConfig,
	logger *zap.Logger,
) *Supervisor {
	return &Supervisor{
		sessions: sessions,
		launcher: launcher,
		emitter:  emitter,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Start admits and launches a session for a queue. It fails with
// secondary.ErrCapacityExceeded when the ceiling is reached and with
// secondary.ErrAlreadyActive when the queue has an active session.
// Neither check lives here: the store's atomic insert enforces both, so
// a racing CLI trigger and daemon tick - separate processes sharing the
// database - cannot both win a slot.
func (s *Supervisor) Start(ctx context.Context, snap models.QueueSnapshot, forced bool) (*models.Session, error) {
	session := &models.Session{
		QueueName: snap.Name,
		Forced:    forced,
		StartedAt: s.now(),
	}
	if err := s.sessions.Create(ctx, session, s.config.MaxConcurrent); err != nil {
		return nil, err
	}

	handle, launchErr := s.launcher.Launch(ctx, secondary.LaunchContext{
		QueueName:    snap.Name,
		Region:       s.config.Region,
		Profile:      s.config.Profile,
		MessageCount: snap.MessageCount,
		Instructions: s.config.Instructions,
	})
	if launchErr != nil {
		// A failing launcher gets the same cooldown as a failing
		// worker; otherwise every tick would retry it immediately.
		detail := fmt.Sprintf("launch failed: %v", launchErr)
		if err := s.finalize(ctx, session, models.StatusTriggered, models.StatusFailed, detail); err != nil {
			return nil, err
		}
		return session, fmt.Errorf("failed to launch worker for %s: %w", snap.Name, launchErr)
	}

	if err := s.sessions.Transition(ctx, session.ID, models.StatusTriggered, models.StatusRunning, secondary.TransitionFields{Handle: handle}); err != nil {
		return nil, fmt.Errorf("failed to mark session %d running: %w", session.ID, err)
	}
	session.Status = models.StatusRunning
	session.Handle = handle

	s.emitter.Publish(ctx, models.Event{
		Kind:      models.EventSessionStarted,
		QueueName: snap.Name,
		At:        s.now(),
	})
	s.logger.Info("investigation session started",
		zap.String("queue", snap.Name),
		zap.Int64("session_id", session.ID),
		zap.Bool("forced", forced))
	return session, nil
}

// Reap polls every running session once: sessions past their deadline are
// cancelled and marked timed out, finished workers are classified, and
// still-running workers are left alone. Per-session errors are isolated;
// one broken worker never blocks reaping the others.
func (s *Supervisor) Reap(ctx context.Context) {
	active, err := s.sessions.LoadActive(ctx)
	if err != nil {
		s.logger.Error("failed to load active sessions", zap.Error(err))
		return
	}

	for _, session := range active {
		if session.Status != models.StatusRunning {
			// Triggered sessions are transient inside Start; a
			// lingering one is handled by startup recovery.
			continue
		}
		if err := s.reapOne(ctx, session); err != nil {
			s.logger.Error("failed to reap session",
				zap.String("queue", session.QueueName),
				zap.Int64("session_id", session.ID),
				zap.Error(err))
		}
	}
}

func (s *Supervisor) reapOne(ctx context.Context, session *models.Session) error {
	now := s.now()

	if coresession.Expired(session, s.config.Timeout, now) {
		// Termination is best-effort; the state transition happens
		// regardless so a stuck worker cannot pin the session.
		if err := s.launcher.Terminate(ctx, session.Handle); err != nil {
			s.logger.Warn("failed to terminate timed-out worker",
				zap.String("queue", session.QueueName),
				zap.Error(err))
		}
		return s.finalize(ctx, session, models.StatusRunning, models.StatusTimedOut,
			fmt.Sprintf("timed out after %s", s.config.Timeout))
	}

	report, err := s.launcher.Status(ctx, session.Handle)
	if err != nil {
		return fmt.Errorf("failed to check worker status: %w", err)
	}

	switch report.State {
	case secondary.WorkerRunning:
		return nil
	case secondary.WorkerSuccess:
		return s.finalize(ctx, session, models.StatusRunning, models.StatusCompleted, report.Detail)
	case secondary.WorkerFailure:
		return s.finalize(ctx, session, models.StatusRunning, models.StatusFailed, report.Detail)
	default:
		return fmt.Errorf("unknown worker state %q", report.State)
	}
}

// Recover re-attaches persisted non-terminal sessions after a restart.
// Sessions whose worker cannot be observed anymore are conservatively
// failed with ReasonLostOnRestart: their true outcome is unknowable and
// silently re-triggering without cooldown would be worse.
func (s *Supervisor) Recover(ctx context.Context) error {
	active, err := s.sessions.LoadActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sessions for recovery: %w", err)
	}

	for _, session := range active {
		// A triggered session without a handle died between insert
		// and launch; there is nothing to re-attach.
		lost := session.Handle == ""
		if !lost {
			if err := s.launcher.Reattach(ctx, session.Handle); err != nil {
				if !errors.Is(err, secondary.ErrHandleLost) {
					s.logger.Warn("reattach check failed, treating handle as lost",
						zap.String("queue", session.QueueName),
						zap.Error(err))
				}
				lost = true
			}
		}

		if !lost {
			s.logger.Info("re-attached to running investigation",
				zap.String("queue", session.QueueName),
				zap.Int64("session_id", session.ID))
			continue
		}

		if err := s.finalize(ctx, session, session.Status, models.StatusFailed, models.ReasonLostOnRestart); err != nil {
			return fmt.Errorf("failed to fail lost session %d: %w", session.ID, err)
		}
		s.logger.Warn("marked session lost on restart",
			zap.String("queue", session.QueueName),
			zap.Int64("session_id", session.ID))
	}
	return nil
}

// finalize applies a terminal transition (store first) and then publishes
// the matching event.
func (s *Supervisor) finalize(ctx context.Context, session *models.Session, from, to models.SessionStatus, detail string) error {
	if err := coresession.CanTransition(from, to); err != nil {
		return err
	}

	now := s.now()
	fields := coresession.ApplyTerminal(now, s.config.Cooldown)
	err := s.sessions.Transition(ctx, session.ID, from, to, secondary.TransitionFields{
		Detail:        detail,
		EndedAt:       fields.EndedAt,
		CooldownUntil: fields.CooldownUntil,
	})
	if err != nil {
		return fmt.Errorf("failed to finalize session %d as %s: %w", session.ID, to, err)
	}
	session.Status = to
	session.Detail = detail
	session.EndedAt = fields.EndedAt
	session.CooldownUntil = fields.CooldownUntil

	event := models.Event{
		QueueName: session.QueueName,
		Detail:    detail,
		Duration:  session.Duration(now),
		At:        now,
	}
	switch to {
	case models.StatusCompleted:
		event.Kind = models.EventSessionCompleted
	case models.StatusTimedOut:
		event.Kind = models.EventSessionTimedOut
	default:
		event.Kind = models.EventSessionFailed
	}
	s.emitter.Publish(ctx, event)

	s.logger.Info("investigation session finished",
		zap.String("queue", session.QueueName),
		zap.Int64("session_id", session.ID),
		zap.String("status", string(to)),
		zap.Duration("duration", event.Duration))
	return nil
}
