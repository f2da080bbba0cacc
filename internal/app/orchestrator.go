package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/dlqwatch/internal/core/eligibility"
	"github.com/example/dlqwatch/internal/models"
	"github.com/example/dlqwatch/internal/ports/secondary"
)

// OrchestratorConfig carries the loop-level policy.
type OrchestratorConfig struct {
	CheckInterval time.Duration
	Policy        eligibility.Policy
}

// Orchestrator is the engine's control loop. Each tick runs three phases
// in order: poll queue snapshots, admit eligible sessions, reap running
// ones. Ticks never overlap - a slow tick simply delays the next one -
// but queue polling inside a tick fans out per queue.
type Orchestrator struct {
	backend    secondary.QueueBackend
	states     *QueueStateRepository
	sessions   secondary.SessionRepository
	supervisor *Supervisor
	emitter    *Emitter
	config     OrchestratorConfig
	logger     *zap.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewOrchestrator creates the orchestration loop.
func NewOrchestrator(
	backend secondary.QueueBackend,
	states *QueueStateRepository,
	sessions secondary.SessionRepository,
	supervisor *Supervisor,
	emitter *Emitter,
	config OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		backend:    backend,
		states:     states,
		sessions:   sessions,
		supervisor: supervisor,
		emitter:    emitter,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

// Run recovers persisted sessions, then ticks until the context is
// cancelled. It returns nil on clean shutdown.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.supervisor.Recover(ctx); err != nil {
		return err
	}

	o.logger.Info("orchestration loop started",
		zap.Duration("check_interval", o.config.CheckInterval),
		zap.Int("max_concurrent", o.config.Policy.MaxConcurrent),
		zap.Strings("target_queues", o.config.Policy.TargetQueues))

	ticker := time.NewTicker(o.config.CheckInterval)
	defer ticker.Stop()

	o.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestration loop stopped")
			return nil
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}

// RunOnce recovers persisted sessions and runs a single cycle. Used by
// the CLI's one-shot mode, e.g. under cron.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	if err := o.supervisor.Recover(ctx); err != nil {
		return err
	}
	o.Tick(ctx)
	return nil
}

// Tick runs one full orchestration cycle. Exported so a CLI one-shot mode
// and tests can drive the loop manually.
func (o *Orchestrator) Tick(ctx context.Context) {
	o.poll(ctx)
	o.admit(ctx)
	o.supervisor.Reap(ctx)
}

// poll refreshes the queue-state repository. Attribute fetches fan out
// per queue; a failed fetch only skips that queue for this tick, keeping
// its previous snapshot in place.
func (o *Orchestrator) poll(ctx context.Context) {
	names, err := o.backend.Discover(ctx)
	if err != nil {
		// Fall back to the queues we already know about.
		o.logger.Warn("queue discovery failed, reusing known queues", zap.Error(err))
		for _, snap := range o.states.All() {
			names = append(names, snap.Name)
		}
	}

	var wg sync.WaitGroup
	snapshots := make([]models.QueueSnapshot, len(names))
	failed := make([]bool, len(names))

	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			snap, err := o.backend.Attributes(ctx, name)
			if err != nil {
				o.logger.Warn("failed to fetch queue attributes",
					zap.String("queue", name), zap.Error(err))
				failed[i] = true
				return
			}
			snapshots[i] = snap
		}(i, name)
	}
	wg.Wait()

	// The admission decision below sees a consistent repository: all
	// snapshot updates land before eligibility runs.
	for i, snap := range snapshots {
		if failed[i] {
			continue
		}
		previous, existed := o.states.Update(snap)
		if snap.MessageCount > 0 && (!existed || previous.MessageCount == 0) {
			o.emitter.Publish(ctx, models.Event{
				Kind:         models.EventMessagesDetected,
				QueueName:    snap.Name,
				MessageCount: snap.MessageCount,
				At:           snap.ObservedAt,
			})
		}
	}
}

// admit runs the eligibility evaluator over the refreshed state and
// starts sessions up to the remaining capacity, in the evaluator's
// deterministic order.
func (o *Orchestrator) admit(ctx context.Context) {
	latest, err := o.sessions.LatestAll(ctx)
	if err != nil {
		o.logger.Error("failed to load latest sessions", zap.Error(err))
		return
	}

	eligible := eligibility.Evaluate(o.states.All(), latest, o.config.Policy, o.now())

	for _, queue := range eligible {
		snap, ok := o.states.Get(queue)
		if !ok {
			continue
		}

		_, err := o.supervisor.Start(ctx, snap, false)
		switch {
		case err == nil:
		case errors.Is(err, secondary.ErrCapacityExceeded):
			// No capacity left this tick; the rest of the eligible
			// set waits for the next one.
			return
		case errors.Is(err, secondary.ErrAlreadyActive):
			// Lost the race against a manual trigger. Not a fault.
			o.logger.Debug("queue became active concurrently", zap.String("queue", queue))
		default:
			o.logger.Error("failed to start session",
				zap.String("queue", queue), zap.Error(err))
		}
	}
}
