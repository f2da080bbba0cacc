package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/dlqwatch/internal/core/eligibility"
	"github.com/example/dlqwatch/internal/models"
	"github.com/example/dlqwatch/internal/ports/primary"
	"github.com/example/dlqwatch/internal/ports/secondary"
)

var _ secondary.EventRepository = (*fakeEventRepo)(nil)

// fakeEventRepo is an in-memory EventRepository.
type fakeEventRepo struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *fakeEventRepo) Append(ctx context.Context, event models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *fakeEventRepo) Recent(ctx context.Context, limit int) ([]models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Event
	for i := len(r.events) - 1; i >= 0; i-- {
		out = append(out, r.events[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func newTestMonitorService(backend *fakeBackend, repo *fakeSessionRepo, launcher *fakeLauncher) (*MonitorServiceImpl, *fakeEventRepo) {
	emitter := NewEmitter(zap.NewNop())
	eventRepo := &fakeEventRepo{}
	emitter.Subscribe("event-log", ListenerFunc(eventRepo.Append))
	supervisor := newTestSupervisor(repo, launcher, emitter)
	svc := NewMonitorService(backend, repo, eventRepo, supervisor, eligibility.Policy{
		TargetQueues:  []string{"orders-dlq"},
		MaxConcurrent: 3,
	}, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc, eventRepo
}

func TestMonitorStatus(t *testing.T) {
	backend := newFakeBackend(map[string]int{"orders-dlq": 5, "payments-dlq": 0})
	repo := newFakeSessionRepo()
	svc, _ := newTestMonitorService(backend, repo, newFakeLauncher())

	done := &models.Session{QueueName: "orders-dlq", StartedAt: testNow.Add(-time.Hour)}
	if err := repo.Create(context.Background(), done, 10); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Transition(context.Background(), done.ID, models.StatusTriggered, models.StatusFailed, secondary.TransitionFields{EndedAt: testNow.Add(-50 * time.Minute)}); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	report, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(report.Queues) != 2 {
		t.Fatalf("Status() returned %d queues, want 2", len(report.Queues))
	}
	if report.Running != 0 || report.MaxConcurrent != 3 {
		t.Errorf("report capacity = %d/%d, want 0/3", report.Running, report.MaxConcurrent)
	}

	// Sorted by queue name, latest session attached, allow-list flagged.
	orders, payments := report.Queues[0], report.Queues[1]
	if orders.Snapshot.Name != "orders-dlq" || payments.Snapshot.Name != "payments-dlq" {
		t.Fatalf("queues out of order: %s, %s", orders.Snapshot.Name, payments.Snapshot.Name)
	}
	if orders.Snapshot.MessageCount != 5 {
		t.Errorf("orders count = %d, want 5", orders.Snapshot.MessageCount)
	}
	if orders.Latest == nil || orders.Latest.Status != models.StatusFailed {
		t.Errorf("orders.Latest = %+v, want failed session", orders.Latest)
	}
	if !orders.Targeted || payments.Targeted {
		t.Errorf("Targeted flags = %v/%v, want true/false", orders.Targeted, payments.Targeted)
	}
	if payments.Latest != nil {
		t.Errorf("payments.Latest = %+v, want nil", payments.Latest)
	}
}

func TestMonitorStatusCountsRunningSessions(t *testing.T) {
	backend := newFakeBackend(map[string]int{"orders-dlq": 5, "payments-dlq": 0})
	repo := newFakeSessionRepo()
	svc, _ := newTestMonitorService(backend, repo, newFakeLauncher())

	if _, err := svc.Trigger(context.Background(), "orders-dlq", false); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}

	report, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if report.Running != 1 {
		t.Errorf("report.Running = %d, want 1", report.Running)
	}
	if report.MaxConcurrent != 3 {
		t.Errorf("report.MaxConcurrent = %d, want 3", report.MaxConcurrent)
	}
}

func TestMonitorStatusDegradesPerQueue(t *testing.T) {
	backend := newFakeBackend(map[string]int{"orders-dlq": 5, "payments-dlq": 2})
	backend.attrErrs["payments-dlq"] = errors.New("throttled")
	svc, _ := newTestMonitorService(backend, newFakeSessionRepo(), newFakeLauncher())

	report, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(report.Queues) != 2 {
		t.Fatalf("Status() returned %d queues, want 2", len(report.Queues))
	}
	// The unreachable queue degrades to an empty snapshot instead of
	// taking the whole view down with it.
	if report.Queues[1].Snapshot.Name != "payments-dlq" || report.Queues[1].Snapshot.MessageCount != 0 {
		t.Errorf("degraded snapshot = %+v", report.Queues[1].Snapshot)
	}
	if report.Queues[0].Snapshot.MessageCount != 5 {
		t.Errorf("healthy snapshot = %+v", report.Queues[0].Snapshot)
	}
}

func TestMonitorStatusDiscoverError(t *testing.T) {
	backend := newFakeBackend(nil)
	backend.discoverErr = errors.New("no credentials")
	svc, _ := newTestMonitorService(backend, newFakeSessionRepo(), newFakeLauncher())

	if _, err := svc.Status(context.Background()); err == nil {
		t.Fatal("Status() succeeded with a failing backend")
	}
}

func TestMonitorTrigger(t *testing.T) {
	backend := newFakeBackend(map[string]int{"orders-dlq": 5})
	repo := newFakeSessionRepo()
	launcher := newFakeLauncher()
	svc, eventRepo := newTestMonitorService(backend, repo, launcher)

	session, err := svc.Trigger(context.Background(), "orders-dlq", false)
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if session.QueueName != "orders-dlq" || session.Status != models.StatusRunning {
		t.Errorf("session = %+v, want running orders-dlq", session)
	}
	if len(launcher.launched) != 1 {
		t.Fatalf("launched %d workers, want 1", len(launcher.launched))
	}

	events, err := eventRepo.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(events) != 1 || events[0].Kind != models.EventSessionStarted {
		t.Errorf("events = %+v, want one session_started", events)
	}
}

func TestMonitorTriggerEmptyQueue(t *testing.T) {
	backend := newFakeBackend(map[string]int{"orders-dlq": 0})
	svc, _ := newTestMonitorService(backend, newFakeSessionRepo(), newFakeLauncher())

	// Even forced: an empty queue has nothing to investigate.
	if _, err := svc.Trigger(context.Background(), "orders-dlq", true); err == nil {
		t.Fatal("Trigger() started a session for an empty queue")
	} else if !strings.Contains(err.Error(), "no dead-letter messages") {
		t.Errorf("Trigger() error = %v", err)
	}
}

func TestMonitorTriggerCooldownAndForce(t *testing.T) {
	backend := newFakeBackend(map[string]int{"orders-dlq": 5})
	repo := newFakeSessionRepo()
	svc, _ := newTestMonitorService(backend, repo, newFakeLauncher())

	prior := &models.Session{QueueName: "orders-dlq", StartedAt: testNow.Add(-20 * time.Minute)}
	if err := repo.Create(context.Background(), prior, 10); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	err := repo.Transition(context.Background(), prior.ID, models.StatusTriggered, models.StatusFailed, secondary.TransitionFields{
		EndedAt:       testNow.Add(-10 * time.Minute),
		CooldownUntil: testNow.Add(50 * time.Minute),
	})
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	if _, err := svc.Trigger(context.Background(), "orders-dlq", false); err == nil {
		t.Fatal("Trigger() ignored an open cooldown window")
	} else if !strings.Contains(err.Error(), "cooling down") {
		t.Errorf("Trigger() error = %v", err)
	}

	session, err := svc.Trigger(context.Background(), "orders-dlq", true)
	if err != nil {
		t.Fatalf("forced Trigger() error = %v", err)
	}
	if !session.Forced {
		t.Error("forced trigger did not mark the session forced")
	}
}

func TestMonitorTriggerActiveSessionEvenForced(t *testing.T) {
	backend := newFakeBackend(map[string]int{"orders-dlq": 5})
	repo := newFakeSessionRepo()
	svc, _ := newTestMonitorService(backend, repo, newFakeLauncher())

	if _, err := svc.Trigger(context.Background(), "orders-dlq", false); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if _, err := svc.Trigger(context.Background(), "orders-dlq", true); err == nil {
		t.Fatal("forced Trigger() bypassed single-flight")
	}
}

func TestMonitorTriggerUnknownQueue(t *testing.T) {
	backend := newFakeBackend(map[string]int{})
	svc, _ := newTestMonitorService(backend, newFakeSessionRepo(), newFakeLauncher())

	if _, err := svc.Trigger(context.Background(), "ghost-dlq", false); err == nil {
		t.Fatal("Trigger() succeeded for an unknown queue")
	}
}

func TestMonitorSessions(t *testing.T) {
	repo := newFakeSessionRepo()
	svc, _ := newTestMonitorService(newFakeBackend(nil), repo, newFakeLauncher())

	for i := 0; i < 3; i++ {
		s := &models.Session{QueueName: fmt.Sprintf("q%d-dlq", i), StartedAt: testNow}
		if err := repo.Create(context.Background(), s, 10); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := repo.Transition(context.Background(), s.ID, models.StatusTriggered, models.StatusFailed, secondary.TransitionFields{EndedAt: testNow}); err != nil {
			t.Fatalf("Transition() error = %v", err)
		}
	}

	sessions, err := svc.Sessions(context.Background(), primary.SessionFilters{Limit: 2})
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Sessions() returned %d, want 2", len(sessions))
	}
	// Newest first.
	if sessions[0].QueueName != "q2-dlq" {
		t.Errorf("Sessions()[0] = %s, want q2-dlq", sessions[0].QueueName)
	}

	byQueue, err := svc.Sessions(context.Background(), primary.SessionFilters{QueueName: "q1-dlq"})
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(byQueue) != 1 || byQueue[0].QueueName != "q1-dlq" {
		t.Errorf("filtered Sessions() = %+v", byQueue)
	}
}

func TestMonitorPurge(t *testing.T) {
	backend := newFakeBackend(map[string]int{"orders-dlq": 9})
	svc, _ := newTestMonitorService(backend, newFakeSessionRepo(), newFakeLauncher())

	if err := svc.Purge(context.Background(), "orders-dlq"); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if len(backend.purged) != 1 || backend.purged[0] != "orders-dlq" {
		t.Errorf("purged = %v", backend.purged)
	}
}
