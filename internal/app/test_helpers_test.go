package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/dlqwatch/internal/models"
	"github.com/example/dlqwatch/internal/ports/secondary"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// Ensure the fakes implement the ports they stand in for.
var (
	_ secondary.SessionRepository = (*fakeSessionRepo)(nil)
	_ secondary.WorkerLauncher    = (*fakeLauncher)(nil)
	_ secondary.QueueBackend      = (*fakeBackend)(nil)
)

// fakeSessionRepo is an in-memory SessionRepository mirroring the sqlite
// adapter's semantics: an insert that atomically enforces single-flight
// and the concurrency ceiling, and CAS transitions.
type fakeSessionRepo struct {
	mu       sync.Mutex
	nextID   int64
	sessions []*models.Session

	createErr error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{nextID: 1}
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *models.Session, maxActive int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}
	active := 0
	for _, s := range r.sessions {
		if !s.Status.Active() {
			continue
		}
		if s.QueueName == session.QueueName {
			return secondary.ErrAlreadyActive
		}
		active++
	}
	if active >= maxActive {
		return secondary.ErrCapacityExceeded
	}
	session.ID = r.nextID
	r.nextID++
	session.Status = models.StatusTriggered
	stored := *session
	r.sessions = append(r.sessions, &stored)
	return nil
}

func (r *fakeSessionRepo) Transition(ctx context.Context, id int64, from, to models.SessionStatus, fields secondary.TransitionFields) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.ID != id {
			continue
		}
		if s.Status != from {
			return secondary.ErrStaleTransition
		}
		s.Status = to
		if fields.Handle != "" {
			s.Handle = fields.Handle
		}
		if fields.Detail != "" {
			s.Detail = fields.Detail
		}
		if !fields.EndedAt.IsZero() {
			s.EndedAt = fields.EndedAt
		}
		if !fields.CooldownUntil.IsZero() {
			s.CooldownUntil = fields.CooldownUntil
		}
		return nil
	}
	return secondary.ErrNotFound
}

func (r *fakeSessionRepo) LoadActive(ctx context.Context) ([]*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var active []*models.Session
	for _, s := range r.sessions {
		if s.Status.Active() {
			copied := *s
			active = append(active, &copied)
		}
	}
	return active, nil
}

func (r *fakeSessionRepo) Latest(ctx context.Context, queueName string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.sessions) - 1; i >= 0; i-- {
		if r.sessions[i].QueueName == queueName {
			copied := *r.sessions[i]
			return &copied, nil
		}
	}
	return nil, secondary.ErrNotFound
}

func (r *fakeSessionRepo) LatestAll(ctx context.Context) (map[string]*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	latest := make(map[string]*models.Session)
	for _, s := range r.sessions {
		copied := *s
		latest[s.QueueName] = &copied
	}
	return latest, nil
}

func (r *fakeSessionRepo) List(ctx context.Context, filters secondary.SessionFilters) ([]*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Session
	for i := len(r.sessions) - 1; i >= 0; i-- {
		s := r.sessions[i]
		if filters.QueueName != "" && s.QueueName != filters.QueueName {
			continue
		}
		if filters.Status != "" && s.Status != filters.Status {
			continue
		}
		copied := *s
		out = append(out, &copied)
		if filters.Limit > 0 && len(out) == filters.Limit {
			break
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) CountRunning(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, s := range r.sessions {
		if s.Status == models.StatusRunning {
			count++
		}
	}
	return count, nil
}

// byID returns a copy of the stored session, for assertions.
func (r *fakeSessionRepo) byID(id int64) *models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.ID == id {
			copied := *s
			return &copied
		}
	}
	return nil
}

// fakeLauncher is a scriptable WorkerLauncher.
type fakeLauncher struct {
	mu sync.Mutex

	launchErr  error
	launched   []secondary.LaunchContext
	reports    map[string]secondary.WorkerReport // handle -> report
	reattach   map[string]error                  // handle -> reattach result
	terminated map[string]int                    // handle -> terminate calls
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{
		reports:    make(map[string]secondary.WorkerReport),
		reattach:   make(map[string]error),
		terminated: make(map[string]int),
	}
}

func (l *fakeLauncher) Launch(ctx context.Context, lc secondary.LaunchContext) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.launchErr != nil {
		return "", l.launchErr
	}
	l.launched = append(l.launched, lc)
	handle := "worker-" + lc.QueueName
	if _, ok := l.reports[handle]; !ok {
		l.reports[handle] = secondary.WorkerReport{State: secondary.WorkerRunning}
	}
	return handle, nil
}

func (l *fakeLauncher) Status(ctx context.Context, handle string) (secondary.WorkerReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	report, ok := l.reports[handle]
	if !ok {
		return secondary.WorkerReport{}, fmt.Errorf("unknown handle %s", handle)
	}
	return report, nil
}

func (l *fakeLauncher) Terminate(ctx context.Context, handle string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.terminated[handle]++
	return nil
}

func (l *fakeLauncher) Reattach(ctx context.Context, handle string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err, ok := l.reattach[handle]; ok {
		return err
	}
	return nil
}

// launches returns a snapshot of recorded launch contexts, safe to call
// while the orchestrator loop is running.
func (l *fakeLauncher) launches() []secondary.LaunchContext {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]secondary.LaunchContext, len(l.launched))
	copy(out, l.launched)
	return out
}

func (l *fakeLauncher) setReport(handle string, report secondary.WorkerReport) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reports[handle] = report
}

// fakeBackend is a scriptable QueueBackend.
type fakeBackend struct {
	mu sync.Mutex

	counts      map[string]int
	discoverErr error
	attrErrs    map[string]error
	purged      []string
}

func newFakeBackend(counts map[string]int) *fakeBackend {
	if counts == nil {
		counts = make(map[string]int)
	}
	return &fakeBackend{counts: counts, attrErrs: make(map[string]error)}
}

func (b *fakeBackend) Discover(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.discoverErr != nil {
		return nil, b.discoverErr
	}
	var names []string
	for name := range b.counts {
		names = append(names, name)
	}
	return names, nil
}

func (b *fakeBackend) Attributes(ctx context.Context, queueName string) (models.QueueSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.attrErrs[queueName]; err != nil {
		return models.QueueSnapshot{}, err
	}
	count, ok := b.counts[queueName]
	if !ok {
		return models.QueueSnapshot{}, fmt.Errorf("queue %s not found", queueName)
	}
	return models.QueueSnapshot{Name: queueName, MessageCount: count, ObservedAt: testNow}, nil
}

func (b *fakeBackend) Purge(ctx context.Context, queueName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.purged = append(b.purged, queueName)
	b.counts[queueName] = 0
	return nil
}

func (b *fakeBackend) setCount(queue string, count int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts[queue] = count
}

// recordingListener captures published events.
type recordingListener struct {
	mu     sync.Mutex
	events []models.Event
	err    error
}

func (r *recordingListener) HandleEvent(ctx context.Context, event models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingListener) kinds() []models.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds := make([]models.EventKind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

// newTestSupervisor wires a supervisor with fakes and a fixed clock.
func newTestSupervisor(repo *fakeSessionRepo, launcher *fakeLauncher, emitter *Emitter) *Supervisor {
	s := NewSupervisor(repo, launcher, emitter, SupervisorConfig{
		Timeout:       30 * time.Minute,
		Cooldown:      time.Hour,
		MaxConcurrent: 3,
		Region:        "sa-east-1",
		Profile:       "prod",
	}, zap.NewNop())
	s.now = func() time.Time { return testNow }
	return s
}
