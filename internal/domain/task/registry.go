package task

import (
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/launcher/internal/event"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/launcher/internal/shared/types"
)

// Registry keeps at most one tracker per target name
type Registry struct {
	mu       sync.RWMutex
	tasks    map[string]*Tracker
	bus      *event.Bus
	clock    clockwork.Clock
	opts     Options
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	onChange func()
}

// NewRegistry creates an empty registry
func NewRegistry(bus *event.Bus, clock clockwork.Clock, opts Options, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tasks:  make(map[string]*Tracker),
		bus:    bus,
		clock:  clock,
		opts:   opts,
		logger: logger,
	}
}

// WithMetrics adds metrics tracking to the registry
func (r *Registry) WithMetrics(metrics *monitoring.Metrics) *Registry {
	r.metrics = metrics
	return r
}

// OnChange registers fn to be called after any task changes
func (r *Registry) OnChange(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Start creates and starts a tracker for target. The tracker is removed from
// the registry right before onComplete runs.
func (r *Registry) Start(target string, kind types.TaskKind, onComplete func()) (*Tracker, error) {
	r.mu.Lock()
	if _, exists := r.tasks[target]; exists {
		r.mu.Unlock()
		return nil, ErrTaskExists
	}
	tracker := NewTracker(target, kind, r.bus, r.clock, r.opts, r.logger)
	tracker.OnChange(r.changed)
	r.tasks[target] = tracker
	active := len(r.tasks)
	r.mu.Unlock()

	r.metrics.SetTasksActive(active)

	err := tracker.Start(func() {
		snap := tracker.Snapshot()
		r.remove(target, tracker)
		tracker.Dismiss()
		r.metrics.RecordTaskOutcome(string(snap.Kind), string(snap.Status), string(snap.Source))
		r.logger.Info("Task completed",
			zap.String("target", target),
			zap.String("source", string(snap.Source)),
		)
		if onComplete != nil {
			onComplete()
		}
	})
	if err != nil {
		r.remove(target, tracker)
		return nil, err
	}
	return tracker, nil
}

// Get returns the tracker for target
func (r *Registry) Get(target string) (*Tracker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[target]
	return t, ok
}

// Fail moves the task for target to Error. The task stays listed until dismissed.
func (r *Registry) Fail(target string, err error) error {
	tracker, ok := r.Get(target)
	if !ok {
		return ErrTaskNotFound
	}
	tracker.Fail(err)
	r.metrics.RecordTaskOutcome(string(tracker.kind), string(types.TaskError), string(tracker.Snapshot().Source))
	return nil
}

// Dismiss stops and forgets the task for target
func (r *Registry) Dismiss(target string) error {
	r.mu.Lock()
	tracker, ok := r.tasks[target]
	if ok {
		delete(r.tasks, target)
	}
	active := len(r.tasks)
	r.mu.Unlock()

	if !ok {
		return ErrTaskNotFound
	}
	tracker.Dismiss()
	r.metrics.SetTasksActive(active)
	return nil
}

// Snapshot returns every tracked task, oldest first
func (r *Registry) Snapshot() []types.Task {
	r.mu.RLock()
	trackers := make([]*Tracker, 0, len(r.tasks))
	for _, t := range r.tasks {
		trackers = append(trackers, t)
	}
	r.mu.RUnlock()

	tasks := make([]types.Task, 0, len(trackers))
	for _, t := range trackers {
		tasks = append(tasks, t.Snapshot())
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].StartedAt.Equal(tasks[j].StartedAt) {
			return tasks[i].Target < tasks[j].Target
		}
		return tasks[i].StartedAt.Before(tasks[j].StartedAt)
	})
	return tasks
}

// Len returns the number of tracked tasks
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// Close dismisses every task
func (r *Registry) Close() {
	r.mu.Lock()
	trackers := r.tasks
	r.tasks = make(map[string]*Tracker)
	r.mu.Unlock()

	for _, t := range trackers {
		t.Dismiss()
	}
	r.metrics.SetTasksActive(0)
}

func (r *Registry) remove(target string, tracker *Tracker) {
	r.mu.Lock()
	if r.tasks[target] == tracker {
		delete(r.tasks, target)
	}
	active := len(r.tasks)
	r.mu.Unlock()

	r.metrics.SetTasksActive(active)
}

func (r *Registry) changed() {
	r.mu.RLock()
	fn := r.onChange
	r.mu.RUnlock()
	if fn != nil {
		fn()
	}
}
