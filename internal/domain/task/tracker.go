package task

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/launcher/internal/event"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/config"
	"github.com/GriffinCanCode/launcher/internal/shared/types"
)

var (
	ErrAlreadyStarted = errors.New("task already started")
	ErrTaskExists     = errors.New("a task for this target is already in progress")
	ErrTaskNotFound   = errors.New("task not found")
)

// Options controls tracker timing
type Options struct {
	GraceWindow      time.Duration
	TickInterval     time.Duration
	ForceComplete    time.Duration
	RealSettle       time.Duration
	SyntheticSettle  time.Duration
	MaxIncrement     float64
	SyntheticCeiling float64

	// Rand returns values in [0, 1); defaults to math/rand
	Rand func() float64
}

// DefaultOptions returns the stock timing
func DefaultOptions() Options {
	return Options{
		GraceWindow:      2000 * time.Millisecond,
		TickInterval:     300 * time.Millisecond,
		ForceComplete:    5000 * time.Millisecond,
		RealSettle:       1500 * time.Millisecond,
		SyntheticSettle:  2000 * time.Millisecond,
		MaxIncrement:     15,
		SyntheticCeiling: 90,
	}
}

// OptionsFromConfig maps task configuration onto tracker options
func OptionsFromConfig(cfg config.TaskConfig) Options {
	return Options{
		GraceWindow:      cfg.GraceWindow,
		TickInterval:     cfg.TickInterval,
		ForceComplete:    cfg.ForceComplete,
		RealSettle:       cfg.RealSettle,
		SyntheticSettle:  cfg.SyntheticSettle,
		MaxIncrement:     cfg.MaxIncrement,
		SyntheticCeiling: cfg.SyntheticCeiling,
	}
}

// Tracker follows one long-running backend operation. Real progress events
// from either progress channel win over the synthetic fallback for good once
// the first one arrives.
type Tracker struct {
	target string
	kind   types.TaskKind
	bus    *event.Bus
	clock  clockwork.Clock
	opts   Options
	logger *zap.Logger

	mu        sync.Mutex
	status    types.TaskStatus
	progress  float64
	source    types.ProgressSource
	errText   string
	startedAt time.Time
	// latch: set by the first matching real event, never cleared
	hasRealProgress bool
	completed       bool

	subs       []string
	grace      clockwork.Timer
	tick       clockwork.Timer
	deadline   clockwork.Timer
	settle     clockwork.Timer
	onComplete func()
	onChange   func()
}

// NewTracker creates an idle tracker for target
func NewTracker(target string, kind types.TaskKind, bus *event.Bus, clock clockwork.Clock, opts Options, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	return &Tracker{
		target: target,
		kind:   kind,
		bus:    bus,
		clock:  clock,
		opts:   opts,
		logger: logger.With(zap.String("target", target), zap.String("kind", string(kind))),
		status: types.TaskPending,
		source: types.SourceSynthetic,
	}
}

// OnChange registers fn to be called after every state change.
// Must be set before Start.
func (t *Tracker) OnChange(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// Start begins tracking. onComplete is called once, after the settle delay
// that follows reaching 100%.
func (t *Tracker) Start(onComplete func()) error {
	t.mu.Lock()
	if t.status != types.TaskPending {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}

	t.status = types.TaskActive
	t.startedAt = t.clock.Now()
	t.onComplete = onComplete
	t.grace = t.clock.AfterFunc(t.opts.GraceWindow, t.onGrace)
	t.deadline = t.clock.AfterFunc(t.opts.ForceComplete, t.onDeadline)
	t.mu.Unlock()

	// subscribing outside the lock; merge takes it
	subs := make([]string, 0, len(event.ProgressKinds))
	for _, kind := range event.ProgressKinds {
		subs = append(subs, t.bus.Subscribe(kind, t.merge))
	}

	t.mu.Lock()
	terminal := t.status != types.TaskActive
	if !terminal {
		t.subs = subs
	}
	t.mu.Unlock()

	if terminal {
		t.unsubscribe(subs)
	}

	t.logger.Debug("Task started")
	t.changed()
	return nil
}

// merge is the single handler for both progress channels
func (t *Tracker) merge(e event.Event) {
	ev, ok := e.(event.ProgressEvent)
	if !ok || ev.Target != t.target {
		return
	}

	t.mu.Lock()
	if t.status != types.TaskActive {
		t.mu.Unlock()
		return
	}

	if !t.hasRealProgress {
		t.hasRealProgress = true
		t.source = types.SourceReal
		stopTimer(t.grace)
		stopTimer(t.tick)
		stopTimer(t.deadline)
	}

	t.raise(min(ev.Progress, 100))
	var subs []string
	if t.progress >= 100 {
		subs = t.succeed(t.opts.RealSettle)
	}
	t.mu.Unlock()

	t.unsubscribe(subs)
	t.changed()
}

func (t *Tracker) onGrace() {
	t.mu.Lock()
	if t.status != types.TaskActive || t.hasRealProgress {
		t.mu.Unlock()
		return
	}
	t.logger.Debug("No progress events within grace window, using synthetic progress")
	t.tick = t.clock.AfterFunc(t.opts.TickInterval, t.onTick)
	t.mu.Unlock()
}

func (t *Tracker) onTick() {
	t.mu.Lock()
	if t.status != types.TaskActive || t.hasRealProgress {
		t.mu.Unlock()
		return
	}

	// 1-r is in (0, 1], so every tick moves forward
	step := (1 - t.opts.Rand()) * t.opts.MaxIncrement
	t.raise(min(t.progress+step, t.opts.SyntheticCeiling))
	t.tick.Reset(t.opts.TickInterval)
	t.mu.Unlock()

	t.changed()
}

func (t *Tracker) onDeadline() {
	t.mu.Lock()
	if t.status != types.TaskActive || t.hasRealProgress {
		t.mu.Unlock()
		return
	}
	stopTimer(t.tick)
	t.progress = 100
	subs := t.succeed(t.opts.SyntheticSettle)
	t.mu.Unlock()

	t.unsubscribe(subs)
	t.logger.Debug("No progress events before deadline, forcing completion")
	t.changed()
}

func (t *Tracker) onSettle() {
	t.mu.Lock()
	if t.status != types.TaskSucceeded || t.completed {
		t.mu.Unlock()
		return
	}
	t.completed = true
	fn := t.onComplete
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// raise moves progress forward only; must hold mu
func (t *Tracker) raise(p float64) {
	if p > t.progress {
		t.progress = p
	}
}

// succeed must hold mu. The returned subscriptions are for the caller to
// release once mu is dropped.
func (t *Tracker) succeed(settle time.Duration) []string {
	t.status = types.TaskSucceeded
	t.settle = t.clock.AfterFunc(settle, t.onSettle)
	return t.detach()
}

// detach hands over the bus subscriptions; must hold mu
func (t *Tracker) detach() []string {
	subs := t.subs
	t.subs = nil
	return subs
}

func (t *Tracker) unsubscribe(subs []string) {
	for _, id := range subs {
		t.bus.Unsubscribe(id)
	}
}

// Fail moves an active task to Error. It has no effect once the task has
// reached a terminal state.
func (t *Tracker) Fail(err error) {
	t.mu.Lock()
	if t.status != types.TaskActive && t.status != types.TaskPending {
		t.mu.Unlock()
		return
	}
	t.status = types.TaskError
	if err != nil {
		t.errText = err.Error()
	}
	t.stopTimers()
	subs := t.detach()
	t.mu.Unlock()

	t.unsubscribe(subs)
	t.logger.Warn("Task failed", zap.Error(err))
	t.changed()
}

// Dismiss releases every subscription and timer. Safe to call repeatedly
// and from any state; a pending completion callback will not fire.
func (t *Tracker) Dismiss() {
	t.mu.Lock()
	if t.status == types.TaskDismissed {
		t.mu.Unlock()
		return
	}
	t.status = types.TaskDismissed
	t.stopTimers()
	subs := t.detach()
	t.mu.Unlock()

	t.unsubscribe(subs)
	t.changed()
}

// Cancel is an alias for Dismiss
func (t *Tracker) Cancel() { t.Dismiss() }

// must hold mu
func (t *Tracker) stopTimers() {
	stopTimer(t.grace)
	stopTimer(t.tick)
	stopTimer(t.deadline)
	stopTimer(t.settle)
}

func (t *Tracker) changed() {
	t.mu.Lock()
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Target returns the tracked target name
func (t *Tracker) Target() string { return t.target }

// Status returns the current status
func (t *Tracker) Status() types.TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Progress returns the current progress in [0, 100]
func (t *Tracker) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// HasRealProgress reports whether a real progress event has been observed
func (t *Tracker) HasRealProgress() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasRealProgress
}

// Snapshot returns a copy of the task state
func (t *Tracker) Snapshot() types.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return types.Task{
		Target:    t.target,
		Kind:      t.kind,
		Progress:  t.progress,
		Status:    t.status,
		Source:    t.source,
		Error:     t.errText,
		StartedAt: t.startedAt,
	}
}

func stopTimer(timer clockwork.Timer) {
	if timer != nil {
		timer.Stop()
	}
}
