package launch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/launcher/internal/event"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/launcher/internal/shared/types"
)

var (
	ErrNoActiveAccount  = errors.New("no active account")
	ErrLaunchInFlight   = errors.New("another instance is launching")
	ErrAlreadyLaunching = errors.New("instance is already launching")
	ErrAlreadyRunning   = errors.New("instance is already running")
	ErrNotRunning       = errors.New("instance is not running")
)

// Backend is the slice of the command interface the controller drives
type Backend interface {
	GetInstances(ctx context.Context) ([]types.Instance, error)
	LaunchInstance(ctx context.Context, name string) error
	KillInstance(ctx context.Context, name string) error
}

// Session reports whether an account is signed in
type Session interface {
	IsAuthenticated() bool
}

// Options configures a Controller
type Options struct {
	Policy        Policy
	CosmeticDelay time.Duration
}

// Controller owns every instance's run phase. Running is only ever cleared
// from backend-reported state.
type Controller struct {
	backend Backend
	session Session
	clock   clockwork.Clock
	logger  *zap.Logger
	metrics *monitoring.Metrics
	opts    Options

	mu        sync.Mutex
	phases    map[string]types.Phase
	instances []types.Instance
	launching map[string]clockwork.Timer
	onChange  func()
	closed    bool
}

// NewController creates a launch controller
func NewController(backend Backend, session Session, clock clockwork.Clock, opts Options, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Policy == "" {
		opts.Policy = PolicySingleFlight
	}
	return &Controller{
		backend:   backend,
		session:   session,
		clock:     clock,
		logger:    logger,
		opts:      opts,
		phases:    make(map[string]types.Phase),
		launching: make(map[string]clockwork.Timer),
	}
}

// WithMetrics adds metrics tracking to the controller
func (c *Controller) WithMetrics(metrics *monitoring.Metrics) *Controller {
	c.metrics = metrics
	return c
}

// OnChange registers fn to be called after any phase change
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Policy returns the admission policy in force
func (c *Controller) Policy() Policy { return c.opts.Policy }

// RequestLaunch launches name if admission allows it. A refused request
// never reaches the backend.
func (c *Controller) RequestLaunch(ctx context.Context, name string) error {
	if err := c.admit(name); err != nil {
		c.metrics.RecordLaunch("refused")
		c.logger.Debug("Launch refused", zap.String("instance", name), zap.Error(err))
		return err
	}
	c.changed()

	c.logger.Info("Launching instance", zap.String("instance", name))
	if err := c.backend.LaunchInstance(ctx, name); err != nil {
		c.mu.Lock()
		delete(c.launching, name)
		c.phases[name] = types.PhaseIdle
		c.mu.Unlock()

		c.metrics.RecordLaunch("failed")
		c.logger.Warn("Launch failed", zap.String("instance", name), zap.Error(err))
		c.changed()
		return fmt.Errorf("launch %s: %w", name, err)
	}

	c.mu.Lock()
	c.phases[name] = types.PhaseRunning
	if !c.closed {
		c.launching[name] = c.clock.AfterFunc(c.opts.CosmeticDelay, func() { c.clearLaunching(name) })
	} else {
		delete(c.launching, name)
	}
	c.mu.Unlock()

	c.metrics.RecordLaunch("ok")
	c.changed()

	if err := c.RefreshInstances(ctx); err != nil {
		c.logger.Warn("Instance refresh after launch failed", zap.Error(err))
	}
	return nil
}

// admit applies the admission policy and claims the launching slot
func (c *Controller) admit(name string) error {
	if c.session != nil && !c.session.IsAuthenticated() {
		return ErrNoActiveAccount
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.launching[name]; ok || c.phases[name] == types.PhaseLaunching {
		return ErrAlreadyLaunching
	}
	if c.phases[name] == types.PhaseRunning {
		return ErrAlreadyRunning
	}
	if c.opts.Policy == PolicySingleFlight && len(c.launching) > 0 {
		return ErrLaunchInFlight
	}

	c.phases[name] = types.PhaseLaunching
	// nil until the backend confirms; the slot is held either way
	c.launching[name] = nil
	return nil
}

func (c *Controller) clearLaunching(name string) {
	c.mu.Lock()
	if _, ok := c.launching[name]; !ok || c.phases[name] == types.PhaseLaunching {
		c.mu.Unlock()
		return
	}
	delete(c.launching, name)
	c.mu.Unlock()

	c.changed()
}

// RequestKill asks the backend to stop a running instance. The phase stays
// Running until the backend reports the instance stopped.
func (c *Controller) RequestKill(ctx context.Context, name string) error {
	c.mu.Lock()
	phase := c.phases[name]
	c.mu.Unlock()

	if phase != types.PhaseRunning {
		return ErrNotRunning
	}

	c.logger.Info("Stopping instance", zap.String("instance", name))
	if err := c.backend.KillInstance(ctx, name); err != nil {
		c.logger.Warn("Kill failed", zap.String("instance", name), zap.Error(err))
		return fmt.Errorf("kill %s: %w", name, err)
	}
	return nil
}

// RefreshInstances reloads the instance list and reconciles run phases
// with what the backend reports.
func (c *Controller) RefreshInstances(ctx context.Context) error {
	instances, err := c.backend.GetInstances(ctx)
	if err != nil {
		return fmt.Errorf("refresh instances: %w", err)
	}

	c.mu.Lock()
	phases := make(map[string]types.Phase, len(instances))
	for _, inst := range instances {
		_, marked := c.launching[inst.Name]
		current := c.phases[inst.Name]
		switch {
		case inst.Running:
			phases[inst.Name] = types.PhaseRunning
		case current == types.PhaseLaunching:
			phases[inst.Name] = types.PhaseLaunching
		case marked && current == types.PhaseRunning:
			// just launched; the process may not be visible yet
			phases[inst.Name] = types.PhaseRunning
		default:
			phases[inst.Name] = types.PhaseIdle
		}
	}
	// keep in-flight launches for instances the list does not know yet
	for name, phase := range c.phases {
		if _, ok := phases[name]; !ok && phase == types.PhaseLaunching {
			phases[name] = phase
		}
	}
	c.phases = phases
	c.instances = instances
	c.mu.Unlock()

	c.changed()
	return nil
}

// Watch refreshes instances whenever the backend reports one stopped.
// The returned function removes the subscription.
func (c *Controller) Watch(ctx context.Context, bus *event.Bus) (unsubscribe func()) {
	id := bus.Subscribe(event.KindInstanceStopped, func(e event.Event) {
		stopped, _ := e.(event.InstanceStoppedEvent)
		c.logger.Debug("Instance stopped", zap.String("instance", stopped.Name))
		c.markStopped(stopped.Name)
		if err := c.RefreshInstances(ctx); err != nil {
			c.logger.Warn("Instance refresh after stop failed", zap.Error(err))
		}
	})
	return func() { bus.Unsubscribe(id) }
}

// markStopped applies a backend stop notification to a running instance
func (c *Controller) markStopped(name string) {
	c.mu.Lock()
	if c.phases[name] != types.PhaseRunning {
		c.mu.Unlock()
		return
	}
	c.phases[name] = types.PhaseIdle
	if timer := c.launching[name]; timer != nil {
		timer.Stop()
		delete(c.launching, name)
	}
	c.mu.Unlock()

	c.changed()
}

// LaunchingName returns the instance holding the launching marker, if any.
// Under PolicyPerInstance several may be launching; the first by name is returned.
func (c *Controller) LaunchingName() string {
	names := c.LaunchingNames()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// LaunchingNames returns every instance holding a launching marker
func (c *Controller) LaunchingNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.launching))
	for name := range c.launching {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Running returns the names of running instances
func (c *Controller) Running() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0)
	for name, phase := range c.phases {
		if phase == types.PhaseRunning {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Phase returns the run phase of name
func (c *Controller) Phase(name string) types.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()

	if phase, ok := c.phases[name]; ok {
		return phase
	}
	return types.PhaseIdle
}

// States returns the run state of every known instance
func (c *Controller) States() []types.InstanceRunState {
	c.mu.Lock()
	defer c.mu.Unlock()

	states := make([]types.InstanceRunState, 0, len(c.phases))
	for name, phase := range c.phases {
		states = append(states, types.InstanceRunState{Name: name, Phase: phase})
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Name < states[j].Name })
	return states
}

// Instances returns the last instance list fetched from the backend
func (c *Controller) Instances() []types.Instance {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]types.Instance, len(c.instances))
	copy(out, c.instances)
	return out
}

// Close stops pending cosmetic timers and releases launching markers
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	for name, timer := range c.launching {
		if timer != nil {
			timer.Stop()
			delete(c.launching, name)
		}
	}
	c.mu.Unlock()
}

func (c *Controller) changed() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
