package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/launcher/internal/backend"
	"github.com/GriffinCanCode/launcher/internal/domain/account"
	"github.com/GriffinCanCode/launcher/internal/domain/launch"
	"github.com/GriffinCanCode/launcher/internal/domain/presence"
	"github.com/GriffinCanCode/launcher/internal/domain/task"
	"github.com/GriffinCanCode/launcher/internal/event"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/config"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/launcher/internal/shared/types"
	"github.com/GriffinCanCode/launcher/internal/shared/utils"
)

// Options configures every component
type Options struct {
	Tasks    task.Options
	Launch   launch.Options
	Presence presence.Options
}

// OptionsFromConfig builds Options from application configuration
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	policy, err := launch.ParsePolicy(cfg.Launch.Policy)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Tasks:    task.OptionsFromConfig(cfg.Tasks),
		Launch:   launch.Options{Policy: policy, CosmeticDelay: cfg.Launch.CosmeticDelay},
		Presence: presence.OptionsFromConfig(cfg.Presence),
	}, nil
}

// Deps are the collaborators an Orchestrator is built from
type Deps struct {
	Backend backend.Commands
	Bus     *event.Bus
	Clock   clockwork.Clock
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Orchestrator is the only surface the view layer touches
type Orchestrator struct {
	backend backend.Commands
	logger  *zap.Logger

	tasks    *task.Registry
	launch   *launch.Controller
	accounts *account.Multiplexer
	presence *presence.Synchronizer

	ctx     context.Context
	cancel  context.CancelFunc
	unwatch func()

	mu        sync.RWMutex
	listeners map[string]Listener
	alert     *Alert
}

// New wires the components together
func New(deps Deps, opts Options) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	accounts := account.NewMultiplexer(deps.Backend, logger.Named("account")).WithMetrics(deps.Metrics)
	o := &Orchestrator{
		backend:   deps.Backend,
		logger:    logger,
		tasks:     task.NewRegistry(deps.Bus, deps.Clock, opts.Tasks, logger.Named("task")).WithMetrics(deps.Metrics),
		launch:    launch.NewController(deps.Backend, accounts, deps.Clock, opts.Launch, logger.Named("launch")).WithMetrics(deps.Metrics),
		accounts:  accounts,
		presence:  presence.NewSynchronizer(deps.Backend, deps.Clock, opts.Presence, logger.Named("presence")).WithMetrics(deps.Metrics),
		listeners: make(map[string]Listener),
	}
	o.ctx, o.cancel = context.WithCancel(context.Background())

	accounts.OnSessionChange(o.presence.HandleSessionChange)
	o.unwatch = o.launch.Watch(o.ctx, deps.Bus)

	o.tasks.OnChange(o.notify)
	o.launch.OnChange(o.notify)
	o.accounts.OnChange(o.notify)
	o.presence.OnChange(o.notify)

	return o
}

// Init loads accounts (starting presence sync if signed in) and instances
func (o *Orchestrator) Init(ctx context.Context) error {
	accErr := o.accounts.LoadAccounts(ctx)
	instErr := o.launch.RefreshInstances(ctx)
	return errors.Join(accErr, instErr)
}

// Close stops polling, cancels every task and releases timers
func (o *Orchestrator) Close() {
	o.presence.Stop()
	o.tasks.Close()
	o.launch.Close()
	o.unwatch()
	o.cancel()
}

// Subscribe registers a listener for state changes
func (o *Orchestrator) Subscribe(listener Listener) (unsubscribe func()) {
	id := uuid.NewString()

	o.mu.Lock()
	o.listeners[id] = listener
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.listeners, id)
		o.mu.Unlock()
	}
}

func (o *Orchestrator) notify() {
	o.mu.RLock()
	if len(o.listeners) == 0 {
		o.mu.RUnlock()
		return
	}
	listeners := make([]Listener, 0, len(o.listeners))
	for _, l := range o.listeners {
		listeners = append(listeners, l)
	}
	o.mu.RUnlock()

	state := o.Snapshot()
	for _, l := range listeners {
		l(state)
	}
}

// Snapshot returns the current view state
func (o *Orchestrator) Snapshot() State {
	state := State{
		Tasks:             o.tasks.Snapshot(),
		Instances:         o.launch.Instances(),
		RunStates:         o.launch.States(),
		Launching:         o.launch.LaunchingName(),
		Running:           o.launch.Running(),
		Accounts:          o.accounts.Accounts(),
		SigningIn:         o.accounts.SigningIn(),
		AccountPickerOpen: o.accounts.PickerOpen(),
		Social:            o.presence.View(),
	}
	if active, ok := o.accounts.Active(); ok {
		state.Authenticated = true
		state.ActiveAccount = &active
	}

	o.mu.RLock()
	if o.alert != nil {
		alert := *o.alert
		state.Alert = &alert
	}
	o.mu.RUnlock()
	return state
}

// RequestLaunch launches an instance and reports the account in-game
func (o *Orchestrator) RequestLaunch(ctx context.Context, name string) error {
	if err := o.launch.RequestLaunch(ctx, name); err != nil {
		return err
	}
	o.presence.ReportInGame(ctx, name)
	return nil
}

// RequestKill asks the backend to stop a running instance
func (o *Orchestrator) RequestKill(ctx context.Context, name string) error {
	return o.launch.RequestKill(ctx, name)
}

// RefreshInstances reloads the instance list
func (o *Orchestrator) RefreshInstances(ctx context.Context) error {
	return o.launch.RefreshInstances(ctx)
}

// RequestDuplicate copies source into target and tracks the copy's progress
func (o *Orchestrator) RequestDuplicate(ctx context.Context, source, target string) error {
	source, target = strings.TrimSpace(source), strings.TrimSpace(target)
	if source == "" || target == "" {
		return ErrEmptyName
	}
	if err := utils.ValidateInstanceName(target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidName, err)
	}

	return o.runTask(ctx, target, types.TaskDuplicate, "duplication", func() error {
		return o.backend.DuplicateInstance(ctx, source, target)
	})
}

// RequestCreate creates a new instance and tracks its progress
func (o *Orchestrator) RequestCreate(ctx context.Context, req types.CreateInstanceRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return ErrEmptyName
	}
	if err := errors.Join(utils.ValidateInstanceName(req.Name), utils.ValidateVersion(req.Version)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidName, err)
	}

	return o.runTask(ctx, req.Name, types.TaskCreate, "creation", func() error {
		return o.backend.CreateInstance(ctx, req)
	})
}

// runTask starts a tracker for target, then runs call. A failed call moves
// the task to Error and raises an alert.
func (o *Orchestrator) runTask(ctx context.Context, target string, kind types.TaskKind, operation string, call func() error) error {
	_, err := o.tasks.Start(target, kind, func() {
		if err := o.launch.RefreshInstances(o.ctx); err != nil {
			o.logger.Warn("Instance refresh after task failed", zap.String("target", target), zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	if err := call(); err != nil {
		alertErr := &AlertError{Operation: operation, Target: target, Err: err}
		if failErr := o.tasks.Fail(target, err); failErr != nil {
			o.logger.Debug("Task gone before failure was recorded", zap.String("target", target))
		}

		o.mu.Lock()
		o.alert = alertFrom(alertErr)
		o.mu.Unlock()
		o.logger.Error("Critical operation failed", zap.String("operation", operation), zap.String("target", target), zap.Error(err))
		o.notify()
		return alertErr
	}
	return nil
}

// DismissTask dismisses the task for target and any alert it raised
func (o *Orchestrator) DismissTask(target string) error {
	o.mu.Lock()
	cleared := o.alert != nil && o.alert.Target == target
	if cleared {
		o.alert = nil
	}
	o.mu.Unlock()

	err := o.tasks.Dismiss(target)
	if cleared && errors.Is(err, task.ErrTaskNotFound) {
		o.notify()
		return nil
	}
	return err
}

// DismissAlert clears the current alert
func (o *Orchestrator) DismissAlert() {
	o.mu.Lock()
	o.alert = nil
	o.mu.Unlock()
	o.notify()
}

// SwitchAccount switches the active account
func (o *Orchestrator) SwitchAccount(ctx context.Context, uuid string) error {
	return o.accounts.SwitchAccount(ctx, uuid)
}

// AddAccount runs the sign-in flow
func (o *Orchestrator) AddAccount(ctx context.Context) error {
	return o.accounts.AddAccount(ctx)
}

// RemoveAccount signs an account out
func (o *Orchestrator) RemoveAccount(ctx context.Context, uuid string) error {
	return o.accounts.RemoveAccount(ctx, uuid)
}

// OpenAccountPicker opens the account picker
func (o *Orchestrator) OpenAccountPicker() { o.accounts.OpenPicker() }

// CloseAccountPicker closes the account picker
func (o *Orchestrator) CloseAccountPicker() { o.accounts.ClosePicker() }

// SendFriendRequest sends a friend request by username
func (o *Orchestrator) SendFriendRequest(ctx context.Context, username string) error {
	return o.presence.SendFriendRequest(ctx, username)
}

// AcceptRequest accepts a friend request
func (o *Orchestrator) AcceptRequest(ctx context.Context, id string) error {
	return o.presence.AcceptRequest(ctx, id)
}

// RejectRequest rejects a friend request
func (o *Orchestrator) RejectRequest(ctx context.Context, id string) error {
	return o.presence.RejectRequest(ctx, id)
}

// StageFriendRemoval stages a friend for removal
func (o *Orchestrator) StageFriendRemoval(uuid, username string) {
	o.presence.StageRemoval(types.PendingRemoval{UUID: uuid, Username: username})
}

// ConfirmFriendRemoval removes the staged friend
func (o *Orchestrator) ConfirmFriendRemoval(ctx context.Context) error {
	return o.presence.ConfirmRemoval(ctx)
}

// CancelFriendRemoval drops the staged friend
func (o *Orchestrator) CancelFriendRemoval() { o.presence.CancelRemoval() }

// OpenAddFriendPanel opens the add-friend panel
func (o *Orchestrator) OpenAddFriendPanel() { o.presence.OpenAddPanel() }

// CloseAddFriendPanel closes the add-friend panel
func (o *Orchestrator) CloseAddFriendPanel() { o.presence.CloseAddPanel() }

// Policy returns the launch admission policy in force
func (o *Orchestrator) Policy() launch.Policy { return o.launch.Policy() }
