package account

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/launcher/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/launcher/internal/shared/types"
)

var ErrSignInInFlight = errors.New("sign-in already in progress")

// Backend is the slice of the command interface the multiplexer drives
type Backend interface {
	GetAccounts(ctx context.Context) ([]types.Account, error)
	SwitchAccount(ctx context.Context, uuid string) error
	AddAccount(ctx context.Context) error
	RemoveAccount(ctx context.Context, uuid string) error
	UpdateUserStatus(ctx context.Context, status types.PresenceStatus, instance *string) error
}

// SessionListener is told about the new active account, or nil on sign-out
type SessionListener func(active *types.Account)

// Multiplexer tracks signed-in accounts. The active account is always
// derived from the backend's is_active flags, never set locally.
type Multiplexer struct {
	backend Backend
	logger  *zap.Logger
	metrics *monitoring.Metrics

	// serializes reloads so listeners see session changes in order
	loadMu sync.Mutex

	mu         sync.RWMutex
	accounts   []types.Account
	active     *types.Account
	signingIn  bool
	pickerOpen bool
	listeners  []SessionListener
	onChange   func()
}

// NewMultiplexer creates an empty multiplexer; call LoadAccounts to populate it
func NewMultiplexer(backend Backend, logger *zap.Logger) *Multiplexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multiplexer{
		backend: backend,
		logger:  logger,
	}
}

// WithMetrics adds metrics tracking to the multiplexer
func (m *Multiplexer) WithMetrics(metrics *monitoring.Metrics) *Multiplexer {
	m.metrics = metrics
	return m
}

// OnSessionChange registers a listener for active account changes
func (m *Multiplexer) OnSessionChange(listener SessionListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

// OnChange registers fn to be called after any state change
func (m *Multiplexer) OnChange(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// LoadAccounts fetches the account list and re-derives the active account.
// On error the previous state is kept.
func (m *Multiplexer) LoadAccounts(ctx context.Context) error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	accounts, err := m.backend.GetAccounts(ctx)
	if err != nil {
		m.logger.Warn("Failed to load accounts", zap.Error(err))
		return fmt.Errorf("load accounts: %w", err)
	}

	var active *types.Account
	for i := range accounts {
		if !accounts[i].IsActive {
			continue
		}
		if active != nil {
			m.logger.Warn("Backend reported several active accounts",
				zap.String("using", active.UUID),
				zap.String("ignored", accounts[i].UUID),
			)
			continue
		}
		acc := accounts[i]
		active = &acc
	}

	m.mu.Lock()
	prev := m.activeUUID()
	m.accounts = accounts
	m.active = active
	sessionChanged := prev != m.activeUUID()
	listeners := append([]SessionListener(nil), m.listeners...)
	m.mu.Unlock()

	m.metrics.SetAccounts(len(accounts))

	if sessionChanged {
		m.logger.Info("Active account changed", zap.String("from", prev), zap.String("to", uuidOf(active)))
		for _, listener := range listeners {
			listener(copyAccount(active))
		}
	}
	m.changed()
	return nil
}

// SwitchAccount asks the backend to switch accounts, then reloads and
// closes the picker whatever the outcome.
func (m *Multiplexer) SwitchAccount(ctx context.Context, uuid string) error {
	switchErr := m.backend.SwitchAccount(ctx, uuid)
	if switchErr != nil {
		m.logger.Warn("Account switch failed", zap.String("uuid", uuid), zap.Error(switchErr))
	}

	reloadErr := m.LoadAccounts(ctx)
	m.ClosePicker()

	if switchErr != nil {
		return fmt.Errorf("switch account: %w", switchErr)
	}
	return reloadErr
}

// AddAccount runs the backend sign-in flow. Only one may run at a time.
func (m *Multiplexer) AddAccount(ctx context.Context) error {
	m.mu.Lock()
	if m.signingIn {
		m.mu.Unlock()
		return ErrSignInInFlight
	}
	m.signingIn = true
	m.mu.Unlock()
	m.changed()

	// the latch covers the reload that follows sign-in
	defer func() {
		m.mu.Lock()
		m.signingIn = false
		m.mu.Unlock()
		m.changed()
	}()

	addErr := m.backend.AddAccount(ctx)
	if addErr != nil {
		m.logger.Warn("Sign-in failed", zap.Error(addErr))
	}

	reloadErr := m.LoadAccounts(ctx)
	if addErr != nil {
		return fmt.Errorf("add account: %w", addErr)
	}
	return reloadErr
}

// RemoveAccount signs an account out. Removing the active account first
// sets presence offline; that call may fail without blocking removal.
func (m *Multiplexer) RemoveAccount(ctx context.Context, uuid string) error {
	if active, ok := m.Active(); ok && active.UUID == uuid {
		if err := m.backend.UpdateUserStatus(ctx, types.PresenceOffline, nil); err != nil {
			m.logger.Warn("Failed to set presence offline before removal", zap.String("uuid", uuid), zap.Error(err))
		}
	}

	removeErr := m.backend.RemoveAccount(ctx, uuid)
	if removeErr != nil {
		m.logger.Warn("Account removal failed", zap.String("uuid", uuid), zap.Error(removeErr))
	}

	reloadErr := m.LoadAccounts(ctx)
	if removeErr != nil {
		return fmt.Errorf("remove account: %w", removeErr)
	}
	return reloadErr
}

// Accounts returns a copy of the account list
func (m *Multiplexer) Accounts() []types.Account {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Account, len(m.accounts))
	copy(out, m.accounts)
	return out
}

// Active returns the active account
func (m *Multiplexer) Active() (types.Account, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.active == nil {
		return types.Account{}, false
	}
	return *m.active, true
}

// IsAuthenticated reports whether an account is active
func (m *Multiplexer) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active != nil
}

// SigningIn reports whether a sign-in flow is running
func (m *Multiplexer) SigningIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.signingIn
}

// OpenPicker opens the account picker
func (m *Multiplexer) OpenPicker() { m.setPicker(true) }

// ClosePicker closes the account picker
func (m *Multiplexer) ClosePicker() { m.setPicker(false) }

// PickerOpen reports whether the account picker is open
func (m *Multiplexer) PickerOpen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pickerOpen
}

func (m *Multiplexer) setPicker(open bool) {
	m.mu.Lock()
	changed := m.pickerOpen != open
	m.pickerOpen = open
	m.mu.Unlock()

	if changed {
		m.changed()
	}
}

// activeUUID must hold mu
func (m *Multiplexer) activeUUID() string {
	return uuidOf(m.active)
}

func (m *Multiplexer) changed() {
	m.mu.RLock()
	fn := m.onChange
	m.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func uuidOf(acc *types.Account) string {
	if acc == nil {
		return ""
	}
	return acc.UUID
}

func copyAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return nil
	}
	c := *acc
	return &c
}
