package launch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/launcher/internal/backend"
	"github.com/GriffinCanCode/launcher/internal/event"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/launcher/internal/shared/types"
	"github.com/GriffinCanCode/launcher/internal/testutil"
)

type fakeSession struct{ authenticated atomic.Bool }

func (s *fakeSession) IsAuthenticated() bool { return s.authenticated.Load() }

func signedIn() *fakeSession {
	s := &fakeSession{}
	s.authenticated.Store(true)
	return s
}

func newTestController(t *testing.T, policy Policy, session Session) (*Controller, *testutil.MockBackend, *clockwork.FakeClock) {
	t.Helper()
	mb := testutil.NewMockBackend(t)
	clock := clockwork.NewFakeClock()
	c := NewController(mb, session, clock, Options{Policy: policy, CosmeticDelay: 2 * time.Second}, zap.NewNop()).
		WithMetrics(monitoring.NewMetrics())
	t.Cleanup(c.Close)
	return c, mb, clock
}

func instances(running ...string) []types.Instance {
	set := map[string]bool{}
	for _, name := range running {
		set[name] = true
	}
	return []types.Instance{
		{Name: "A", Version: "1.20.1", Running: set["A"]},
		{Name: "B", Version: "1.19.4", Running: set["B"]},
	}
}

func TestLaunchRequiresActiveAccount(t *testing.T) {
	c, mb, _ := newTestController(t, PolicySingleFlight, &fakeSession{})

	err := c.RequestLaunch(context.Background(), "A")
	assert.ErrorIs(t, err, ErrNoActiveAccount)
	mb.AssertNotCalled(t, "LaunchInstance", mock.Anything, mock.Anything)
	assert.Equal(t, types.PhaseIdle, c.Phase("A"))
}

func TestLaunchSuccessHoldsMarkerForCosmeticDelay(t *testing.T) {
	c, mb, clock := newTestController(t, PolicySingleFlight, signedIn())
	mb.On("LaunchInstance", mock.Anything, "A").Return(nil).Once()
	mb.On("GetInstances", mock.Anything).Return(instances("A"), nil).Once()

	require.NoError(t, c.RequestLaunch(context.Background(), "A"))

	assert.Equal(t, types.PhaseRunning, c.Phase("A"))
	assert.Equal(t, []string{"A"}, c.Running())
	assert.Equal(t, "A", c.LaunchingName())
	assert.Len(t, c.Instances(), 2)

	testutil.BlockUntil(t, clock, 1)
	clock.Advance(1999 * time.Millisecond)
	assert.Equal(t, "A", c.LaunchingName())

	clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return c.LaunchingName() == "" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, types.PhaseRunning, c.Phase("A"))
}

func TestSingleFlightRefusesSecondLaunch(t *testing.T) {
	c, mb, clock := newTestController(t, PolicySingleFlight, signedIn())

	release := make(chan struct{})
	mb.On("LaunchInstance", mock.Anything, "A").Run(func(mock.Arguments) { <-release }).Return(nil).Once()
	mb.On("GetInstances", mock.Anything).Return(instances("A"), nil)

	done := make(chan error, 1)
	go func() { done <- c.RequestLaunch(context.Background(), "A") }()
	require.Eventually(t, func() bool { return c.Phase("A") == types.PhaseLaunching }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, c.RequestLaunch(context.Background(), "B"), ErrLaunchInFlight)
	assert.ErrorIs(t, c.RequestLaunch(context.Background(), "A"), ErrAlreadyLaunching)

	close(release)
	require.NoError(t, <-done)

	// marker still held during the cosmetic delay
	assert.ErrorIs(t, c.RequestLaunch(context.Background(), "B"), ErrLaunchInFlight)
	mb.AssertNotCalled(t, "LaunchInstance", mock.Anything, "B")

	testutil.BlockUntil(t, clock, 1)
	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return c.LaunchingName() == "" }, time.Second, 5*time.Millisecond)

	mb.On("LaunchInstance", mock.Anything, "B").Return(nil).Once()
	require.NoError(t, c.RequestLaunch(context.Background(), "B"))
	assert.Equal(t, "B", c.LaunchingName())
}

func TestPerInstancePolicyAllowsOtherInstances(t *testing.T) {
	c, mb, _ := newTestController(t, PolicyPerInstance, signedIn())

	release := make(chan struct{})
	mb.On("LaunchInstance", mock.Anything, "A").Run(func(mock.Arguments) { <-release }).Return(nil).Once()
	mb.On("LaunchInstance", mock.Anything, "B").Return(nil).Once()
	mb.On("GetInstances", mock.Anything).Return(instances("A", "B"), nil)

	done := make(chan error, 1)
	go func() { done <- c.RequestLaunch(context.Background(), "A") }()
	require.Eventually(t, func() bool { return c.Phase("A") == types.PhaseLaunching }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, c.RequestLaunch(context.Background(), "A"), ErrAlreadyLaunching)
	require.NoError(t, c.RequestLaunch(context.Background(), "B"))

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"A", "B"}, c.Running())
	assert.Equal(t, []string{"A", "B"}, c.LaunchingNames())
	assert.Equal(t, PolicyPerInstance, c.Policy())
}

func TestLaunchFailureClearsMarkerImmediately(t *testing.T) {
	c, mb, _ := newTestController(t, PolicySingleFlight, signedIn())
	mb.On("LaunchInstance", mock.Anything, "A").Return(&backend.Error{Command: backend.CmdLaunchInstance, Message: "Java not found"}).Once()

	err := c.RequestLaunch(context.Background(), "A")
	require.Error(t, err)
	assert.True(t, backend.IsCommandError(err))
	assert.Equal(t, "Java not found", backend.Message(err))

	assert.Equal(t, "", c.LaunchingName())
	assert.Equal(t, types.PhaseIdle, c.Phase("A"))
	mb.AssertNotCalled(t, "GetInstances", mock.Anything)
}

func TestLaunchOfRunningInstanceRefused(t *testing.T) {
	c, mb, _ := newTestController(t, PolicySingleFlight, signedIn())
	mb.On("GetInstances", mock.Anything).Return(instances("A"), nil).Once()

	require.NoError(t, c.RefreshInstances(context.Background()))
	assert.ErrorIs(t, c.RequestLaunch(context.Background(), "A"), ErrAlreadyRunning)
	mb.AssertNotCalled(t, "LaunchInstance", mock.Anything, mock.Anything)
}

func TestRefreshFailureAfterLaunchIsNotFatal(t *testing.T) {
	c, mb, _ := newTestController(t, PolicySingleFlight, signedIn())
	mb.On("LaunchInstance", mock.Anything, "A").Return(nil).Once()
	mb.On("GetInstances", mock.Anything).Return(nil, errors.New("timeout")).Once()

	require.NoError(t, c.RequestLaunch(context.Background(), "A"))
	assert.Equal(t, types.PhaseRunning, c.Phase("A"))
}

func TestKillRequiresRunning(t *testing.T) {
	c, mb, _ := newTestController(t, PolicySingleFlight, signedIn())

	assert.ErrorIs(t, c.RequestKill(context.Background(), "A"), ErrNotRunning)
	mb.AssertNotCalled(t, "KillInstance", mock.Anything, mock.Anything)
}

func TestKillDoesNotClearRunning(t *testing.T) {
	c, mb, _ := newTestController(t, PolicySingleFlight, signedIn())
	mb.On("GetInstances", mock.Anything).Return(instances("A"), nil).Once()
	mb.On("KillInstance", mock.Anything, "A").Return(nil).Once()

	require.NoError(t, c.RefreshInstances(context.Background()))
	require.NoError(t, c.RequestKill(context.Background(), "A"))
	assert.Equal(t, types.PhaseRunning, c.Phase("A"))
}

func TestKillErrorPropagates(t *testing.T) {
	c, mb, _ := newTestController(t, PolicySingleFlight, signedIn())
	mb.On("GetInstances", mock.Anything).Return(instances("A"), nil).Once()
	mb.On("KillInstance", mock.Anything, "A").Return(errors.New("no such process")).Once()

	require.NoError(t, c.RefreshInstances(context.Background()))
	assert.ErrorContains(t, c.RequestKill(context.Background(), "A"), "no such process")
}

func TestStoppedEventClearsRunning(t *testing.T) {
	c, mb, _ := newTestController(t, PolicySingleFlight, signedIn())
	mb.On("GetInstances", mock.Anything).Return(instances("A", "B"), nil).Once()
	mb.On("GetInstances", mock.Anything).Return(instances("B"), nil).Once()

	bus := event.NewBus(zap.NewNop())
	unsubscribe := c.Watch(context.Background(), bus)
	defer unsubscribe()

	require.NoError(t, c.RefreshInstances(context.Background()))
	assert.Equal(t, []string{"A", "B"}, c.Running())

	bus.Publish(event.InstanceStoppedEvent{Name: "A"})
	assert.Equal(t, []string{"B"}, c.Running())
	assert.Equal(t, []types.InstanceRunState{
		{Name: "A", Phase: types.PhaseIdle},
		{Name: "B", Phase: types.PhaseRunning},
	}, c.States())
}

func TestOnChangeNotified(t *testing.T) {
	c, mb, _ := newTestController(t, PolicySingleFlight, signedIn())
	mb.On("GetInstances", mock.Anything).Return(instances(), nil).Once()

	var changes atomic.Int32
	c.OnChange(func() { changes.Add(1) })

	require.NoError(t, c.RefreshInstances(context.Background()))
	assert.Equal(t, int32(1), changes.Load())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicySingleFlight, p)

	p, err = ParsePolicy("per-instance")
	require.NoError(t, err)
	assert.Equal(t, PolicyPerInstance, p)

	_, err = ParsePolicy("yolo")
	assert.Error(t, err)
}
