// Package testutil provides testing utilities and helpers for launcher tests.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/launcher/internal/backend"
	"github.com/GriffinCanCode/launcher/internal/shared/types"
)

// MockBackend is a mock implementation of backend.Commands for testing.
type MockBackend struct {
	mock.Mock

	mu    sync.Mutex
	order []string
}

var _ backend.Commands = (*MockBackend)(nil)

// GetInstances mocks the GetInstances method.
func (m *MockBackend) GetInstances(ctx context.Context) ([]types.Instance, error) {
	m.track("GetInstances")
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Instance), args.Error(1)
}

// LaunchInstance mocks the LaunchInstance method.
func (m *MockBackend) LaunchInstance(ctx context.Context, name string) error {
	m.track("LaunchInstance")
	return m.Called(ctx, name).Error(0)
}

// KillInstance mocks the KillInstance method.
func (m *MockBackend) KillInstance(ctx context.Context, name string) error {
	m.track("KillInstance")
	return m.Called(ctx, name).Error(0)
}

// DuplicateInstance mocks the DuplicateInstance method.
func (m *MockBackend) DuplicateInstance(ctx context.Context, source, target string) error {
	m.track("DuplicateInstance")
	return m.Called(ctx, source, target).Error(0)
}

// CreateInstance mocks the CreateInstance method.
func (m *MockBackend) CreateInstance(ctx context.Context, req types.CreateInstanceRequest) error {
	m.track("CreateInstance")
	return m.Called(ctx, req).Error(0)
}

// GetAccounts mocks the GetAccounts method.
func (m *MockBackend) GetAccounts(ctx context.Context) ([]types.Account, error) {
	m.track("GetAccounts")
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Account), args.Error(1)
}

// SwitchAccount mocks the SwitchAccount method.
func (m *MockBackend) SwitchAccount(ctx context.Context, uuid string) error {
	m.track("SwitchAccount")
	return m.Called(ctx, uuid).Error(0)
}

// AddAccount mocks the AddAccount method.
func (m *MockBackend) AddAccount(ctx context.Context) error {
	m.track("AddAccount")
	return m.Called(ctx).Error(0)
}

// RemoveAccount mocks the RemoveAccount method.
func (m *MockBackend) RemoveAccount(ctx context.Context, uuid string) error {
	m.track("RemoveAccount")
	return m.Called(ctx, uuid).Error(0)
}

// RegisterUserInFriendsSystem mocks the RegisterUserInFriendsSystem method.
func (m *MockBackend) RegisterUserInFriendsSystem(ctx context.Context) error {
	m.track("RegisterUserInFriendsSystem")
	return m.Called(ctx).Error(0)
}

// UpdateUserStatus mocks the UpdateUserStatus method.
func (m *MockBackend) UpdateUserStatus(ctx context.Context, status types.PresenceStatus, instance *string) error {
	m.track("UpdateUserStatus")
	return m.Called(ctx, status, instance).Error(0)
}

// GetFriends mocks the GetFriends method.
func (m *MockBackend) GetFriends(ctx context.Context) ([]types.Friend, error) {
	m.track("GetFriends")
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Friend), args.Error(1)
}

// GetFriendRequests mocks the GetFriendRequests method.
func (m *MockBackend) GetFriendRequests(ctx context.Context) ([]types.FriendRequest, error) {
	m.track("GetFriendRequests")
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.FriendRequest), args.Error(1)
}

// SendFriendRequest mocks the SendFriendRequest method.
func (m *MockBackend) SendFriendRequest(ctx context.Context, username string) error {
	m.track("SendFriendRequest")
	return m.Called(ctx, username).Error(0)
}

// AcceptFriendRequest mocks the AcceptFriendRequest method.
func (m *MockBackend) AcceptFriendRequest(ctx context.Context, id string) error {
	m.track("AcceptFriendRequest")
	return m.Called(ctx, id).Error(0)
}

// RejectFriendRequest mocks the RejectFriendRequest method.
func (m *MockBackend) RejectFriendRequest(ctx context.Context, id string) error {
	m.track("RejectFriendRequest")
	return m.Called(ctx, id).Error(0)
}

// RemoveFriend mocks the RemoveFriend method.
func (m *MockBackend) RemoveFriend(ctx context.Context, uuid string) error {
	m.track("RemoveFriend")
	return m.Called(ctx, uuid).Error(0)
}

// NewMockBackend creates a new mock backend with no default behaviors.
func NewMockBackend(t *testing.T) *MockBackend {
	t.Helper()
	m := new(MockBackend)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockBackend) track(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = append(m.order, method)
}

// CallCount returns how many times method was called. Safe to use while
// calls are in flight.
func (m *MockBackend) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, name := range m.order {
		if name == method {
			count++
		}
	}
	return count
}

// MethodOrder returns the names of the called methods in call order.
func (m *MockBackend) MethodOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Account creates a test account.
func Account(uuid, username string, active bool) types.Account {
	return types.Account{
		UUID:     uuid,
		Username: username,
		IsActive: active,
		AddedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		LastUsed: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Friend creates a test friend.
func Friend(uuid, username string, status types.PresenceStatus) types.Friend {
	return types.Friend{
		UUID:     uuid,
		Username: username,
		Status:   status,
		LastSeen: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Request creates a pending test friend request.
func Request(id, fromUsername string) types.FriendRequest {
	return types.FriendRequest{
		ID:           id,
		FromUUID:     "uuid-" + fromUsername,
		FromUsername: fromUsername,
		ToUUID:       "uuid-me",
		Status:       types.RequestPending,
		CreatedAt:    time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

// BlockUntil waits until n timers or tickers are waiting on clock.
func BlockUntil(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n), "timed out waiting for %d clock waiters", n)
}
