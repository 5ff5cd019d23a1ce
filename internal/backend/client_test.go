package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/launcher/internal/infrastructure/config"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/launcher/internal/shared/types"
)

type recorded struct {
	command   string
	args      map[string]any
	requestID string
	traceID   string
}

// fakeBackend answers /invoke/{command} with canned envelopes
type fakeBackend struct {
	mu        sync.Mutex
	calls     []recorded
	responses map[string]string
	status    int
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	command := strings.TrimPrefix(r.URL.Path, "/invoke/")
	body, _ := io.ReadAll(r.Body)
	var args map[string]any
	_ = json.Unmarshal(body, &args)

	f.mu.Lock()
	f.calls = append(f.calls, recorded{command: command, args: args, requestID: r.Header.Get(RequestIDHeader), traceID: r.Header.Get(tracing.TraceHeader)})
	resp, ok := f.responses[command]
	status := f.status
	f.mu.Unlock()

	if !ok {
		resp = `{"ok":true}`
	}
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(resp))
}

func (f *fakeBackend) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newTestClient(t *testing.T, fb *fakeBackend) *Client {
	t.Helper()
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	return NewClient(config.BackendConfig{
		URL:     srv.URL,
		Timeout: 5 * time.Second,
	}, zap.NewNop())
}

func TestGetInstancesDecodesData(t *testing.T) {
	fb := &fakeBackend{responses: map[string]string{
		CmdGetInstances: `{"ok":true,"data":[{"name":"Modpack","version":"1.20.1","loader":"fabric","running":true},{"name":"Vanilla 1.20","version":"1.20","running":false}]}`,
	}}
	client := newTestClient(t, fb)

	instances, err := client.GetInstances(context.Background())
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, "Modpack", instances[0].Name)
	assert.Equal(t, "fabric", instances[0].Loader)
	assert.True(t, instances[0].Running)
	assert.False(t, instances[1].Running)

	call := fb.last()
	assert.Equal(t, CmdGetInstances, call.command)
	assert.NotEmpty(t, call.requestID)
}

func TestCommandArguments(t *testing.T) {
	fb := &fakeBackend{}
	client := newTestClient(t, fb)
	ctx := context.Background()
	instance := "Modpack"

	tests := []struct {
		name    string
		call    func() error
		command string
		args    map[string]any
	}{
		{"launch", func() error { return client.LaunchInstance(ctx, "Modpack") }, CmdLaunchInstance, map[string]any{"name": "Modpack"}},
		{"kill", func() error { return client.KillInstance(ctx, "Modpack") }, CmdKillInstance, map[string]any{"name": "Modpack"}},
		{"duplicate", func() error { return client.DuplicateInstance(ctx, "Modpack", "Modpack (Copy)") }, CmdDuplicateInstance, map[string]any{"source": "Modpack", "new_name": "Modpack (Copy)"}},
		{"create", func() error {
			return client.CreateInstance(ctx, types.CreateInstanceRequest{Name: "Vanilla 1.20", Version: "1.20"})
		}, CmdCreateInstance, map[string]any{"name": "Vanilla 1.20", "version": "1.20"}},
		{"switch", func() error { return client.SwitchAccount(ctx, "u-1") }, CmdSwitchAccount, map[string]any{"uuid": "u-1"}},
		{"remove account", func() error { return client.RemoveAccount(ctx, "u-1") }, CmdRemoveAccount, map[string]any{"uuid": "u-1"}},
		{"status offline", func() error { return client.UpdateUserStatus(ctx, types.PresenceOffline, nil) }, CmdUpdateUserStatus, map[string]any{"status": "offline", "current_instance": nil}},
		{"status ingame", func() error { return client.UpdateUserStatus(ctx, types.PresenceInGame, &instance) }, CmdUpdateUserStatus, map[string]any{"status": "ingame", "current_instance": "Modpack"}},
		{"send request", func() error { return client.SendFriendRequest(ctx, "Steve") }, CmdSendFriendRequest, map[string]any{"username": "Steve"}},
		{"accept", func() error { return client.AcceptFriendRequest(ctx, "r-1") }, CmdAcceptFriendRequest, map[string]any{"request_id": "r-1"}},
		{"reject", func() error { return client.RejectFriendRequest(ctx, "r-1") }, CmdRejectFriendRequest, map[string]any{"request_id": "r-1"}},
		{"remove friend", func() error { return client.RemoveFriend(ctx, "f-1") }, CmdRemoveFriend, map[string]any{"friend_uuid": "f-1"}},
		{"register", func() error { return client.RegisterUserInFriendsSystem(ctx) }, CmdRegisterFriends, map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.call())
			call := fb.last()
			assert.Equal(t, tt.command, call.command)
			assert.Equal(t, tt.args, call.args)
		})
	}
}

func TestCommandRejection(t *testing.T) {
	fb := &fakeBackend{responses: map[string]string{
		CmdSendFriendRequest: `{"ok":false,"error":"User not found"}`,
	}}
	client := newTestClient(t, fb)

	err := client.SendFriendRequest(context.Background(), "Nobody")
	require.Error(t, err)

	var be *Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, CmdSendFriendRequest, be.Command)
	assert.Equal(t, "User not found", be.Message)
	assert.Equal(t, "User not found", Message(err))
	assert.False(t, errors.Is(err, ErrTransport))
}

func TestRejectionWithErrorStatus(t *testing.T) {
	fb := &fakeBackend{
		status:    http.StatusUnprocessableEntity,
		responses: map[string]string{CmdLaunchInstance: `{"ok":false,"error":"Java not found"}`},
	}
	client := newTestClient(t, fb)

	err := client.LaunchInstance(context.Background(), "Modpack")
	assert.True(t, IsCommandError(err))
	assert.Equal(t, "Java not found", Message(err))
}

func TestNonEnvelopeErrorIsTransport(t *testing.T) {
	fb := &fakeBackend{
		status:    http.StatusBadGateway,
		responses: map[string]string{CmdGetFriends: `<html>bad gateway</html>`},
	}
	client := newTestClient(t, fb)

	_, err := client.GetFriends(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
	assert.False(t, IsCommandError(err))
}

func TestRejectionsDoNotTripBreaker(t *testing.T) {
	fb := &fakeBackend{responses: map[string]string{
		CmdSendFriendRequest: `{"ok":false,"error":"already friends"}`,
	}}
	client := newTestClient(t, fb)

	for i := 0; i < 10; i++ {
		assert.True(t, IsCommandError(client.SendFriendRequest(context.Background(), "Alex")))
	}
	assert.Equal(t, resilience.StateClosed, client.breaker.State())
}

func TestTransportFailuresTripBreaker(t *testing.T) {
	client := NewClient(config.BackendConfig{URL: "http://127.0.0.1:1", Timeout: time.Second}, zap.NewNop())

	for i := 0; i < 6; i++ {
		_, err := client.GetAccounts(context.Background())
		assert.ErrorIs(t, err, ErrTransport)
	}
	_, err := client.GetAccounts(context.Background())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestMetricsRecorded(t *testing.T) {
	fb := &fakeBackend{}
	client := newTestClient(t, fb)
	metrics := monitoring.NewMetrics()
	client.WithMetrics(metrics)

	require.NoError(t, client.AddAccount(context.Background()))

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if strings.HasSuffix(mf.GetName(), "backend_calls_total") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestMessageFallsBackToErrorText(t *testing.T) {
	assert.Equal(t, "boom", Message(errors.New("boom")))
	assert.Equal(t, "get_friends: nope", (&Error{Command: CmdGetFriends, Message: "nope"}).Error())
}

func TestTraceHeadersForwarded(t *testing.T) {
	fb := &fakeBackend{}
	tracer := tracing.New("launcher", zap.NewNop())
	t.Cleanup(tracer.Close)
	client := newTestClient(t, fb).WithTracer(tracer)

	_, ctx := tracer.StartSpan(context.Background(), "POST /instances/:name/launch")
	require.NoError(t, client.LaunchInstance(ctx, "Modpack"))
	assert.Equal(t, string(tracing.GetTraceID(ctx)), fb.last().traceID)

	require.NoError(t, client.LaunchInstance(context.Background(), "Modpack"))
	assert.NotEmpty(t, fb.last().traceID)
}
