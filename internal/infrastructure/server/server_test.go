package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/launcher/internal/infrastructure/config"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/logging"
	"github.com/GriffinCanCode/launcher/internal/shared/types"
	"github.com/GriffinCanCode/launcher/internal/testutil"
)

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *testutil.MockBackend) {
	t.Helper()
	mb := testutil.NewMockBackend(t)
	srv, err := NewServerWithDeps(cfg, Deps{
		Backend: mb,
		Clock:   clockwork.NewFakeClock(),
		Logger:  logging.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv, mb
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestNewServerRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Launch.Policy = "whenever"

	_, err := NewServerWithDeps(cfg, Deps{Logger: logging.NewNop()})
	assert.Error(t, err)
}

func TestRoutesMounted(t *testing.T) {
	srv, _ := newTestServer(t, config.Default())

	assert.Equal(t, http.StatusOK, get(t, srv.Handler(), "/health").Code)
	assert.Equal(t, http.StatusOK, get(t, srv.Handler(), "/state").Code)

	w := get(t, srv.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "launcher_http_requests_total")
}

func TestResponsesCarryTraceHeaders(t *testing.T) {
	srv, _ := newTestServer(t, config.Default())

	w := get(t, srv.Handler(), "/state")
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
}

func TestRunLoadsStateAndStops(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Port = freePort(t)
	cfg.Backend.EventsURL = "ws://127.0.0.1:1/events"

	srv, mb := newTestServer(t, cfg)
	mb.On("GetAccounts", mock.Anything).Return([]types.Account{}, nil).Once()
	mb.On("GetInstances", mock.Anything).Return([]types.Instance{{Name: "Modpack", Version: "1.20.1"}}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(srv.Orchestrator().Snapshot().Instances) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	_, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	return port
}
