package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "1430", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "http://127.0.0.1:1421", cfg.Backend.URL)

	assert.Equal(t, 2*time.Second, cfg.Tasks.GraceWindow)
	assert.Equal(t, 300*time.Millisecond, cfg.Tasks.TickInterval)
	assert.Equal(t, 5*time.Second, cfg.Tasks.ForceComplete)
	assert.Equal(t, 1500*time.Millisecond, cfg.Tasks.RealSettle)
	assert.Equal(t, 2*time.Second, cfg.Tasks.SyntheticSettle)
	assert.Equal(t, 15.0, cfg.Tasks.MaxIncrement)
	assert.Equal(t, 90.0, cfg.Tasks.SyntheticCeiling)

	assert.Equal(t, PolicySingleFlight, cfg.Launch.Policy)
	assert.Equal(t, 2*time.Second, cfg.Launch.CosmeticDelay)

	assert.Equal(t, 5*time.Second, cfg.Presence.PollInterval)
	assert.Equal(t, 3*time.Second, cfg.Presence.ErrorClearAfter)
	assert.Equal(t, 2*time.Second, cfg.Presence.SuccessClose)

	require.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	t.Setenv("LAUNCHER_PORT", "9000")
	t.Setenv("BACKEND_URL", "http://backend:8080")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TASK_GRACE_WINDOW", "1s")
	t.Setenv("LAUNCH_POLICY", PolicyPerInstance)
	t.Setenv("PRESENCE_POLL_INTERVAL", "10s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "http://backend:8080", cfg.Backend.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, time.Second, cfg.Tasks.GraceWindow)
	assert.Equal(t, PolicyPerInstance, cfg.Launch.Policy)
	assert.Equal(t, 10*time.Second, cfg.Presence.PollInterval)

	// untouched values keep defaults
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 5*time.Second, cfg.Tasks.ForceComplete)
}

func TestLoadRejectsUnknownPolicy(t *testing.T) {
	t.Setenv("LAUNCH_POLICY", "yolo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown launch policy")

	cfg := LoadOrDefault()
	assert.Equal(t, PolicySingleFlight, cfg.Launch.Policy)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no backend", func(c *Config) { c.Backend.URL = "" }, "backend url"},
		{"zero tick", func(c *Config) { c.Tasks.TickInterval = 0 }, "tick interval"},
		{"force before grace", func(c *Config) { c.Tasks.ForceComplete = time.Second }, "force-complete"},
		{"ceiling at 100", func(c *Config) { c.Tasks.SyntheticCeiling = 100 }, "synthetic ceiling"},
		{"zero poll", func(c *Config) { c.Presence.PollInterval = 0 }, "poll interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launcher.yaml")
	content := `
backend:
  url: http://localhost:9999
  retries: 0
tasks:
  grace_window_ms: 1000
  synthetic_settle_ms: 2500
launch:
  policy: per-instance
presence:
  poll_interval_ms: 7000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999", cfg.Backend.URL)
	assert.Equal(t, 0, cfg.Backend.Retries)
	assert.Equal(t, time.Second, cfg.Tasks.GraceWindow)
	assert.Equal(t, 2500*time.Millisecond, cfg.Tasks.SyntheticSettle)
	assert.Equal(t, PolicyPerInstance, cfg.Launch.Policy)
	assert.Equal(t, 7*time.Second, cfg.Presence.PollInterval)
	assert.Equal(t, 300*time.Millisecond, cfg.Tasks.TickInterval)
}

func TestLoadFileTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launcher.toml")
	content := `
[server]
port = "4000"

[logging]
level = "warn"
development = true

[tasks]
tick_interval_ms = 500
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "4000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500*time.Millisecond, cfg.Tasks.TickInterval)
	assert.Equal(t, 2, cfg.Backend.Retries)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	ini := filepath.Join(dir, "launcher.ini")
	require.NoError(t, os.WriteFile(ini, []byte("x=1"), 0o644))
	_, err = LoadFile(ini)
	assert.ErrorContains(t, err, "unsupported")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("launch:\n  policy: sideways\n"), 0o644))
	_, err = LoadFile(bad)
	assert.ErrorContains(t, err, "unknown launch policy")
}
