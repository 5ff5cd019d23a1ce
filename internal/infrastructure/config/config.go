package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Launch admission policies
const (
	PolicySingleFlight = "single-flight"
	PolicyPerInstance  = "per-instance"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Tasks     TaskConfig
	Launch    LaunchConfig
	Presence  PresenceConfig
}

// ServerConfig holds the view-facing HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"LAUNCHER_PORT" default:"1430"`
	Host string `envconfig:"LAUNCHER_HOST" default:"127.0.0.1"`
}

// BackendConfig holds backend command interface configuration.
type BackendConfig struct {
	URL       string        `envconfig:"BACKEND_URL" default:"http://127.0.0.1:1421"`
	EventsURL string        `envconfig:"BACKEND_EVENTS_URL" default:"ws://127.0.0.1:1421/events"`
	Timeout   time.Duration `envconfig:"BACKEND_TIMEOUT" default:"30s"`
	Retries   int           `envconfig:"BACKEND_RETRIES" default:"2"`
	RPS       int           `envconfig:"BACKEND_RPS" default:"50"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration for the view API.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// TaskConfig holds progress tracker timing.
type TaskConfig struct {
	GraceWindow      time.Duration `envconfig:"TASK_GRACE_WINDOW" default:"2s"`
	TickInterval     time.Duration `envconfig:"TASK_TICK_INTERVAL" default:"300ms"`
	ForceComplete    time.Duration `envconfig:"TASK_FORCE_COMPLETE" default:"5s"`
	RealSettle       time.Duration `envconfig:"TASK_REAL_SETTLE" default:"1500ms"`
	SyntheticSettle  time.Duration `envconfig:"TASK_SYNTHETIC_SETTLE" default:"2s"`
	MaxIncrement     float64       `envconfig:"TASK_MAX_INCREMENT" default:"15"`
	SyntheticCeiling float64       `envconfig:"TASK_SYNTHETIC_CEILING" default:"90"`
}

// LaunchConfig holds launch admission configuration.
type LaunchConfig struct {
	Policy        string        `envconfig:"LAUNCH_POLICY" default:"single-flight"`
	CosmeticDelay time.Duration `envconfig:"LAUNCH_COSMETIC_DELAY" default:"2s"`
}

// PresenceConfig holds friends polling configuration.
type PresenceConfig struct {
	PollInterval    time.Duration `envconfig:"PRESENCE_POLL_INTERVAL" default:"5s"`
	ErrorClearAfter time.Duration `envconfig:"PRESENCE_ERROR_CLEAR" default:"3s"`
	SuccessClose    time.Duration `envconfig:"PRESENCE_SUCCESS_CLOSE" default:"2s"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "1430",
			Host: "127.0.0.1",
		},
		Backend: BackendConfig{
			URL:       "http://127.0.0.1:1421",
			EventsURL: "ws://127.0.0.1:1421/events",
			Timeout:   30 * time.Second,
			Retries:   2,
			RPS:       50,
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Tasks: TaskConfig{
			GraceWindow:      2 * time.Second,
			TickInterval:     300 * time.Millisecond,
			ForceComplete:    5 * time.Second,
			RealSettle:       1500 * time.Millisecond,
			SyntheticSettle:  2 * time.Second,
			MaxIncrement:     15,
			SyntheticCeiling: 90,
		},
		Launch: LaunchConfig{
			Policy:        PolicySingleFlight,
			CosmeticDelay: 2 * time.Second,
		},
		Presence: PresenceConfig{
			PollInterval:    5 * time.Second,
			ErrorClearAfter: 3 * time.Second,
			SuccessClose:    2 * time.Second,
		},
	}
}

// Validate rejects configurations the orchestration core cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Backend.URL == "" {
		errs = append(errs, errors.New("backend url is required"))
	}
	if c.Tasks.TickInterval <= 0 {
		errs = append(errs, errors.New("task tick interval must be positive"))
	}
	if c.Tasks.ForceComplete <= c.Tasks.GraceWindow {
		errs = append(errs, errors.New("task force-complete must be after the grace window"))
	}
	if c.Tasks.SyntheticCeiling <= 0 || c.Tasks.SyntheticCeiling >= 100 {
		errs = append(errs, fmt.Errorf("synthetic ceiling %.0f outside (0, 100)", c.Tasks.SyntheticCeiling))
	}
	if c.Tasks.MaxIncrement <= 0 {
		errs = append(errs, errors.New("task max increment must be positive"))
	}
	if c.Launch.Policy != PolicySingleFlight && c.Launch.Policy != PolicyPerInstance {
		errs = append(errs, fmt.Errorf("unknown launch policy %q", c.Launch.Policy))
	}
	if c.Presence.PollInterval <= 0 {
		errs = append(errs, errors.New("presence poll interval must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
