package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// fileConfig is the on-disk shape. Durations are milliseconds so YAML and
// TOML decode them identically; zero values leave defaults untouched.
type fileConfig struct {
	Server struct {
		Port string `yaml:"port" toml:"port"`
		Host string `yaml:"host" toml:"host"`
	} `yaml:"server" toml:"server"`
	Backend struct {
		URL       string `yaml:"url" toml:"url"`
		EventsURL string `yaml:"events_url" toml:"events_url"`
		TimeoutMS int64  `yaml:"timeout_ms" toml:"timeout_ms"`
		Retries   *int   `yaml:"retries" toml:"retries"`
		RPS       int    `yaml:"rps" toml:"rps"`
	} `yaml:"backend" toml:"backend"`
	Logging struct {
		Level       string `yaml:"level" toml:"level"`
		Development *bool  `yaml:"development" toml:"development"`
	} `yaml:"logging" toml:"logging"`
	Tasks struct {
		GraceWindowMS     int64   `yaml:"grace_window_ms" toml:"grace_window_ms"`
		TickIntervalMS    int64   `yaml:"tick_interval_ms" toml:"tick_interval_ms"`
		ForceCompleteMS   int64   `yaml:"force_complete_ms" toml:"force_complete_ms"`
		RealSettleMS      int64   `yaml:"real_settle_ms" toml:"real_settle_ms"`
		SyntheticSettleMS int64   `yaml:"synthetic_settle_ms" toml:"synthetic_settle_ms"`
		MaxIncrement      float64 `yaml:"max_increment" toml:"max_increment"`
		SyntheticCeiling  float64 `yaml:"synthetic_ceiling" toml:"synthetic_ceiling"`
	} `yaml:"tasks" toml:"tasks"`
	Launch struct {
		Policy          string `yaml:"policy" toml:"policy"`
		CosmeticDelayMS int64  `yaml:"cosmetic_delay_ms" toml:"cosmetic_delay_ms"`
	} `yaml:"launch" toml:"launch"`
	Presence struct {
		PollIntervalMS int64 `yaml:"poll_interval_ms" toml:"poll_interval_ms"`
		ErrorClearMS   int64 `yaml:"error_clear_ms" toml:"error_clear_ms"`
		SuccessCloseMS int64 `yaml:"success_close_ms" toml:"success_close_ms"`
	} `yaml:"presence" toml:"presence"`
}

// LoadFile loads defaults and overlays a YAML or TOML file chosen by extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	case ".toml":
		err = toml.Unmarshal(data, &fc)
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg := Default()
	fc.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (fc *fileConfig) apply(cfg *Config) {
	setString(&cfg.Server.Port, fc.Server.Port)
	setString(&cfg.Server.Host, fc.Server.Host)

	setString(&cfg.Backend.URL, fc.Backend.URL)
	setString(&cfg.Backend.EventsURL, fc.Backend.EventsURL)
	setMillis(&cfg.Backend.Timeout, fc.Backend.TimeoutMS)
	if fc.Backend.Retries != nil {
		cfg.Backend.Retries = *fc.Backend.Retries
	}
	if fc.Backend.RPS > 0 {
		cfg.Backend.RPS = fc.Backend.RPS
	}

	setString(&cfg.Logging.Level, fc.Logging.Level)
	if fc.Logging.Development != nil {
		cfg.Logging.Development = *fc.Logging.Development
	}

	setMillis(&cfg.Tasks.GraceWindow, fc.Tasks.GraceWindowMS)
	setMillis(&cfg.Tasks.TickInterval, fc.Tasks.TickIntervalMS)
	setMillis(&cfg.Tasks.ForceComplete, fc.Tasks.ForceCompleteMS)
	setMillis(&cfg.Tasks.RealSettle, fc.Tasks.RealSettleMS)
	setMillis(&cfg.Tasks.SyntheticSettle, fc.Tasks.SyntheticSettleMS)
	if fc.Tasks.MaxIncrement > 0 {
		cfg.Tasks.MaxIncrement = fc.Tasks.MaxIncrement
	}
	if fc.Tasks.SyntheticCeiling > 0 {
		cfg.Tasks.SyntheticCeiling = fc.Tasks.SyntheticCeiling
	}

	setString(&cfg.Launch.Policy, fc.Launch.Policy)
	setMillis(&cfg.Launch.CosmeticDelay, fc.Launch.CosmeticDelayMS)

	setMillis(&cfg.Presence.PollInterval, fc.Presence.PollIntervalMS)
	setMillis(&cfg.Presence.ErrorClearAfter, fc.Presence.ErrorClearMS)
	setMillis(&cfg.Presence.SuccessClose, fc.Presence.SuccessCloseMS)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setMillis(dst *time.Duration, ms int64) {
	if ms > 0 {
		*dst = time.Duration(ms) * time.Millisecond
	}
}
