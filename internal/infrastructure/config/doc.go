// Package config provides 12-factor configuration management for the launcher core.
//
// Configuration is loaded from environment variables with sensible defaults,
// or from a YAML/TOML file overlaid on the defaults.
//
// Configuration Sections:
//   - Server: view-facing HTTP server (port, host)
//   - Backend: command interface URL, event stream URL, timeout, retries
//   - Logging: log level and output format
//   - RateLimit: per-client rate limiting for the view API
//   - Tasks: progress tracker grace window, tick, force-complete and settle delays
//   - Launch: admission policy and cosmetic launching delay
//   - Presence: friends poll interval and status message lifetimes
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Serving view API on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - LAUNCHER_PORT, LAUNCHER_HOST
//   - BACKEND_URL, BACKEND_EVENTS_URL, BACKEND_TIMEOUT, BACKEND_RETRIES, BACKEND_RPS
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - TASK_GRACE_WINDOW, TASK_TICK_INTERVAL, TASK_FORCE_COMPLETE, ...
//   - LAUNCH_POLICY, LAUNCH_COSMETIC_DELAY
//   - PRESENCE_POLL_INTERVAL, PRESENCE_ERROR_CLEAR, PRESENCE_SUCCESS_CLOSE
package config
