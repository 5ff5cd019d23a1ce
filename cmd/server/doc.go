// Package main runs the launcher orchestration core.
//
// The binary sits between the backend command interface and the view. It
// tracks creation and duplication progress, admits launches, multiplexes
// signed-in accounts and keeps the friends list in sync, then serves the
// resulting state over HTTP and WebSocket.
//
// Configuration:
//   - Environment variables (LAUNCHER_PORT, BACKEND_URL, LAUNCH_POLICY, ...)
//   - Optional YAML or TOML file via -config
//   - CLI flags override both
//
// Usage:
//
//	# Production mode
//	./server -config launcher.yaml
//
//	# Development mode (console logs, debug level)
//	./server -dev -port 1430
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
