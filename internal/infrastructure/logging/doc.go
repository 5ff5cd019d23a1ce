// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Each orchestration component receives a named child logger so log lines
// carry a "component" field (task, launch, account, presence, backend).
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	launchLog := logger.Component("launch")
//	launchLog.Info("Launch accepted", zap.String("instance", name))
package logging
