/*
Package monitoring provides Prometheus metrics for the launcher core.

# Overview

Metrics cover the view API, every backend command invocation, and the
orchestration components: launch outcomes, live and finished tasks, presence
polls, online friends and connected view clients.

Each Metrics value owns its registry so tests can create as many as they
need. A nil *Metrics records nothing, letting components run without
monitoring.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "get_friends")
	// ... invoke command ...
	timer.Stop("success")
*/
package monitoring
