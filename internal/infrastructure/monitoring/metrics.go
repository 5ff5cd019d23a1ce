package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the launcher core.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics (view API)
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Backend command interface
	BackendCalls    *prometheus.CounterVec
	BackendDuration *prometheus.HistogramVec

	// Orchestration
	LaunchRequests  *prometheus.CounterVec
	TasksActive     prometheus.Gauge
	TaskOutcomes    *prometheus.CounterVec
	PresencePolls   *prometheus.CounterVec
	FriendsOnline   prometheus.Gauge
	AccountsTotal   prometheus.Gauge
	EventsReceived  *prometheus.CounterVec
	ViewConnections prometheus.Gauge
}

// NewMetrics creates a metrics collector on its own registry
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}

// NewMetricsWithRegistry registers all collectors on reg
func NewMetricsWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launcher_http_requests_total",
				Help: "Total number of view API requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "launcher_http_request_duration_seconds",
				Help:    "View API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		BackendCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launcher_backend_calls_total",
				Help: "Backend command invocations by command and outcome",
			},
			[]string{"command", "status"},
		),
		BackendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "launcher_backend_call_duration_seconds",
				Help:    "Backend command latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"command"},
		),

		LaunchRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launcher_launch_requests_total",
				Help: "Launch requests by outcome (accepted, refused, failed)",
			},
			[]string{"outcome"},
		),
		TasksActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "launcher_tasks_active",
				Help: "Number of tracked long-running tasks",
			},
		),
		TaskOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launcher_task_outcomes_total",
				Help: "Finished tasks by kind, status and progress source",
			},
			[]string{"kind", "status", "source"},
		),
		PresencePolls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launcher_presence_polls_total",
				Help: "Friends polls by outcome (success, error, skipped)",
			},
			[]string{"status"},
		),
		FriendsOnline: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "launcher_friends_online",
				Help: "Friends currently online or in game",
			},
		),
		AccountsTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "launcher_accounts",
				Help: "Number of signed-in accounts",
			},
		),
		EventsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launcher_events_received_total",
				Help: "Backend events received by event kind",
			},
			[]string{"event"},
		),
		ViewConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "launcher_view_connections",
				Help: "Connected view websocket clients",
			},
		),
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus exposition handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records a view API request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordBackendCall records one backend command invocation
func (m *Metrics) RecordBackendCall(command, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.BackendCalls.WithLabelValues(command, status).Inc()
	m.BackendDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordLaunch records a launch request outcome
func (m *Metrics) RecordLaunch(outcome string) {
	if m == nil {
		return
	}
	m.LaunchRequests.WithLabelValues(outcome).Inc()
}

// SetTasksActive sets the number of live trackers
func (m *Metrics) SetTasksActive(count int) {
	if m == nil {
		return
	}
	m.TasksActive.Set(float64(count))
}

// RecordTaskOutcome records a task reaching a terminal state
func (m *Metrics) RecordTaskOutcome(kind, status, source string) {
	if m == nil {
		return
	}
	m.TaskOutcomes.WithLabelValues(kind, status, source).Inc()
}

// RecordPoll records a presence poll outcome
func (m *Metrics) RecordPoll(status string) {
	if m == nil {
		return
	}
	m.PresencePolls.WithLabelValues(status).Inc()
}

// SetFriendsOnline sets the online friends gauge
func (m *Metrics) SetFriendsOnline(count int) {
	if m == nil {
		return
	}
	m.FriendsOnline.Set(float64(count))
}

// SetAccounts sets the account gauge
func (m *Metrics) SetAccounts(count int) {
	if m == nil {
		return
	}
	m.AccountsTotal.Set(float64(count))
}

// RecordEvent records a backend event
func (m *Metrics) RecordEvent(kind string) {
	if m == nil {
		return
	}
	m.EventsReceived.WithLabelValues(kind).Inc()
}

// IncViewConnections increments connected view clients
func (m *Metrics) IncViewConnections() {
	if m == nil {
		return
	}
	m.ViewConnections.Inc()
}

// DecViewConnections decrements connected view clients
func (m *Metrics) DecViewConnections() {
	if m == nil {
		return
	}
	m.ViewConnections.Dec()
}
