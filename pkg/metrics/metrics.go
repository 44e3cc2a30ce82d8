// Package metrics provides Prometheus instrumentation for the console's
// state layer and API client.
//
// # Basic Usage
//
//	// Count a filtered view notification
//	metrics.ViewEvents.WithLabelValues("running", "add").Inc()
//
//	// Time an API request
//	timer := metrics.NewTimer()
//	resp, err := client.Do(req)
//	metrics.APIRequestDuration.WithLabelValues("GET", "machines").Observe(timer.Stop().Seconds())
//
// All collectors are registered on the default registry at init, so
// Handler exposes them without further wiring.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ViewEvents counts notifications emitted by filtered views.
	// Labels: view (view name), kind (add/remove/reset/sort/change/filter-complete)
	ViewEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_view_events_total",
			Help: "Notifications emitted by filtered views",
		},
		[]string{"view", "kind"},
	)

	// ViewSize tracks the current number of records in each filtered view.
	ViewSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "console_view_records",
			Help: "Records currently visible in a filtered view",
		},
		[]string{"view"},
	)

	// PredicateEvaluations counts full predicate re-evaluations (creation,
	// predicate replacement, source reset).
	PredicateEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_view_predicate_evaluations_total",
			Help: "Full predicate re-evaluations over a source collection",
		},
		[]string{"view", "reason"},
	)

	// BindingCallbacks counts key-path binding callback invocations.
	BindingCallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "console_binding_callbacks_total",
			Help: "Key-path binding callback invocations",
		},
	)

	// ActiveBindings tracks live key-path subscriptions.
	ActiveBindings = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "console_bindings_active",
			Help: "Live key-path bindings",
		},
	)

	// APIRequests counts console API calls.
	// Labels: method, endpoint, status (HTTP status code or "error")
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_api_requests_total",
			Help: "Console API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// APIRequestDuration tracks API latency in seconds.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_api_request_duration_seconds",
			Help:    "Console API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// SyncChanges counts change events applied from fetched documents.
	// Labels: collection, operation (INSERT/UPDATE/DELETE)
	SyncChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_sync_changes_total",
			Help: "Change events applied to collections from API documents",
		},
		[]string{"collection", "operation"},
	)

	// SessionChecks counts session cookie polls. Labels: result (valid/missing/changed)
	SessionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_session_checks_total",
			Help: "Session cookie polls",
		},
		[]string{"result"},
	)
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for a histogram observation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
