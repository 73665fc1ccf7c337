// package metrics defines the Prometheus collectors for sync runs, token refreshes and provider calls
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector on a private registry so tests and multiple
// servers in one process never collide on the default registerer.
//
// All Record methods are safe on a nil *Metrics.
type Metrics struct {
	SyncRunsTotal           *prometheus.CounterVec
	SyncItemsTotal          *prometheus.CounterVec
	ConflictsTotal          *prometheus.CounterVec
	TokenOutcomesTotal      *prometheus.CounterVec
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec
	OAuthStatesTotal        *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		SyncRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tunelink_sync_runs_total",
				Help: "Sync runs finished, by type and terminal status",
			},
			[]string{"type", "status"},
		),
		SyncItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tunelink_sync_items_total",
				Help: "Items touched by finished sync runs",
			},
			[]string{"kind"},
		),
		ConflictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tunelink_conflicts_total",
				Help: "Conflicts recorded during sync runs",
			},
			[]string{"type"},
		),
		TokenOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tunelink_token_outcomes_total",
				Help: "Access token lookups by provider and outcome (fresh, refreshed, stale)",
			},
			[]string{"provider", "outcome"},
		),
		ProviderRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tunelink_provider_requests_total",
				Help: "Outbound provider HTTP requests by status code",
			},
			[]string{"provider", "code"},
		),
		ProviderRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tunelink_provider_request_duration_seconds",
				Help:    "Outbound provider HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		OAuthStatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tunelink_oauth_states_total",
				Help: "OAuth state tokens by result (issued, consumed, rejected)",
			},
			[]string{"result"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.SyncRunsTotal,
		m.SyncItemsTotal,
		m.ConflictsTotal,
		m.TokenOutcomesTotal,
		m.ProviderRequestsTotal,
		m.ProviderRequestDuration,
		m.OAuthStatesTotal,
	)

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSyncRun counts a finished run and its item counters.
func (m *Metrics) RecordSyncRun(run *models.SyncRun) {
	if m == nil || run == nil {
		return
	}
	m.SyncRunsTotal.WithLabelValues(string(run.Type), string(run.Status)).Inc()
	m.SyncItemsTotal.WithLabelValues("processed").Add(float64(run.Counts.Processed))
	m.SyncItemsTotal.WithLabelValues("added").Add(float64(run.Counts.Added))
	m.SyncItemsTotal.WithLabelValues("updated").Add(float64(run.Counts.Updated))
	m.SyncItemsTotal.WithLabelValues("removed").Add(float64(run.Counts.Removed))
}

// RecordConflict counts one recorded conflict.
func (m *Metrics) RecordConflict(t models.ConflictType) {
	if m == nil {
		return
	}
	m.ConflictsTotal.WithLabelValues(string(t)).Inc()
}

// RecordTokenOutcome counts one access token lookup.
func (m *Metrics) RecordTokenOutcome(p models.Provider, outcome string) {
	if m == nil {
		return
	}
	m.TokenOutcomesTotal.WithLabelValues(string(p), outcome).Inc()
}

// RecordProviderRequest counts one outbound request. A zero status means a transport error.
func (m *Metrics) RecordProviderRequest(provider string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.ProviderRequestsTotal.WithLabelValues(provider, code).Inc()
	m.ProviderRequestDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// RecordState counts an OAuth state issue or consume result.
func (m *Metrics) RecordState(result string) {
	if m == nil {
		return
	}
	m.OAuthStatesTotal.WithLabelValues(result).Inc()
}
