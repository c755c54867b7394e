// Package metrics exposes Prometheus counters for the core flows and
// an HTTP handler to scrape them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every instrument on a private registry so tests can
// run several instances without registration conflicts.
type Metrics struct {
	registry *prometheus.Registry

	entriesRecorded *prometheus.CounterVec
	auraChecks      *prometheus.CounterVec
	oracleDraws     *prometheus.CounterVec
	remindersSent   *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates and registers all instruments.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.entriesRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumenos",
			Name:      "entries_recorded_total",
			Help:      "Entries recorded, by kind",
		},
		[]string{"kind"},
	)

	m.auraChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumenos",
			Name:      "aura_checks_total",
			Help:      "Aura checks evaluated, by preset and outcome",
		},
		[]string{"preset", "outcome"},
	)

	m.oracleDraws = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumenos",
			Name:      "oracle_draws_total",
			Help:      "Oracle draws collapsed, by method",
		},
		[]string{"method"},
	)

	m.remindersSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumenos",
			Name:      "reminders_sent_total",
			Help:      "Reminder notifications sent, by kind",
		},
		[]string{"kind"},
	)

	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumenos",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, by method, route, and status",
		},
		[]string{"method", "route", "status"},
	)

	m.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lumenos",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method", "route"},
	)

	m.registry.MustRegister(
		m.entriesRecorded,
		m.auraChecks,
		m.oracleDraws,
		m.remindersSent,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// RecordEntry counts one recorded entry.
func (m *Metrics) RecordEntry(kind string) {
	m.entriesRecorded.WithLabelValues(kind).Inc()
}

// RecordAuraCheck counts one evaluated check.
func (m *Metrics) RecordAuraCheck(preset string, passed bool) {
	outcome := "passed"
	if !passed {
		outcome = "failed"
	}
	m.auraChecks.WithLabelValues(preset, outcome).Inc()
}

// RecordOracleDraw counts one collapsed draw.
func (m *Metrics) RecordOracleDraw(method string) {
	m.oracleDraws.WithLabelValues(method).Inc()
}

// RecordReminder counts one sent reminder.
func (m *Metrics) RecordReminder(kind string) {
	m.remindersSent.WithLabelValues(kind).Inc()
}

// RecordHTTPRequest counts one served request and its latency.
func (m *Metrics) RecordHTTPRequest(method, route, status string, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler returns the scrape endpoint for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
