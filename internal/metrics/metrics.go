// Package metrics provides Prometheus metrics for the assistant.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the assistant.
type Metrics struct {
	// Conversation turn metrics
	TurnsTotal   *prometheus.CounterVec
	TurnDuration *prometheus.HistogramVec

	// Model call metrics
	GenerateDuration prometheus.Histogram

	// Store metrics
	StoreQueryDuration *prometheus.HistogramVec

	// Transport metrics
	WSConnections prometheus.Gauge
}

// NewMetrics creates and registers all metrics against the given registerer.
// Pass prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.TurnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealbot_turns_total",
			Help: "Total number of conversation turns by channel and reply source",
		},
		[]string{"channel", "source"},
	)

	m.TurnDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dealbot_turn_duration_seconds",
			Help:    "End-to-end duration of conversation turns in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	m.GenerateDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dealbot_generate_duration_seconds",
			Help:    "Duration of generative model calls in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		},
	)

	m.StoreQueryDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dealbot_store_query_duration_seconds",
			Help:    "Duration of deal store queries in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)

	m.WSConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "dealbot_websocket_connections",
			Help: "Number of open websocket connections",
		},
	)

	return m
}

// RecordTurn records one finished conversation turn.
func (m *Metrics) RecordTurn(channel, source string, duration time.Duration) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(channel, source).Inc()
	m.TurnDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordGenerate records one generative model call.
func (m *Metrics) RecordGenerate(duration time.Duration) {
	if m == nil {
		return
	}
	m.GenerateDuration.Observe(duration.Seconds())
}

// RecordStoreQuery records one deal store query.
func (m *Metrics) RecordStoreQuery(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.StoreQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
