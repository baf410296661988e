// Package telemetry exposes Prometheus metrics for the decision engine. A
// private registry keeps the scrape surface limited to what this process
// deliberately exports.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every exported series.
type Metrics struct {
	registry *prometheus.Registry

	DecisionsTotal      *prometheus.CounterVec
	TradesLearnedTotal  *prometheus.CounterVec
	ClampsTotal         prometheus.Counter
	RegimeSwitchesTotal prometheus.Counter
	BreakerTripped      prometheus.Gauge
	LearnDuration       prometheus.Histogram
}

// New builds the metric set on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.DecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quantmind",
		Name:      "decisions_total",
		Help:      "Decisions made, by regime and action class.",
	}, []string{"regime", "action"})

	m.TradesLearnedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quantmind",
		Name:      "trades_learned_total",
		Help:      "Completed trades fed back into the learning stack, by outcome.",
	}, []string{"outcome"})

	m.ClampsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quantmind",
		Name:      "action_clamps_total",
		Help:      "Action parameters clamped to a hard bound.",
	})

	m.RegimeSwitchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quantmind",
		Name:      "regime_switches_total",
		Help:      "Committed market regime transitions.",
	})

	m.BreakerTripped = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quantmind",
		Name:      "breaker_tripped",
		Help:      "1 while the learning circuit breaker is tripped.",
	})

	m.LearnDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "quantmind",
		Name:      "learn_duration_seconds",
		Help:      "Wall time of one full learning update.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	m.registry.MustRegister(
		m.DecisionsTotal,
		m.TradesLearnedTotal,
		m.ClampsTotal,
		m.RegimeSwitchesTotal,
		m.BreakerTripped,
		m.LearnDuration,
	)
	return m
}

// Handler returns the scrape endpoint for this metric set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
