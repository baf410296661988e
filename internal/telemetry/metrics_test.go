package telemetry

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountersAndGauge(t *testing.T) {
	m := New()

	m.DecisionsTotal.WithLabelValues("bull_momentum", "enter").Inc()
	m.DecisionsTotal.WithLabelValues("bull_momentum", "enter").Inc()
	m.TradesLearnedTotal.WithLabelValues("win").Inc()
	m.ClampsTotal.Inc()
	m.RegimeSwitchesTotal.Inc()
	m.BreakerTripped.Set(1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DecisionsTotal.WithLabelValues("bull_momentum", "enter")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TradesLearnedTotal.WithLabelValues("win")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClampsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerTripped))
}

func TestMetrics_HandlerServesScrape(t *testing.T) {
	m := New()
	m.DecisionsTotal.WithLabelValues("crisis", "stand_aside").Inc()
	m.LearnDuration.Observe(0.002)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "quantmind_decisions_total")
	assert.Contains(t, body, "quantmind_learn_duration_seconds")
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()
	a.ClampsTotal.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.ClampsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ClampsTotal))
}
