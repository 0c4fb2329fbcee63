package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveTurn(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTurnMetrics(reg)

	m.ObserveTurn("text", true, 0.2)
	m.ObserveTurn("text", true, 0.4)
	m.ObserveTurn("image", false, 1.1)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.turnsTotal.WithLabelValues("text", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.turnsTotal.WithLabelValues("image", "fallback")))
}

func TestObserveUpload(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTurnMetrics(reg)

	m.ObserveUpload("document", true)
	m.ObserveUpload("document", false)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.uploadsTotal.WithLabelValues("document", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.uploadsTotal.WithLabelValues("document", "failed")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *TurnMetrics
	m.ObserveTurn("text", true, 0.1)
	m.ObserveUpload("image", true)
}
