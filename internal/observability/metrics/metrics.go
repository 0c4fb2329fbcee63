package metrics

import "github.com/prometheus/client_golang/prometheus"

// TurnMetrics exposes counters/histograms for AI chat turns and uploads.
type TurnMetrics struct {
	turnsTotal   *prometheus.CounterVec
	turnLatency  *prometheus.HistogramVec
	uploadsTotal *prometheus.CounterVec
}

func NewTurnMetrics(reg prometheus.Registerer) *TurnMetrics {
	m := &TurnMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medassist",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total orchestrated chat turns",
		}, []string{"modality", "status"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medassist",
			Subsystem: "chat",
			Name:      "turn_latency_seconds",
			Help:      "Latency of one orchestrated chat turn including inference",
			Buckets:   prometheus.DefBuckets,
		}, []string{"modality"}),
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medassist",
			Subsystem: "uploads",
			Name:      "processed_total",
			Help:      "Total uploads processed, by category and outcome",
		}, []string{"category", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.uploadsTotal)
	return m
}

func (m *TurnMetrics) ObserveTurn(modality string, success bool, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if !success {
		status = "fallback"
	}
	m.turnsTotal.WithLabelValues(modality, status).Inc()
	m.turnLatency.WithLabelValues(modality).Observe(seconds)
}

func (m *TurnMetrics) ObserveUpload(category string, success bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !success {
		status = "failed"
	}
	m.uploadsTotal.WithLabelValues(category, status).Inc()
}
