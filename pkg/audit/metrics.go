package audit

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes decision counters and latency histograms, grounded on
// pkg/telemetry/metrics/collector.go's per-concern sub-metric pattern but
// scoped to exactly what the Decision Ring observes.
type Metrics struct {
	decisions *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// NewMetrics registers the ring's metrics under the given namespace. If
// registry is nil, the default Prometheus registry is used.
func NewMetrics(namespace string, registry prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "aegis"
	}
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "decisions_total",
			Help:      "Total number of terminal dispatch decisions, by decision kind.",
		}, []string{"decision"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "decision_latency_ms",
			Help:      "Latency in milliseconds from dispatch to terminal decision.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}, []string{"decision"}),
	}

	registry.MustRegister(m.decisions, m.latency)
	return m
}

// ObserveDecision records one terminal decision's counter and latency.
func (m *Metrics) ObserveDecision(decision string, latencyMS int64) {
	m.decisions.WithLabelValues(decision).Inc()
	m.latency.WithLabelValues(decision).Observe(float64(latencyMS))
}
