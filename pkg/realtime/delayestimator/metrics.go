package delayestimator

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports estimation counters to Prometheus
type Metrics struct {
	Estimations     *prometheus.CounterVec
	DelayUpdates    prometheus.Counter
	EstimatedDelay  prometheus.Histogram
	SignalsPerCheck *prometheus.HistogramVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		Estimations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "delayengine",
			Name:      "estimations_total",
			Help:      "Delay estimations completed, by confidence level",
		}, []string{"confidence"}),
		DelayUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "delayengine",
			Name:      "delay_updates_total",
			Help:      "Estimations that were written back to the journey",
		}),
		EstimatedDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "delayengine",
			Name:      "estimated_delay_minutes",
			Help:      "Distribution of estimated delays",
			Buckets:   []float64{0, 1, 2, 5, 10, 15, 30, 60, 120},
		}),
		SignalsPerCheck: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "delayengine",
			Name:      "signals_per_estimation",
			Help:      "Number of signals used by an estimation, by kind",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}, []string{"kind"}),
	}

	registerer.MustRegister(metrics.Estimations, metrics.DelayUpdates, metrics.EstimatedDelay, metrics.SignalsPerCheck)

	return metrics
}

func (m *Metrics) ObserveEstimation(_ context.Context, result *EstimationResult) {
	m.Estimations.WithLabelValues(string(result.Confidence)).Inc()
	m.EstimatedDelay.Observe(float64(result.EstimatedDelayMinutes))
	m.SignalsPerCheck.WithLabelValues("gps").Observe(float64(result.SampleCount))
	m.SignalsPerCheck.WithLabelValues("community").Observe(float64(result.ReportCount))

	if result.DelayUpdated {
		m.DelayUpdates.Inc()
	}
}
