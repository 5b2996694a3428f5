package worker

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/inference-sim/montecarlo/sim/trace"
)

const (
	metricMessages = "montecarlo_worker_messages_total"
	metricModels   = "montecarlo_worker_models_total"
	metricReady    = "montecarlo_worker_ready"
	metricEvalSecs = "montecarlo_worker_evaluation_seconds"
)

// Metrics exports worker activity to Prometheus.
type Metrics struct {
	messages *prometheus.CounterVec
	models   *prometheus.CounterVec
	ready    prometheus.Gauge
	evalSecs prometheus.Histogram
}

// NewMetrics creates the worker collectors and registers them on reg.
// A nil reg leaves them unregistered, which suits tests and embedding.
func NewMetrics(reg prometheus.Registerer, workerID string) *Metrics {
	labels := prometheus.Labels{"worker_id": workerID}
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        metricMessages,
			Help:        "Scenario messages consumed, by disposition.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		models: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        metricModels,
			Help:        "Model messages consumed, by outcome (loaded or rejected).",
			ConstLabels: labels,
		}, []string{"outcome"}),
		ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        metricReady,
			Help:        "1 once the worker holds a model, 0 while awaiting one.",
			ConstLabels: labels,
		}),
		evalSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        metricEvalSecs,
			Help:        "Formula evaluation latency.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1e-7, 4, 10),
		}),
	}
	// Pre-create every outcome so dashboards see zeros.
	for _, d := range trace.Dispositions {
		m.messages.WithLabelValues(string(d))
	}
	m.models.WithLabelValues("loaded")
	m.models.WithLabelValues("rejected")
	if reg != nil {
		reg.MustRegister(m.messages, m.models, m.ready, m.evalSecs)
	}
	return m
}

func (m *Metrics) observeMessage(d trace.Disposition) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(string(d)).Inc()
}

func (m *Metrics) observeModel(loaded bool) {
	if m == nil {
		return
	}
	if loaded {
		m.models.WithLabelValues("loaded").Inc()
		m.ready.Set(1)
		return
	}
	m.models.WithLabelValues("rejected").Inc()
}

func (m *Metrics) observeEvaluation(seconds float64) {
	if m == nil {
		return
	}
	m.evalSecs.Observe(seconds)
}
