package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "smrf"

// Metrics holds the Prometheus counters, histograms, and gauges for a
// distribution run.
type Metrics struct {
	StepsDistributed   *prometheus.CounterVec   // labels: variable
	DistributeDuration *prometheus.HistogramVec // labels: variable
	GridsEmitted       *prometheus.CounterVec   // labels: variable
	RunFailures        *prometheus.CounterVec   // labels: kind={config,missing,numeric,stall,sink,other}
	PipelineRunning    prometheus.Gauge

	// Queue metrics.
	QueueDepth *prometheus.GaugeVec     // labels: queue
	QueueWait  *prometheus.HistogramVec // labels: op={put,get}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.StepsDistributed,
		m.DistributeDuration,
		m.GridsEmitted,
		m.RunFailures,
		m.PipelineRunning,
		m.QueueDepth,
		m.QueueWait,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests
// can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		StepsDistributed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_distributed_total",
			Help:      "Timesteps distributed, by variable worker.",
		}, []string{"variable"}),
		DistributeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "distribute_duration_seconds",
			Help:      "Time spent in one distribute call.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"variable"}),
		GridsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grids_emitted_total",
			Help:      "Grids handed to the output sink.",
		}, []string{"variable"}),
		RunFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_failures_total",
			Help:      "Runs aborted, by failure kind.",
		}, []string{"kind"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Buffered timesteps per variable queue.",
		}, []string{"queue"}),
		QueueWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_wait_seconds",
			Help:      "Time a put or get spent blocked.",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1, 10, 60},
		}, []string{"op"}),
	}
}
