package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "temperature_anomaly"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// anomaly service.
type Metrics struct {
	RequestsConsumed prometheus.Counter
	ResultsProduced  prometheus.Counter
	TransformErrors  *prometheus.CounterVec // labels: reason
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Evaluation graph metrics.
	ForceDuration   prometheus.Histogram
	ChunksProcessed *prometheus.CounterVec // labels: op
	NoDataCells     prometheus.Counter

	// Dataset store metrics.
	DatasetCache        *prometheus.CounterVec // labels: result={hit,miss,shared}
	DatasetLoadDuration prometheus.Histogram
}

func newMetrics(help bool) *Metrics {
	h := func(s string) string {
		if help {
			return s
		}
		return ""
	}
	return &Metrics{
		RequestsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_consumed_total",
			Help:      h("Total analysis requests read from the source topic."),
		}),
		ResultsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_produced_total",
			Help:      h("Total anomaly results written to the sink topic."),
		}),
		TransformErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      h("Total requests that failed to compute, by reason."),
		}, []string{"reason"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      h("1 when the pipeline is active, 0 when shut down."),
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      h("Number of requests per batch extracted from Kafka."),
			Buckets:   []float64{1, 2, 5, 10, 20, 50},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      h("Duration of a complete batch extract-transform-load cycle."),
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		ForceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "force_duration_seconds",
			Help:      h("Duration of a single evaluation graph force."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ChunksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_processed_total",
			Help:      h("Latitude-band chunks evaluated by operation."),
		}, []string{"op"}),
		NoDataCells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "no_data_cells_total",
			Help:      h("Cells emitted as no data in published results."),
		}),
		DatasetCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_cache_total",
			Help:      h("Decoded dataset cache lookups by result."),
		}, []string{"result"}),
		DatasetLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dataset_load_duration_seconds",
			Help:      h("Time to read and decode one dataset variable."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.RequestsConsumed,
		m.ResultsProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.ForceDuration,
		m.ChunksProcessed,
		m.NoDataCells,
		m.DatasetCache,
		m.DatasetLoadDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}
