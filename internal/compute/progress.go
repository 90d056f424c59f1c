package compute

import (
	"log/slog"
	"time"

	"github.com/couchcryptid/temperature-anomaly-etl/internal/observability"
)

// Progress observes a force. It must be safe for concurrent use and has no
// influence on results.
type Progress interface {
	// ChunkDone reports that a chunk of op finished; chunks may complete out
	// of order.
	ChunkDone(op string, chunk, total int)
	// ForceDone reports a completed force over the given number of nodes.
	ForceDone(nodes int, elapsed time.Duration)
}

// NopProgress discards all reports.
type NopProgress struct{}

func (NopProgress) ChunkDone(string, int, int) {}
func (NopProgress) ForceDone(int, time.Duration) {}

// MetricsProgress counts chunks in Prometheus and logs them at debug level.
type MetricsProgress struct {
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewMetricsProgress creates a Progress backed by the service metrics.
func NewMetricsProgress(metrics *observability.Metrics, logger *slog.Logger) *MetricsProgress {
	return &MetricsProgress{metrics: metrics, logger: logger}
}

func (p *MetricsProgress) ChunkDone(op string, chunk, total int) {
	p.metrics.ChunksProcessed.WithLabelValues(op).Inc()
	p.logger.Debug("chunk done", "op", op, "chunk", chunk, "total", total)
}

func (p *MetricsProgress) ForceDone(_ int, elapsed time.Duration) {
	p.metrics.ForceDuration.Observe(elapsed.Seconds())
}
