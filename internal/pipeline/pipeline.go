package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/temperature-anomaly-etl/internal/domain"
	"github.com/couchcryptid/temperature-anomaly-etl/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchExtractor reads up to batchSize raw analysis requests from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawRequest, error)
}

// Transformer turns a raw request into an anomaly result.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawRequest) (domain.AnomalyResult, error)
}

// BatchLoader writes multiple results to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, results []domain.AnomalyResult) error
}

// Pipeline orchestrates the extract-transform-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil if the pipeline has produced at least one result,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not produced any results yet")
	}
	return nil
}

// Run executes the batch ETL loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff) {
			return nil
		}
	}
}

// processBatch runs one extract-transform-load cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.RequestsConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = initialBackoff

	loaded, ok := p.transformAndLoad(ctx, rawBatch, backoff)
	if !ok {
		return false
	}

	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// transformAndLoad transforms each request in the batch, loads the results,
// and commits offsets. A request replayed within the batch yields the same
// result ID and is loaded once. Returns the number of loaded results and false
// if the pipeline should stop.
func (p *Pipeline) transformAndLoad(ctx context.Context, rawBatch []domain.RawRequest, backoff *time.Duration) (int, bool) {
	outBatch := make([]domain.AnomalyResult, 0, len(rawBatch))
	successfulRaws := make([]domain.RawRequest, 0, len(rawBatch))
	seen := make(map[string]bool, len(rawBatch))

	for _, raw := range rawBatch {
		out, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			if ctx.Err() != nil {
				return 0, false
			}
			reason := failureReason(err)
			p.logger.Warn("transform failed, skipping request",
				"error", err,
				"reason", reason,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.WithLabelValues(reason).Inc()
			p.commitOffset(ctx, raw)
			continue
		}
		successfulRaws = append(successfulRaws, raw)
		if seen[out.ID] {
			p.logger.Debug("duplicate request in batch", "request_id", out.RequestID, "result_id", out.ID)
			continue
		}
		seen[out.ID] = true
		p.metrics.NoDataCells.Add(float64(out.NoDataCells()))
		outBatch = append(outBatch, out)
	}

	if len(outBatch) == 0 {
		return 0, true
	}

	if err := p.loader.LoadBatch(ctx, outBatch); err != nil {
		p.logger.Error("load batch failed", "error", err, "batch_size", len(outBatch))
		return 0, p.backoffOrStop(ctx, backoff)
	}

	p.metrics.ResultsProduced.Add(float64(len(outBatch)))

	for _, raw := range successfulRaws {
		p.commitOffset(ctx, raw)
	}

	return len(outBatch), true
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !retry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = retry.NextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawRequest) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

// failureReason classifies a transform error for the error counter.
func failureReason(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return "invalid_request"
	case errors.Is(err, domain.ErrUnknownRegion):
		return "unknown_region"
	case errors.Is(err, domain.ErrDatasetNotFound):
		return "dataset_not_found"
	case errors.Is(err, domain.ErrGridMismatch),
		errors.Is(err, domain.ErrMissingAxis),
		errors.Is(err, domain.ErrInvalidAxis),
		errors.Is(err, domain.ErrUnrecognizedAxis),
		errors.Is(err, domain.ErrNotMonthly),
		errors.Is(err, domain.ErrNotDaily),
		errors.Is(err, domain.ErrInvalidWeights):
		return "dataset_shape"
	default:
		return "internal"
	}
}
