package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/temperature-anomaly-etl/internal/compute"
	"github.com/couchcryptid/temperature-anomaly-etl/internal/domain"
)

// AnomalyTransformer implements Transformer by building a deferred graph per
// request and forcing it on the scheduler.
type AnomalyTransformer struct {
	store     domain.DatasetStore
	scheduler *compute.Scheduler
	catalog   *domain.Catalog
	period    domain.ReferencePeriod
	logger    *slog.Logger
}

// NewTransformer creates an AnomalyTransformer reading gridded data from store.
func NewTransformer(store domain.DatasetStore, scheduler *compute.Scheduler, catalog *domain.Catalog, period domain.ReferencePeriod, logger *slog.Logger) *AnomalyTransformer {
	return &AnomalyTransformer{
		store:     store,
		scheduler: scheduler,
		catalog:   catalog,
		period:    period,
		logger:    logger,
	}
}

func (t *AnomalyTransformer) Transform(ctx context.Context, raw domain.RawRequest) (domain.AnomalyResult, error) {
	req, err := domain.ParseRequest(raw)
	if err != nil {
		return domain.AnomalyResult{}, err
	}
	region, err := t.catalog.Lookup(req.Region)
	if err != nil {
		return domain.AnomalyResult{}, err
	}

	result := domain.AnomalyResult{
		ID:              domain.ResultID(req, t.period),
		RequestID:       req.ID,
		Region:          region,
		Resolution:      req.Resolution,
		Kind:            req.Kind,
		ReferencePeriod: t.period,
		Anomalies:       make(map[string]*domain.Field, len(req.Sources)),
	}

	switch req.Kind {
	case domain.KindField:
		err = t.fields(ctx, req, region, &result)
	default:
		err = t.series(ctx, req, region, &result)
	}
	if err != nil {
		return domain.AnomalyResult{}, fmt.Errorf("request %s: %w", req.ID, err)
	}
	result.ProcessedAt = domain.Now()

	t.logger.Debug("request transformed",
		"request_id", req.ID,
		"region", region.Name,
		"kind", req.Kind,
		"resolution", req.Resolution,
		"sources", len(req.Sources),
	)
	return result, nil
}

// sourceData loads one source variable as normalized data at its native
// sampling, restricted to region.
func (t *AnomalyTransformer) sourceData(src domain.SourceSpec, region domain.Region) *compute.Node {
	n := compute.Load(t.store, src.Name, src.Variable)
	if src.Offset != 0 {
		n = offset(n, src.Offset)
	}
	return compute.SelectRegion(compute.Normalize(n), region)
}

// series computes the regional mean anomaly series of every source, aligns
// them on one monthly time axis and applies smoothing and reduction.
func (t *AnomalyTransformer) series(ctx context.Context, req domain.AnalysisRequest, region domain.Region, result *domain.AnomalyResult) error {
	roots := make([]*compute.Node, 0, 2*len(req.Sources))
	daily := make(map[string]*compute.Node, len(req.Sources))
	for _, src := range req.Sources {
		raw := t.sourceData(src, region)
		data := compute.Monthly(raw)
		var mask *compute.Node
		if src.Mask != "" {
			mask = compute.SelectRegion(compute.Normalize(compute.Load(t.store, src.Name, src.Mask)), region)
		}
		weights := compute.Weights(data, mask)
		mean := compute.SpatialMean(data, weights)
		anom := compute.Anomaly(mean, compute.Climatology(mean, t.period))
		roots = append(roots, anom, baseline(mean, t.period))
		if len(req.DailyQuantiles) > 0 {
			daily[src.Name] = compute.DailyQuantiles(compute.SpatialMean(raw, weights), t.period, domain.DailyQuantileWindow, req.DailyQuantiles)
		}
	}
	forced, err := t.scheduler.ForceAll(ctx, roots...)
	if err != nil {
		return err
	}

	anomalies := make(map[string]*domain.Field, len(req.Sources))
	result.Baselines = make(map[string]*domain.Field, len(req.Sources))
	for i, src := range req.Sources {
		anomalies[src.Name] = forced[2*i].Rename(src.Name)
		result.Baselines[src.Name] = forced[2*i+1].Rename(src.Name + "_baseline")
	}
	aligned, err := domain.Align(anomalies)
	if err != nil {
		return err
	}

	smoothed := make(map[string]*compute.Node, len(req.Sources))
	roots = roots[:0]
	for _, src := range req.Sources {
		smoothed[src.Name] = smooth(compute.Source(aligned[src.Name]), req.Smoothing)
		roots = append(roots, smoothed[src.Name], reduce(smoothed[src.Name], req.Resolution))
	}
	diff := differenceOf(req.Difference, smoothed)
	if diff != nil {
		roots = append(roots, reduce(diff, req.Resolution))
	}
	out, err := t.scheduler.ForceAll(ctx, roots...)
	if err != nil {
		return err
	}
	levels := make([]*domain.Field, 0, len(req.Sources))
	for i, src := range req.Sources {
		levels = append(levels, out[2*i])
		result.Anomalies[src.Name] = out[2*i+1]
	}
	if diff != nil {
		result.Difference = out[len(out)-1].Rename(req.Difference.Minuend + "_minus_" + req.Difference.Subtrahend)
	}
	if req.PreindustrialLevel {
		level, err := domain.PeriodLevel(levels, domain.PreindustrialPeriod)
		if err != nil {
			return err
		}
		result.PreindustrialLevel = &level
	}
	if err := t.dailyQuantiles(ctx, req, daily, result); err != nil {
		return err
	}
	return t.envelopes(ctx, result)
}

// dailyQuantiles forces the day-of-year quantile climatology of every daily
// source. Sources that are not daily are skipped.
func (t *AnomalyTransformer) dailyQuantiles(ctx context.Context, req domain.AnalysisRequest, nodes map[string]*compute.Node, result *domain.AnomalyResult) error {
	if len(nodes) == 0 {
		return nil
	}
	result.DailyQuantiles = make(map[string]*domain.Field, len(nodes))
	for _, src := range req.Sources {
		f, err := t.scheduler.Force(ctx, nodes[src.Name])
		if errors.Is(err, domain.ErrNotDaily) {
			t.logger.Debug("daily quantiles skipped", "request_id", req.ID, "source", src.Name)
			continue
		}
		if err != nil {
			return err
		}
		result.DailyQuantiles[src.Name] = f.Rename(src.Name)
	}
	return nil
}

// fields computes anomalies on the native grid of every source inside the
// region.
func (t *AnomalyTransformer) fields(ctx context.Context, req domain.AnalysisRequest, region domain.Region, result *domain.AnomalyResult) error {
	if req.Smoothing > 1 {
		t.logger.Debug("smoothing ignored for field output", "request_id", req.ID, "smoothing", req.Smoothing)
	}
	roots := make([]*compute.Node, 0, len(req.Sources)+1)
	anoms := make(map[string]*compute.Node, len(req.Sources))
	for _, src := range req.Sources {
		data := compute.Monthly(t.sourceData(src, region))
		anoms[src.Name] = compute.Anomaly(data, compute.Climatology(data, t.period))
		roots = append(roots, fieldOutput(anoms[src.Name], req.Resolution))
	}
	diff := differenceOf(req.Difference, anoms)
	if diff != nil {
		roots = append(roots, fieldOutput(diff, req.Resolution))
	}
	out, err := t.scheduler.ForceAll(ctx, roots...)
	if err != nil {
		return err
	}
	for i, src := range req.Sources {
		result.Anomalies[src.Name] = out[i].Rename(src.Name)
	}
	if diff != nil {
		result.Difference = out[len(out)-1].Rename(req.Difference.Minuend + "_minus_" + req.Difference.Subtrahend)
	}
	return t.envelopes(ctx, result)
}

// fieldOutput lays a monthly anomaly field out for the requested resolution.
func fieldOutput(n *compute.Node, res domain.Resolution) *compute.Node {
	if res == domain.Monthly {
		return compute.YearMonth(n)
	}
	return reduce(n, res)
}

// differenceOf builds the requested difference between two source nodes, or
// returns nil when none was asked for.
func differenceOf(spec *domain.DifferenceSpec, nodes map[string]*compute.Node) *compute.Node {
	if spec == nil {
		return nil
	}
	return compute.Difference(nodes[spec.Minuend], nodes[spec.Subtrahend])
}

func smooth(n *compute.Node, window int) *compute.Node {
	if window > 1 {
		return compute.Rolling(n, window)
	}
	return n
}

// envelopes adds the min/max across realizations for every ensemble result.
func (t *AnomalyTransformer) envelopes(ctx context.Context, result *domain.AnomalyResult) error {
	var names []string
	var roots []*compute.Node
	for name, f := range result.Anomalies {
		if f.HasAxis(domain.AxisRealization) {
			names = append(names, name)
			roots = append(roots, compute.Envelope(compute.Source(f)))
		}
	}
	if len(roots) == 0 {
		return nil
	}
	out, err := t.scheduler.ForceAll(ctx, roots...)
	if err != nil {
		return err
	}
	result.Envelopes = make(map[string]*domain.Field, len(names))
	for i, name := range names {
		result.Envelopes[name] = out[i]
	}
	return nil
}

// reduce applies the temporal reduction of the requested resolution.
func reduce(n *compute.Node, res domain.Resolution) *compute.Node {
	switch res {
	case domain.Annual:
		return compute.Annual(n)
	case domain.Seasonal:
		return compute.Seasonal(n)
	default:
		return n
	}
}

// offset adds a constant to every defined value, e.g. -273.15 to go from
// Kelvin to Celsius.
func offset(n *compute.Node, k float64) *compute.Node {
	return compute.Map("offset", func(in ...*domain.Field) (*domain.Field, error) {
		return in[0].Map(func(v domain.Value) domain.Value {
			return v.Add(domain.Some(k))
		}), nil
	}, n)
}

// baseline is the absolute day-weighted reference-period mean of a series.
func baseline(n *compute.Node, period domain.ReferencePeriod) *compute.Node {
	return compute.Map("baseline", func(in ...*domain.Field) (*domain.Field, error) {
		return domain.DayWeightedMean(in[0], period)
	}, n)
}
