package compute

import (
	"context"
	"fmt"
	"strings"

	"github.com/couchcryptid/temperature-anomaly-etl/internal/domain"
)

// kernel computes a node from its evaluated inputs. Chunked kernels fan out
// through the run's pool.
type kernel func(ctx context.Context, r *run, in []*domain.Field) (*domain.Field, error)

// Node is one recorded step of a computation. Building nodes does no numeric
// work; a Scheduler evaluates them on Force. Nodes are immutable and may be
// shared between graphs.
type Node struct {
	op     string
	detail string
	inputs []*Node
	kernel kernel
}

func newNode(op, detail string, k kernel, inputs ...*Node) *Node {
	return &Node{op: op, detail: detail, inputs: inputs, kernel: k}
}

// Op returns the operation name.
func (n *Node) Op() string { return n.op }

// Inputs returns the nodes this node reads from.
func (n *Node) Inputs() []*Node { return append([]*Node(nil), n.inputs...) }

// String renders the graph rooted at n, e.g.
// spatial_mean(select_region[Europe](normalize(load[era5/t2m])), weights(...)).
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	b.WriteString(n.op)
	if n.detail != "" {
		b.WriteString("[" + n.detail + "]")
	}
	if len(n.inputs) == 0 {
		return
	}
	b.WriteByte('(')
	for i, in := range n.inputs {
		if i > 0 {
			b.WriteString(", ")
		}
		if in == nil {
			b.WriteString("nil")
			continue
		}
		in.write(b)
	}
	b.WriteByte(')')
}

// Source wraps an already materialized field.
func Source(f *domain.Field) *Node {
	return newNode("source", f.Name(), func(context.Context, *run, []*domain.Field) (*domain.Field, error) {
		return f, nil
	})
}

// Load defers reading one variable from a dataset store.
func Load(store domain.DatasetStore, source, variable string) *Node {
	return newNode("load", source+"/"+variable, func(ctx context.Context, _ *run, _ []*domain.Field) (*domain.Field, error) {
		f, err := store.LoadField(ctx, source, variable)
		if err != nil {
			return nil, fmt.Errorf("load %s/%s: %w", source, variable, err)
		}
		return f, nil
	})
}

// Normalize harmonizes axis names, order and coordinates.
func Normalize(n *Node) *Node {
	return newNode("normalize", "", func(_ context.Context, _ *run, in []*domain.Field) (*domain.Field, error) {
		return domain.Normalize(in[0])
	}, n)
}

// SelectRegion keeps the cells inside the region.
func SelectRegion(n *Node, region domain.Region) *Node {
	return newNode("select_region", region.Name, func(_ context.Context, _ *run, in []*domain.Field) (*domain.Field, error) {
		return domain.SelectRegion(in[0], region)
	}, n)
}

// Weights builds cos(lat) area weights for target, multiplied by mask when
// mask is not nil. Both must already be restricted to the same region.
func Weights(target, mask *Node) *Node {
	if mask == nil {
		return newNode("weights", "", func(_ context.Context, _ *run, in []*domain.Field) (*domain.Field, error) {
			return domain.BuildWeights(in[0], nil)
		}, target)
	}
	return newNode("weights", "masked", func(_ context.Context, _ *run, in []*domain.Field) (*domain.Field, error) {
		return domain.BuildWeights(in[0], in[1])
	}, target, mask)
}

// SpatialMean reduces lat/lon with the given weights. The reduction is split
// into latitude bands whose partial sums are merged in band order.
func SpatialMean(n, weights *Node) *Node {
	return newNode("spatial_mean", "", func(ctx context.Context, r *run, in []*domain.Field) (*domain.Field, error) {
		return r.spatialMean(ctx, in[0], in[1])
	}, n, weights)
}

// Climatology computes the per-calendar-month mean over the reference period.
func Climatology(n *Node, period domain.ReferencePeriod) *Node {
	return perCell("climatology", period.String(), func(in []*domain.Field) (*domain.Field, error) {
		return domain.MonthlyClimatology(in[0], period)
	}, n)
}

// Anomaly subtracts a climatology node from a field node.
func Anomaly(n, clim *Node) *Node {
	return perCell("anomaly", "", func(in []*domain.Field) (*domain.Field, error) {
		return domain.Anomalies(in[0], in[1])
	}, n, clim)
}

// Annual reduces monthly data to day-weighted calendar-year means.
func Annual(n *Node) *Node {
	return perCell("annual", "", func(in []*domain.Field) (*domain.Field, error) {
		return domain.AnnualMean(in[0])
	}, n)
}

// Seasonal reduces monthly data to day-weighted DJF/MAM/JJA/SON means.
func Seasonal(n *Node) *Node {
	return perCell("seasonal", "", func(in []*domain.Field) (*domain.Field, error) {
		return domain.SeasonalMean(in[0])
	}, n)
}

// YearMonth splits a monthly time axis into [year][month].
func YearMonth(n *Node) *Node {
	return perCell("year_month", "", func(in []*domain.Field) (*domain.Field, error) {
		return domain.ToYearMonth(in[0])
	}, n)
}

// Monthly converts daily data to monthly means and passes monthly data
// through unchanged. Any other sampling is rejected.
func Monthly(n *Node) *Node {
	return newNode("monthly", "", func(ctx context.Context, r *run, in []*domain.Field) (*domain.Field, error) {
		t, ok := in[0].Axis(domain.AxisTime)
		if !ok || len(t.Times) < 2 || domain.IsMonthly(t.Times) {
			return in[0], nil
		}
		if !domain.IsDaily(t.Times) {
			return nil, fmt.Errorf("%q: %w", in[0].Name(), domain.ErrNotMonthly)
		}
		return r.perBand(ctx, "monthly", in, func(in []*domain.Field) (*domain.Field, error) {
			return domain.MonthlyMean(in[0])
		})
	}, n)
}

// Rolling applies a centered running mean of window time steps.
func Rolling(n *Node, window int) *Node {
	return perCell("rolling", fmt.Sprint(window), func(in []*domain.Field) (*domain.Field, error) {
		return domain.RollingMean(in[0], window)
	}, n)
}

// Envelope derives the min/max across realizations.
func Envelope(n *Node) *Node {
	return perCell("envelope", "", func(in []*domain.Field) (*domain.Field, error) {
		return domain.Envelope(in[0])
	}, n)
}

// DailyQuantiles builds the day-of-year quantile climatology of daily data
// over the reference period.
func DailyQuantiles(n *Node, period domain.ReferencePeriod, window int, qs []float64) *Node {
	qs = append([]float64(nil), qs...)
	return perCell("daily_quantiles", fmt.Sprintf("%s/%d", period, window), func(in []*domain.Field) (*domain.Field, error) {
		return domain.DailyQuantiles(in[0], period, window, qs)
	}, n)
}

// Difference subtracts b from a, regridding b onto the lat/lon grid of a when
// they differ. Interpolation crosses band boundaries, so it runs unchunked.
func Difference(a, b *Node) *Node {
	return newNode("difference", "", func(_ context.Context, _ *run, in []*domain.Field) (*domain.Field, error) {
		return domain.Difference(in[0], in[1])
	}, a, b)
}

// Map applies an arbitrary function to the evaluated inputs. It runs
// unchunked.
func Map(name string, fn func(in ...*domain.Field) (*domain.Field, error), inputs ...*Node) *Node {
	return newNode(name, "", func(_ context.Context, _ *run, in []*domain.Field) (*domain.Field, error) {
		return fn(in...)
	}, inputs...)
}

// perCell builds a node whose kernel treats every lat/lon cell independently,
// so it can be evaluated band by band and concatenated along lat.
func perCell(op, detail string, fn func([]*domain.Field) (*domain.Field, error), inputs ...*Node) *Node {
	return newNode(op, detail, func(ctx context.Context, r *run, in []*domain.Field) (*domain.Field, error) {
		return r.perBand(ctx, op, in, fn)
	}, inputs...)
}
