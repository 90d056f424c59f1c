package domain

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Quantiles replaces the named axis with a quantile axis holding the empirical
// quantiles qs of the defined values along it.
func Quantiles(f *Field, along AxisName, qs []float64) (*Field, error) {
	k := f.axisIndex(along)
	if k < 0 {
		return nil, fmt.Errorf("quantiles of %q along %q: %w", f.Name(), along, ErrMissingAxis)
	}
	for _, q := range qs {
		if q < 0 || q > 1 {
			return nil, fmt.Errorf("quantile %g outside [0, 1]: %w", q, ErrInvalidAxis)
		}
	}
	outer, n, inner := f.split(k)
	data := make([]Value, outer*len(qs)*inner)
	xs := make([]float64, 0, n)
	for o := 0; o < outer; o++ {
		for c := 0; c < inner; c++ {
			xs = xs[:0]
			for i := 0; i < n; i++ {
				if v, ok := f.data[(o*n+i)*inner+c].Get(); ok {
					xs = append(xs, v)
				}
			}
			if len(xs) == 0 {
				continue
			}
			sort.Float64s(xs)
			for j, q := range qs {
				data[(o*len(qs)+j)*inner+c] = Some(stat.Quantile(q, stat.Empirical, xs, nil))
			}
		}
	}
	axes := f.cloneAxes()
	axes[k] = NumericAxis(AxisQuantile, qs...)
	return f.derive(axes, data), nil
}

// Envelope derives the min/max spread across realizations as a quantile axis
// {0, 1}. It is for display only.
func Envelope(f *Field) (*Field, error) {
	return Quantiles(f, AxisRealization, []float64{0, 1})
}

// Align brings every source onto one monthly time axis spanning the union of
// their months. Daily sources are converted with MonthlyMean; other
// non-monthly sources are rejected. Months a source lacks are no data.
func Align(sources map[string]*Field) (map[string]*Field, error) {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	monthly := make(map[string]*Field, len(sources))
	union := make(map[time.Time]struct{})
	for _, name := range names {
		f, t, err := timeFirst(sources[name])
		if err != nil {
			return nil, fmt.Errorf("align %q: %w", name, err)
		}
		if IsDaily(t.Times) {
			if f, err = MonthlyMean(f); err != nil {
				return nil, fmt.Errorf("align %q: %w", name, err)
			}
			t = f.axes[0]
		} else if err := requireMonthStarts(f, t); err != nil {
			return nil, fmt.Errorf("align %q: %w", name, err)
		}
		monthly[name] = f
		for _, ts := range t.Times {
			union[ts] = struct{}{}
		}
	}

	common := make([]time.Time, 0, len(union))
	for ts := range union {
		common = append(common, ts)
	}
	sort.Slice(common, func(i, j int) bool { return common[i].Before(common[j]) })

	out := make(map[string]*Field, len(monthly))
	for _, name := range names {
		out[name] = reindexTime(monthly[name], common)
	}
	return out, nil
}

// reindexTime places a time-first field onto the given timestamps.
func reindexTime(f *Field, times []time.Time) *Field {
	n, rest := f.inner()
	pos := make(map[time.Time]int, len(f.axes[0].Times))
	for i, ts := range f.axes[0].Times {
		pos[ts] = i
	}
	data := make([]Value, len(times)*n)
	for j, ts := range times {
		if i, ok := pos[ts]; ok {
			copy(data[j*n:(j+1)*n], f.data[i*n:(i+1)*n])
		}
	}
	return f.derive(append([]Axis{TimeAxis(times...)}, rest...), data)
}

// Difference subtracts b from a over the calendar months both contain. When
// both are gridded on different lat/lon coordinates, b is first regridded onto
// the grid of a. Every other axis must match.
func Difference(a, b *Field) (*Field, error) {
	fa, ta, err := timeFirst(a)
	if err != nil {
		return nil, fmt.Errorf("difference: %w", err)
	}
	fb, tb, err := timeFirst(b)
	if err != nil {
		return nil, fmt.Errorf("difference: %w", err)
	}
	if len(fa.axes) != len(fb.axes) {
		return nil, fmt.Errorf("difference %q - %q: axes %v vs %v: %w", a.Name(), b.Name(), fa.AxisNames(), fb.AxisNames(), ErrGridMismatch)
	}
	if fa.HasAxis(AxisLat) && fa.HasAxis(AxisLon) && fb.HasAxis(AxisLat) && fb.HasAxis(AxisLon) {
		if fa, err = spatialLast(fa); err != nil {
			return nil, fmt.Errorf("difference: %w", err)
		}
		if fb, err = Regrid(fb, fa); err != nil {
			return nil, fmt.Errorf("difference: %w", err)
		}
	}
	for i := 1; i < len(fa.axes); i++ {
		if !fa.axes[i].Equal(fb.axes[i]) {
			return nil, fmt.Errorf("difference %q - %q: axis %q: %w", a.Name(), b.Name(), fa.axes[i].Name, ErrGridMismatch)
		}
	}
	inB := make(map[time.Time]int, len(tb.Times))
	for i, ts := range tb.Times {
		inB[MonthStart(ts)] = i
	}
	n, rest := fa.inner()
	var times []time.Time
	var data []Value
	for i, ts := range ta.Times {
		j, ok := inB[MonthStart(ts)]
		if !ok {
			continue
		}
		times = append(times, MonthStart(ts))
		for c := 0; c < n; c++ {
			data = append(data, fa.data[i*n+c].Sub(fb.data[j*n+c]))
		}
	}
	return fa.derive(append([]Axis{TimeAxis(times...)}, rest...), data), nil
}
