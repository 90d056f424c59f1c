package domain

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DailyQuantileWindow is the number of days pooled around each day of the
// year by DailyQuantiles.
const DailyQuantileWindow = 31

// PreindustrialPeriod is the 1850-1900 span used as the pre-industrial level.
var PreindustrialPeriod = ReferencePeriod{
	Start: time.Date(1850, time.January, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(1901, time.January, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond),
}

// MonthlyClimatology averages, for each calendar month, the values observed in
// the reference period. A cell with no defined value for a month is no data.
// The result has axes [month 1..12] followed by the non-time axes of f.
func MonthlyClimatology(f *Field, period ReferencePeriod) (*Field, error) {
	g, t, err := timeFirst(f)
	if err != nil {
		return nil, fmt.Errorf("climatology: %w", err)
	}
	n, rest := g.inner()
	var byMonth [12][]int
	for ti, ts := range t.Times {
		if period.Contains(ts) {
			m := int(ts.Month()) - 1
			byMonth[m] = append(byMonth[m], ti)
		}
	}
	data := make([]Value, 12*n)
	xs := make([]float64, 0, len(t.Times))
	for m := range byMonth {
		for c := 0; c < n; c++ {
			xs = xs[:0]
			for _, ti := range byMonth[m] {
				if v, ok := g.data[ti*n+c].Get(); ok {
					xs = append(xs, v)
				}
			}
			if len(xs) == 0 {
				continue
			}
			data[m*n+c] = Some(stat.Mean(xs, nil))
		}
	}
	return g.derive(append([]Axis{monthAxis()}, rest...), data).Rename(g.Name() + "_climatology"), nil
}

// Anomalies subtracts the climatology of each timestamp's calendar month. A
// value is defined only when both operands are.
func Anomalies(f, clim *Field) (*Field, error) {
	g, t, err := timeFirst(f)
	if err != nil {
		return nil, fmt.Errorf("anomalies: %w", err)
	}
	c := clim
	if k := c.axisIndex(AxisMonth); k < 0 {
		return nil, fmt.Errorf("anomalies: climatology %q: %w", clim.Name(), ErrMissingAxis)
	} else if k != 0 {
		order := []AxisName{AxisMonth}
		for _, name := range c.AxisNames() {
			if name != AxisMonth {
				order = append(order, name)
			}
		}
		if c, err = c.Transpose(order); err != nil {
			return nil, fmt.Errorf("anomalies: %w", err)
		}
	}
	if !c.axes[0].Equal(monthAxis()) {
		return nil, fmt.Errorf("anomalies: climatology %q month axis: %w", clim.Name(), ErrGridMismatch)
	}
	if len(c.axes) != len(g.axes) {
		return nil, fmt.Errorf("anomalies: climatology axes %v vs %v: %w", c.AxisNames(), g.AxisNames(), ErrGridMismatch)
	}
	for i := 1; i < len(g.axes); i++ {
		if !g.axes[i].Equal(c.axes[i]) {
			return nil, fmt.Errorf("anomalies: axis %q differs from climatology: %w", g.axes[i].Name, ErrGridMismatch)
		}
	}
	n, _ := g.inner()
	data := make([]Value, len(g.data))
	for ti, ts := range t.Times {
		m := int(ts.Month()) - 1
		for j := 0; j < n; j++ {
			data[ti*n+j] = g.data[ti*n+j].Sub(c.data[m*n+j])
		}
	}
	return g.derive(g.cloneAxes(), data), nil
}

// DailyQuantiles builds a day-of-year climatology of quantiles from daily
// data. Inside the reference period every day contributes the window days
// centred on it, clipped to the period, to the pool of its day of the year;
// the quantiles qs are taken over each pool. The result has axes
// [dayofyear 1..366][quantile] followed by the non-time axes of f.
func DailyQuantiles(f *Field, period ReferencePeriod, window int, qs []float64) (*Field, error) {
	if window < 1 {
		return nil, fmt.Errorf("daily quantiles %q: window %d: %w", f.Name(), window, ErrInvalidRequest)
	}
	for _, q := range qs {
		if q < 0 || q > 1 {
			return nil, fmt.Errorf("quantile %g outside [0, 1]: %w", q, ErrInvalidAxis)
		}
	}
	g, t, err := timeFirst(f)
	if err != nil {
		return nil, fmt.Errorf("daily quantiles: %w", err)
	}
	if len(t.Times) > 1 && !IsDaily(t.Times) {
		return nil, fmt.Errorf("daily quantiles %q: %w", f.Name(), ErrNotDaily)
	}

	var inPeriod []int
	for ti, ts := range t.Times {
		if period.Contains(ts) {
			inPeriod = append(inPeriod, ti)
		}
	}
	var pools [366][]int
	for p, ti := range inPeriod {
		lo := max(p-window/2, 0)
		hi := min(p-window/2+window, len(inPeriod))
		d := t.Times[ti].YearDay() - 1
		pools[d] = append(pools[d], inPeriod[lo:hi]...)
	}

	n, rest := g.inner()
	data := make([]Value, len(pools)*len(qs)*n)
	xs := make([]float64, 0, len(pools[0]))
	for d, pool := range pools {
		for c := 0; c < n; c++ {
			xs = xs[:0]
			for _, ti := range pool {
				if v, ok := g.data[ti*n+c].Get(); ok {
					xs = append(xs, v)
				}
			}
			if len(xs) == 0 {
				continue
			}
			sort.Float64s(xs)
			for j, q := range qs {
				data[(d*len(qs)+j)*n+c] = Some(stat.Quantile(q, stat.Empirical, xs, nil))
			}
		}
	}
	days := make([]float64, len(pools))
	for i := range days {
		days[i] = float64(i + 1)
	}
	axes := append([]Axis{NumericAxis(AxisDayOfYear, days...), NumericAxis(AxisQuantile, qs...)}, rest...)
	return g.derive(axes, data).Rename(g.Name() + "_daily_quantiles"), nil
}

// PeriodLevel averages every defined value the series hold inside period.
// Each time step counts once whatever its source. Ensemble series, those with
// a realization axis, are left out. The level is no data when nothing falls
// inside the period.
func PeriodLevel(series []*Field, period ReferencePeriod) (Value, error) {
	var xs []float64
	for _, f := range series {
		if f.HasAxis(AxisRealization) {
			continue
		}
		g, t, err := timeFirst(f)
		if err != nil {
			return None(), fmt.Errorf("period level: %w", err)
		}
		n, _ := g.inner()
		for ti, ts := range t.Times {
			if !period.Contains(ts) {
				continue
			}
			for c := 0; c < n; c++ {
				if v, ok := g.data[ti*n+c].Get(); ok {
					xs = append(xs, v)
				}
			}
		}
	}
	if len(xs) == 0 {
		return None(), nil
	}
	return Some(stat.Mean(xs, nil)), nil
}
