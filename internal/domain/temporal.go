package domain

import (
	"fmt"
	"math"
	"time"
)

// weightTolerance bounds the drift of day-count weight sums for a complete
// window.
const weightTolerance = 1e-6

// timeFirst moves the time axis to the front and returns the field with the
// time axis split off.
func timeFirst(f *Field) (*Field, Axis, error) {
	k := f.axisIndex(AxisTime)
	if k < 0 {
		return nil, Axis{}, fmt.Errorf("%q: %w", f.Name(), ErrMissingAxis)
	}
	g := f
	if k != 0 {
		order := []AxisName{AxisTime}
		for _, n := range f.AxisNames() {
			if n != AxisTime {
				order = append(order, n)
			}
		}
		var err error
		if g, err = f.Transpose(order); err != nil {
			return nil, Axis{}, err
		}
	}
	return g, g.axes[0], nil
}

func requireMonthStarts(f *Field, t Axis) error {
	for i, ts := range t.Times {
		if !ts.Equal(MonthStart(ts)) {
			return fmt.Errorf("%q: timestamp %s is not a month start: %w", f.Name(), t.Coord(i), ErrNotMonthly)
		}
	}
	return nil
}

// inner returns the number of cells per time step and the trailing axes.
func (f *Field) inner() (int, []Axis) {
	axes := make([]Axis, len(f.axes)-1)
	n := 1
	for i, a := range f.axes[1:] {
		axes[i] = a.clone()
		n *= a.Len()
	}
	return n, axes
}

// AnnualMean reduces a monthly field to calendar years with days-in-month /
// days-in-year weights. A year whose defined months do not carry a total
// weight of 1 is no data. The result has axes [year][month={1}] followed by
// the remaining axes.
func AnnualMean(f *Field) (*Field, error) {
	g, t, err := timeFirst(f)
	if err != nil {
		return nil, fmt.Errorf("annual mean: %w", err)
	}
	if err := requireMonthStarts(g, t); err != nil {
		return nil, fmt.Errorf("annual mean: %w", err)
	}
	n, rest := g.inner()
	years := distinctYears(t.Times, func(ts time.Time) int { return ts.Year() })
	byYear := make(map[int][]int, len(years))
	for ti, ts := range t.Times {
		byYear[ts.Year()] = append(byYear[ts.Year()], ti)
	}
	data := make([]Value, len(years)*n)
	weights := make([]float64, 0, 12)
	for yi, year := range years {
		members := byYear[year]
		total := float64(DaysInYear(year))
		weights = weights[:0]
		for _, ti := range members {
			weights = append(weights, float64(DaysInMonth(t.Times[ti]))/total)
		}
		for c := 0; c < n; c++ {
			var sum, wsum float64
			for j, ti := range members {
				v, ok := g.data[ti*n+c].Get()
				if !ok {
					continue
				}
				sum += v * weights[j]
				wsum += weights[j]
			}
			if math.Abs(wsum-1) > weightTolerance {
				continue
			}
			data[yi*n+c] = Some(sum / wsum)
		}
	}
	axes := append([]Axis{yearAxis(years), NumericAxis(AxisMonth, 1)}, rest...)
	return g.derive(axes, data), nil
}

// SeasonalMean reduces a monthly field to DJF, MAM, JJA and SON with
// days-in-month weights. DJF belongs to the year of its January. Any season
// missing one of its months, including the partial seasons at either end of
// the data, is no data. The result has axes [year][season] followed by the
// remaining axes.
func SeasonalMean(f *Field) (*Field, error) {
	g, t, err := timeFirst(f)
	if err != nil {
		return nil, fmt.Errorf("seasonal mean: %w", err)
	}
	if err := requireMonthStarts(g, t); err != nil {
		return nil, fmt.Errorf("seasonal mean: %w", err)
	}
	n, rest := g.inner()
	index := make(map[time.Time]int, len(t.Times))
	for i, ts := range t.Times {
		index[ts] = i
	}
	years := distinctYears(t.Times, func(ts time.Time) int {
		_, y := SeasonOf(ts.Year(), ts.Month())
		return y
	})
	data := make([]Value, len(years)*len(SeasonLabels)*n)
	for yi, year := range years {
		for s := range SeasonLabels {
			months := SeasonMonths(Season(s), year)
			var idx [3]int
			var days [3]float64
			var total float64
			complete := true
			for j, m := range months {
				i, ok := index[m]
				if !ok {
					complete = false
					break
				}
				idx[j] = i
				days[j] = float64(DaysInMonth(m))
				total += days[j]
			}
			if !complete {
				continue
			}
			base := (yi*len(SeasonLabels) + s) * n
			for c := 0; c < n; c++ {
				var sum, wsum float64
				defined := true
				for j := range idx {
					v, ok := g.data[idx[j]*n+c].Get()
					if !ok {
						defined = false
						break
					}
					w := days[j] / total
					sum += v * w
					wsum += w
				}
				if !defined || math.Abs(wsum-1) > weightTolerance {
					continue
				}
				data[base+c] = Some(sum / wsum)
			}
		}
	}
	axes := append([]Axis{yearAxis(years), LabelAxis(AxisSeason, SeasonLabels...)}, rest...)
	return g.derive(axes, data), nil
}

// ToYearMonth splits a monthly time axis into [year][month 1..12]. Months
// absent from the time axis are no data.
func ToYearMonth(f *Field) (*Field, error) {
	g, t, err := timeFirst(f)
	if err != nil {
		return nil, fmt.Errorf("year/month index: %w", err)
	}
	if err := requireMonthStarts(g, t); err != nil {
		return nil, fmt.Errorf("year/month index: %w", err)
	}
	n, rest := g.inner()
	if len(t.Times) == 0 {
		axes := append([]Axis{NumericAxis(AxisYear), monthAxis()}, rest...)
		return g.derive(axes, nil), nil
	}
	first, last := t.Times[0].Year(), t.Times[len(t.Times)-1].Year()
	years := make([]int, 0, last-first+1)
	for y := first; y <= last; y++ {
		years = append(years, y)
	}
	data := make([]Value, len(years)*12*n)
	for ti, ts := range t.Times {
		dst := ((ts.Year()-first)*12 + int(ts.Month()) - 1) * n
		copy(data[dst:dst+n], g.data[ti*n:(ti+1)*n])
	}
	axes := append([]Axis{yearAxis(years), monthAxis()}, rest...)
	return g.derive(axes, data), nil
}

// MonthlyMean converts daily data to month-start monthly means with equal
// daily weights. A month with a missing day, or not fully covered by the time
// axis, is no data.
func MonthlyMean(f *Field) (*Field, error) {
	g, t, err := timeFirst(f)
	if err != nil {
		return nil, fmt.Errorf("monthly mean: %w", err)
	}
	n, rest := g.inner()
	if len(t.Times) == 0 {
		return g.derive(append([]Axis{TimeAxis()}, rest...), nil), nil
	}
	months := MonthlyTimes(t.Times[0], t.Times[len(t.Times)-1])
	members := make([][]int, len(months))
	first := months[0]
	for ti, ts := range t.Times {
		mi := (ts.Year()-first.Year())*12 + int(ts.Month()) - int(first.Month())
		members[mi] = append(members[mi], ti)
	}
	data := make([]Value, len(months)*n)
	for mi, m := range months {
		if len(members[mi]) != DaysInMonth(m) {
			continue
		}
		for c := 0; c < n; c++ {
			var sum float64
			defined := true
			for _, ti := range members[mi] {
				v, ok := g.data[ti*n+c].Get()
				if !ok {
					defined = false
					break
				}
				sum += v
			}
			if defined {
				data[mi*n+c] = Some(sum / float64(len(members[mi])))
			}
		}
	}
	return g.derive(append([]Axis{TimeAxis(months...)}, rest...), data), nil
}

// RollingMean applies a centered running mean of window steps along time.
// Output i averages steps [i-window/2, i-window/2+window); windows reaching
// past the data or containing no data yield no data.
func RollingMean(f *Field, window int) (*Field, error) {
	if window < 1 {
		return nil, fmt.Errorf("rolling mean %q: window %d: %w", f.Name(), window, ErrInvalidRequest)
	}
	g, t, err := timeFirst(f)
	if err != nil {
		return nil, fmt.Errorf("rolling mean: %w", err)
	}
	n, _ := g.inner()
	nt := t.Len()
	data := make([]Value, len(g.data))
	for i := 0; i < nt; i++ {
		lo := i - window/2
		hi := lo + window
		if lo < 0 || hi > nt {
			continue
		}
		for c := 0; c < n; c++ {
			var sum float64
			defined := true
			for j := lo; j < hi; j++ {
				v, ok := g.data[j*n+c].Get()
				if !ok {
					defined = false
					break
				}
				sum += v
			}
			if defined {
				data[i*n+c] = Some(sum / float64(window))
			}
		}
	}
	return g.derive(g.cloneAxes(), data), nil
}

// DayWeightedMean collapses the time axis over the reference period, weighting
// each month by its length in days. Missing months are skipped; a cell with no
// defined month in the period is no data.
func DayWeightedMean(f *Field, period ReferencePeriod) (*Field, error) {
	g, t, err := timeFirst(f)
	if err != nil {
		return nil, fmt.Errorf("day-weighted mean: %w", err)
	}
	n, rest := g.inner()
	data := make([]Value, n)
	for c := 0; c < n; c++ {
		var sum, wsum float64
		for ti, ts := range t.Times {
			if !period.Contains(ts) {
				continue
			}
			v, ok := g.data[ti*n+c].Get()
			if !ok {
				continue
			}
			w := float64(DaysInMonth(ts))
			sum += v * w
			wsum += w
		}
		if wsum > 0 {
			data[c] = Some(sum / wsum)
		}
	}
	return g.derive(rest, data), nil
}

func distinctYears(times []time.Time, yearOf func(time.Time) int) []int {
	var years []int
	for _, ts := range times {
		y := yearOf(ts)
		if len(years) == 0 || years[len(years)-1] != y {
			years = append(years, y)
		}
	}
	return years
}

func yearAxis(years []int) Axis {
	vals := make([]float64, len(years))
	for i, y := range years {
		vals[i] = float64(y)
	}
	return NumericAxis(AxisYear, vals...)
}

func monthAxis() Axis {
	return NumericAxis(AxisMonth, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12)
}
