package domain

import (
	"math"
	"time"
)

func monthsFrom(year int, month time.Month, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = time.Date(year, month+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
	}
	return out
}

func daysFrom(year int, month time.Month, day, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = time.Date(year, month, day+i, 0, 0, 0, 0, time.UTC)
	}
	return out
}

// series builds a [time] field from floats; NaN marks no data.
func series(times []time.Time, vals ...float64) *Field {
	return MustField("tas", []Axis{TimeAxis(times...)}, FromFloats(vals))
}

// constantGrid builds a [time][lat][lon] field with every cell set to v.
func constantGrid(times []time.Time, lats, lons []float64, v float64) *Field {
	return Fill("tas", []Axis{TimeAxis(times...), NumericAxis(AxisLat, lats...), NumericAxis(AxisLon, lons...)}, Some(v))
}

func floatsOf(f *Field) []float64 { return Floats(f.Values()) }

func reference(first, last int) ReferencePeriod {
	p, err := ReferenceYears(first, last)
	if err != nil {
		panic(err)
	}
	return p
}

func nan() float64 { return math.NaN() }

func isNaN(x float64) bool { return math.IsNaN(x) }
