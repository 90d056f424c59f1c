package domain

import (
	"fmt"
	"time"
)

// AxisName names a field dimension.
type AxisName string

// Canonical axis names. Raw datasets may use other spellings; Normalize maps
// them onto these.
const (
	AxisTime        AxisName = "time"
	AxisYear        AxisName = "year"
	AxisMonth       AxisName = "month"
	AxisSeason      AxisName = "season"
	AxisDayOfYear   AxisName = "dayofyear"
	AxisRealization AxisName = "realization"
	AxisQuantile    AxisName = "quantile"
	AxisLat         AxisName = "lat"
	AxisLon         AxisName = "lon"
)

// axisRank orders canonical axes so that lat and lon are always the trailing,
// contiguous block of a normalized field.
var axisRank = map[AxisName]int{
	AxisTime:        0,
	AxisYear:        1,
	AxisMonth:       2,
	AxisSeason:      2,
	AxisDayOfYear:   2,
	AxisRealization: 3,
	AxisQuantile:    4,
	AxisLat:         5,
	AxisLon:         6,
}

// Axis holds the coordinates of one dimension. Exactly one of Values, Times or
// Labels is populated: Times for time axes, Labels for the season axis and
// Values for everything else.
type Axis struct {
	Name   AxisName    `json:"name"`
	Values []float64   `json:"values,omitempty"`
	Times  []time.Time `json:"times,omitempty"`
	Labels []string    `json:"labels,omitempty"`
}

// NumericAxis builds an axis with float coordinates.
func NumericAxis(name AxisName, values ...float64) Axis {
	return Axis{Name: name, Values: append([]float64(nil), values...)}
}

// TimeAxis builds a time axis. Timestamps are converted to UTC.
func TimeAxis(times ...time.Time) Axis {
	ts := make([]time.Time, len(times))
	for i, t := range times {
		ts[i] = t.UTC()
	}
	return Axis{Name: AxisTime, Times: ts}
}

// LabelAxis builds an axis with string coordinates.
func LabelAxis(name AxisName, labels ...string) Axis {
	return Axis{Name: name, Labels: append([]string(nil), labels...)}
}

// Len returns the number of coordinates.
func (a Axis) Len() int {
	switch {
	case a.Times != nil:
		return len(a.Times)
	case a.Labels != nil:
		return len(a.Labels)
	default:
		return len(a.Values)
	}
}

// IsTime reports whether the axis carries timestamps.
func (a Axis) IsTime() bool { return a.Times != nil }

// Equal reports whether two axes have the same name and coordinates.
func (a Axis) Equal(b Axis) bool {
	if a.Name != b.Name || a.Len() != b.Len() {
		return false
	}
	for i := range a.Values {
		if i >= len(b.Values) || a.Values[i] != b.Values[i] {
			return false
		}
	}
	for i := range a.Times {
		if i >= len(b.Times) || !a.Times[i].Equal(b.Times[i]) {
			return false
		}
	}
	for i := range a.Labels {
		if i >= len(b.Labels) || a.Labels[i] != b.Labels[i] {
			return false
		}
	}
	return true
}

// Coord formats coordinate i for logs and error messages.
func (a Axis) Coord(i int) string {
	switch {
	case a.Times != nil:
		return a.Times[i].Format(time.RFC3339)
	case a.Labels != nil:
		return a.Labels[i]
	default:
		return fmt.Sprintf("%g", a.Values[i])
	}
}

// IndexValue returns the index of coordinate v, or -1.
func (a Axis) IndexValue(v float64) int {
	for i, x := range a.Values {
		if x == v {
			return i
		}
	}
	return -1
}

// IndexTime returns the index of timestamp t, or -1.
func (a Axis) IndexTime(t time.Time) int {
	for i, x := range a.Times {
		if x.Equal(t) {
			return i
		}
	}
	return -1
}

// IndexLabel returns the index of label l, or -1.
func (a Axis) IndexLabel(l string) int {
	for i, x := range a.Labels {
		if x == l {
			return i
		}
	}
	return -1
}

func (a Axis) clone() Axis {
	out := Axis{Name: a.Name}
	if a.Values != nil {
		out.Values = append([]float64{}, a.Values...)
	}
	if a.Times != nil {
		out.Times = append([]time.Time{}, a.Times...)
	}
	if a.Labels != nil {
		out.Labels = append([]string{}, a.Labels...)
	}
	return out
}

// pick returns a new axis holding the coordinates at idx, in order.
func (a Axis) pick(idx []int) Axis {
	out := Axis{Name: a.Name}
	switch {
	case a.Times != nil:
		out.Times = make([]time.Time, len(idx))
		for j, i := range idx {
			out.Times[j] = a.Times[i]
		}
	case a.Labels != nil:
		out.Labels = make([]string, len(idx))
		for j, i := range idx {
			out.Labels[j] = a.Labels[i]
		}
	default:
		out.Values = make([]float64, len(idx))
		for j, i := range idx {
			out.Values[j] = a.Values[i]
		}
	}
	return out
}

// concatAxes joins the coordinates of same-named axes.
func concatAxes(parts []Axis) Axis {
	out := Axis{Name: parts[0].Name}
	for _, p := range parts {
		switch {
		case p.Times != nil:
			out.Times = append(out.Times, p.Times...)
		case p.Labels != nil:
			out.Labels = append(out.Labels, p.Labels...)
		default:
			out.Values = append(out.Values, p.Values...)
		}
	}
	return out
}

func rangeIdx(lo, hi int) []int {
	idx := make([]int, hi-lo)
	for i := range idx {
		idx[i] = lo + i
	}
	return idx
}
