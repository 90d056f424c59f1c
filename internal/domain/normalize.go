package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// axisAliases maps the dimension names used by the supported datasets onto
// canonical axis names.
var axisAliases = map[string]AxisName{
	"lat":         AxisLat,
	"latitude":    AxisLat,
	"nav_lat":     AxisLat,
	"lon":         AxisLon,
	"longitude":   AxisLon,
	"nav_lon":     AxisLon,
	"time":        AxisTime,
	"valid_time":  AxisTime,
	"t":           AxisTime,
	"realization": AxisRealization,
	"member":      AxisRealization,
	"number":      AxisRealization,
	"ensemble":    AxisRealization,
	"quantile":    AxisQuantile,
	"year":        AxisYear,
	"month":       AxisMonth,
	"season":      AxisSeason,
	"dayofyear":   AxisDayOfYear,
}

// CanonicalAxis resolves a dataset dimension name. Matching is case-insensitive.
func CanonicalAxis(name string) (AxisName, bool) {
	a, ok := axisAliases[strings.ToLower(strings.TrimSpace(name))]
	return a, ok
}

// Normalize harmonizes a raw field: canonical axis names and order, monthly
// timestamps snapped to the first of the month, longitudes in [-180, 180) and
// both spatial axes strictly ascending. Normalize is idempotent.
func Normalize(raw *Field) (*Field, error) {
	axes := raw.cloneAxes()
	seen := make(map[AxisName]string, len(axes))
	for i, a := range axes {
		canon, ok := CanonicalAxis(string(a.Name))
		if !ok {
			return nil, fmt.Errorf("normalize %q: axis %q: %w", raw.name, a.Name, ErrUnrecognizedAxis)
		}
		if prev, dup := seen[canon]; dup {
			return nil, fmt.Errorf("normalize %q: axes %q and %q both map to %q: %w", raw.name, prev, a.Name, canon, ErrInvalidAxis)
		}
		seen[canon] = string(a.Name)
		axes[i].Name = canon
		if err := checkAxisKind(axes[i]); err != nil {
			return nil, fmt.Errorf("normalize %q: %w", raw.name, err)
		}
	}

	if i := indexOf(axes, AxisTime); i >= 0 {
		times, err := normalizeTimes(axes[i])
		if err != nil {
			return nil, fmt.Errorf("normalize %q: %w", raw.name, err)
		}
		axes[i] = times
	}
	if i := indexOf(axes, AxisLat); i >= 0 {
		for _, v := range axes[i].Values {
			if math.IsNaN(v) || v < -90 || v > 90 {
				return nil, fmt.Errorf("normalize %q: latitude %g outside [-90, 90]: %w", raw.name, v, ErrInvalidAxis)
			}
		}
	}
	if i := indexOf(axes, AxisLon); i >= 0 {
		lon, err := wrapLongitudes(axes[i])
		if err != nil {
			return nil, fmt.Errorf("normalize %q: %w", raw.name, err)
		}
		axes[i] = lon
	}

	f := raw.derive(axes, raw.data)
	f, err := f.Transpose(canonicalOrder(f.AxisNames()))
	if err != nil {
		return nil, fmt.Errorf("normalize %q: %w", raw.name, err)
	}
	for _, name := range []AxisName{AxisLat, AxisLon} {
		if f, err = sortAscending(f, name); err != nil {
			return nil, fmt.Errorf("normalize %q: %w", raw.name, err)
		}
	}
	return f, nil
}

func checkAxisKind(a Axis) error {
	switch a.Name {
	case AxisTime:
		if !a.IsTime() && a.Len() > 0 {
			return fmt.Errorf("axis %q holds no timestamps: %w", a.Name, ErrInvalidAxis)
		}
	case AxisSeason:
		if a.Labels == nil && a.Len() > 0 {
			return fmt.Errorf("axis %q holds no labels: %w", a.Name, ErrInvalidAxis)
		}
	default:
		if a.IsTime() || a.Labels != nil {
			return fmt.Errorf("axis %q must be numeric: %w", a.Name, ErrInvalidAxis)
		}
	}
	return nil
}

// normalizeTimes rejects non-increasing timestamps and snaps monthly axes to
// month starts. Daily and other axes are returned unchanged.
func normalizeTimes(a Axis) (Axis, error) {
	for i := 1; i < len(a.Times); i++ {
		if !a.Times[i].After(a.Times[i-1]) {
			return Axis{}, fmt.Errorf("time not strictly increasing at %s: %w", a.Coord(i), ErrInvalidAxis)
		}
	}
	if !IsMonthly(a.Times) {
		return a, nil
	}
	out := Axis{Name: AxisTime, Times: make([]time.Time, len(a.Times))}
	for i, t := range a.Times {
		out.Times[i] = MonthStart(t)
		if i > 0 && !out.Times[i].After(out.Times[i-1]) {
			return Axis{}, fmt.Errorf("two timestamps in month %s: %w", out.Times[i].Format("2006-01"), ErrInvalidAxis)
		}
	}
	return out, nil
}

// WrapLongitude maps a longitude into [-180, 180).
func WrapLongitude(lon float64) float64 {
	w := math.Mod(lon+180, 360)
	if w < 0 {
		w += 360
	}
	return w - 180
}

func wrapLongitudes(a Axis) (Axis, error) {
	wrap := false
	for _, v := range a.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Axis{}, fmt.Errorf("longitude %g: %w", v, ErrInvalidAxis)
		}
		if v < -180 || v >= 180 {
			wrap = true
		}
	}
	if !wrap {
		return a, nil
	}
	out := Axis{Name: a.Name, Values: make([]float64, len(a.Values))}
	for i, v := range a.Values {
		out.Values[i] = WrapLongitude(v)
	}
	return out, nil
}

// sortAscending sorts the named numeric axis and fails on duplicates.
func sortAscending(f *Field, name AxisName) (*Field, error) {
	a, ok := f.Axis(name)
	if !ok {
		return f, nil
	}
	idx := rangeIdx(0, a.Len())
	sort.SliceStable(idx, func(i, j int) bool { return a.Values[idx[i]] < a.Values[idx[j]] })
	sorted := true
	for j := 1; j < len(idx); j++ {
		prev, cur := a.Values[idx[j-1]], a.Values[idx[j]]
		if cur == prev {
			return nil, fmt.Errorf("duplicate %s coordinate %g: %w", name, cur, ErrInvalidAxis)
		}
		if idx[j] < idx[j-1] {
			sorted = false
		}
	}
	if sorted {
		return f, nil
	}
	return f.Permute(name, idx)
}

func canonicalOrder(names []AxisName) []AxisName {
	out := append([]AxisName(nil), names...)
	sort.SliceStable(out, func(i, j int) bool { return axisRank[out[i]] < axisRank[out[j]] })
	return out
}

func indexOf(axes []Axis, name AxisName) int {
	for i, a := range axes {
		if a.Name == name {
			return i
		}
	}
	return -1
}
