package domain

import (
	"fmt"
	"math"
)

// AreaWeights returns a [lat][lon] field of cos(lat) area weights for the
// spatial axes of f.
func AreaWeights(f *Field) (*Field, error) {
	lat, lon, err := spatialAxes(f)
	if err != nil {
		return nil, fmt.Errorf("area weights: %w", err)
	}
	data := make([]Value, 0, lat.Len()*lon.Len())
	for _, phi := range lat.Values {
		w := math.Max(0, math.Cos(phi*math.Pi/180))
		for range lon.Values {
			data = append(data, Some(w))
		}
	}
	return newField("weights", "", []Axis{lat, lon}, data), nil
}

// BuildWeights composes the area weights of target with an optional mask
// (land fraction, 0/1 mask or explicit weights). Missing mask cells count as 0
// so they drop out of any average. The mask must cover exactly the target's
// lat/lon coordinates; any other mask axis must be a singleton.
func BuildWeights(target, mask *Field) (*Field, error) {
	area, err := AreaWeights(target)
	if err != nil {
		return nil, err
	}
	if mask == nil {
		return area, nil
	}
	m, err := squeezeToSpatial(mask)
	if err != nil {
		return nil, fmt.Errorf("weights mask %q: %w", mask.Name(), err)
	}
	if !SameGrid(m, area) {
		return nil, fmt.Errorf("weights mask %q does not match %q grid: %w", mask.Name(), target.Name(), ErrGridMismatch)
	}
	out := make([]Value, len(area.data))
	for i, a := range area.data {
		mv, ok := m.data[i].Get()
		if !ok {
			mv = 0
		}
		if mv < 0 {
			lat, lon := i/len(area.axes[1].Values), i%len(area.axes[1].Values)
			return nil, fmt.Errorf("weights mask %q: negative value %g at lat=%g lon=%g: %w",
				mask.Name(), mv, area.axes[0].Values[lat], area.axes[1].Values[lon], ErrInvalidWeights)
		}
		out[i] = a.Scale(mv)
	}
	return area.derive(area.cloneAxes(), out), nil
}

// squeezeToSpatial drops non-spatial axes along which the field does not
// change, such as the repeated time steps of a monthly land/sea mask, and
// orders the result [lat][lon].
func squeezeToSpatial(f *Field) (*Field, error) {
	g := f
	for _, a := range f.axes {
		if a.Name == AxisLat || a.Name == AxisLon {
			continue
		}
		if !g.constantAlong(g.axisIndex(a.Name)) {
			return nil, fmt.Errorf("mask varies along %q: %w", a.Name, ErrGridMismatch)
		}
		var err error
		if g, err = g.SelectIndex(a.Name, 0); err != nil {
			return nil, err
		}
	}
	if _, _, err := spatialAxes(g); err != nil {
		return nil, err
	}
	return g.Transpose([]AxisName{AxisLat, AxisLon})
}

func spatialAxes(f *Field) (Axis, Axis, error) {
	lat, ok := f.Axis(AxisLat)
	if !ok {
		return Axis{}, Axis{}, fmt.Errorf("%q has no lat axis: %w", f.Name(), ErrMissingAxis)
	}
	lon, ok := f.Axis(AxisLon)
	if !ok {
		return Axis{}, Axis{}, fmt.Errorf("%q has no lon axis: %w", f.Name(), ErrMissingAxis)
	}
	return lat, lon, nil
}

// constantAlong reports whether every step of axis k holds the same cells.
func (f *Field) constantAlong(k int) bool {
	outer, n, inner := f.split(k)
	for o := 0; o < outer; o++ {
		first := f.data[o*n*inner : (o*n+1)*inner]
		for i := 1; i < n; i++ {
			step := f.data[(o*n+i)*inner : (o*n+i+1)*inner]
			for c := range first {
				if step[c] != first[c] {
					return false
				}
			}
		}
	}
	return true
}
