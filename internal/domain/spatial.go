package domain

import (
	"fmt"
)

// SelectRegion keeps the grid cells inside the region bounds, inclusive.
func SelectRegion(f *Field, r Region) (*Field, error) {
	lat, lon, err := spatialAxes(f)
	if err != nil {
		return nil, fmt.Errorf("select region %q: %w", r.Name, err)
	}
	var latIdx, lonIdx []int
	for i, v := range lat.Values {
		if v >= r.LatMin && v <= r.LatMax {
			latIdx = append(latIdx, i)
		}
	}
	for i, v := range lon.Values {
		if v >= r.LonMin && v <= r.LonMax {
			lonIdx = append(lonIdx, i)
		}
	}
	g := f.gather(f.axisIndex(AxisLat), latIdx)
	return g.gather(g.axisIndex(AxisLon), lonIdx), nil
}

// WeightedSpatialAverage selects the region from the field and the optional
// mask, then reduces lat/lon with cos(lat) x mask weights.
func WeightedSpatialAverage(f *Field, r Region, mask *Field) (*Field, error) {
	sel, err := SelectRegion(f, r)
	if err != nil {
		return nil, err
	}
	var m *Field
	if mask != nil {
		if m, err = SelectRegion(mask, r); err != nil {
			return nil, err
		}
	}
	w, err := BuildWeights(sel, m)
	if err != nil {
		return nil, err
	}
	return SpatialMean(sel, w)
}

// SpatialMean reduces the lat/lon axes with exactly the given [lat][lon]
// weights. Missing cells are excluded from both numerator and denominator; a
// zero weight sum yields no data.
func SpatialMean(f *Field, w *Field) (*Field, error) {
	lat, ok := f.Axis(AxisLat)
	if !ok {
		return nil, fmt.Errorf("spatial mean %q: %w", f.Name(), ErrMissingAxis)
	}
	p, err := SpatialPartials(f, w, 0, lat.Len())
	if err != nil {
		return nil, err
	}
	return FinishSpatialMean(f, p)
}

// Partial holds the weighted sums of one latitude band, kept per latitude row
// so that merging bands in order reproduces the single-pass sums exactly.
// Entries are indexed [outer][row].
type Partial struct {
	Outer  int
	Rows   int
	Sum    []float64
	Weight []float64
	Count  []int
}

// SpatialPartials computes the partial sums of latitude rows [latLo, latHi).
func SpatialPartials(f, w *Field, latLo, latHi int) (Partial, error) {
	g, err := spatialLast(f)
	if err != nil {
		return Partial{}, fmt.Errorf("spatial mean %q: %w", f.Name(), err)
	}
	ws, err := squeezeToSpatial(w)
	if err != nil {
		return Partial{}, fmt.Errorf("spatial mean %q weights: %w", f.Name(), err)
	}
	k := len(g.axes)
	if !g.axes[k-2].Equal(ws.axes[0]) || !g.axes[k-1].Equal(ws.axes[1]) {
		return Partial{}, fmt.Errorf("spatial mean %q: weights grid: %w", f.Name(), ErrGridMismatch)
	}
	nlat, nlon := g.axes[k-2].Len(), g.axes[k-1].Len()
	if latLo < 0 || latHi > nlat || latLo > latHi {
		return Partial{}, fmt.Errorf("spatial mean %q: band [%d:%d] of %d rows: %w", f.Name(), latLo, latHi, nlat, ErrInvalidAxis)
	}
	weights := make([]float64, len(ws.data))
	for i, v := range ws.data {
		x, ok := v.Get()
		if ok && x < 0 {
			return Partial{}, fmt.Errorf("spatial mean %q: negative weight %g: %w", f.Name(), x, ErrInvalidWeights)
		}
		weights[i] = x
	}

	outer := 1
	if nlat*nlon > 0 {
		outer = len(g.data) / (nlat * nlon)
	} else {
		for _, a := range g.axes[:k-2] {
			outer *= a.Len()
		}
	}
	rows := latHi - latLo
	p := Partial{
		Outer:  outer,
		Rows:   rows,
		Sum:    make([]float64, outer*rows),
		Weight: make([]float64, outer*rows),
		Count:  make([]int, outer*rows),
	}
	for o := 0; o < outer; o++ {
		base := o * nlat * nlon
		for r := 0; r < rows; r++ {
			row := latLo + r
			var sum, wsum float64
			var n int
			for j := 0; j < nlon; j++ {
				wt := weights[row*nlon+j]
				v, ok := g.data[base+row*nlon+j].Get()
				if !ok || wt == 0 {
					continue
				}
				sum += v * wt
				wsum += wt
				n++
			}
			p.Sum[o*rows+r] = sum
			p.Weight[o*rows+r] = wsum
			p.Count[o*rows+r] = n
		}
	}
	return p, nil
}

// MergePartials joins consecutive latitude bands, in the order given.
func MergePartials(parts ...Partial) Partial {
	if len(parts) == 0 {
		return Partial{Outer: 1}
	}
	outer := parts[0].Outer
	rows := 0
	for _, p := range parts {
		rows += p.Rows
	}
	out := Partial{
		Outer:  outer,
		Rows:   rows,
		Sum:    make([]float64, 0, outer*rows),
		Weight: make([]float64, 0, outer*rows),
		Count:  make([]int, 0, outer*rows),
	}
	for o := 0; o < outer; o++ {
		for _, p := range parts {
			lo, hi := o*p.Rows, (o+1)*p.Rows
			out.Sum = append(out.Sum, p.Sum[lo:hi]...)
			out.Weight = append(out.Weight, p.Weight[lo:hi]...)
			out.Count = append(out.Count, p.Count[lo:hi]...)
		}
	}
	return out
}

// FinishSpatialMean turns merged partials into the reduced field, which keeps
// every axis of f except lat and lon.
func FinishSpatialMean(f *Field, p Partial) (*Field, error) {
	g, err := spatialLast(f)
	if err != nil {
		return nil, fmt.Errorf("spatial mean %q: %w", f.Name(), err)
	}
	k := len(g.axes)
	if p.Rows != g.axes[k-2].Len() {
		return nil, fmt.Errorf("spatial mean %q: partials cover %d of %d rows: %w", f.Name(), p.Rows, g.axes[k-2].Len(), ErrInvalidAxis)
	}
	data := make([]Value, p.Outer)
	for o := range data {
		var sum, wsum float64
		var n int
		for r := 0; r < p.Rows; r++ {
			sum += p.Sum[o*p.Rows+r]
			wsum += p.Weight[o*p.Rows+r]
			n += p.Count[o*p.Rows+r]
		}
		if n == 0 || wsum == 0 {
			continue
		}
		data[o] = Some(sum / wsum)
	}
	axes := make([]Axis, k-2)
	for i := range axes {
		axes[i] = g.axes[i].clone()
	}
	return g.derive(axes, data), nil
}

// spatialLast moves lat and lon to the end, keeping the other axes in order.
func spatialLast(f *Field) (*Field, error) {
	if _, _, err := spatialAxes(f); err != nil {
		return nil, err
	}
	names := f.AxisNames()
	k := len(names)
	if names[k-2] == AxisLat && names[k-1] == AxisLon {
		return f, nil
	}
	order := make([]AxisName, 0, k)
	for _, n := range names {
		if n != AxisLat && n != AxisLon {
			order = append(order, n)
		}
	}
	return f.Transpose(append(order, AxisLat, AxisLon))
}
