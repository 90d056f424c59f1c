package domain

import (
	"fmt"
	"sort"
)

// Regrid bilinearly interpolates the lat/lon plane of f onto the lat/lon
// coordinates of like. Both spatial axes of f must be ascending, as Normalize
// leaves them. Target points outside the source grid, or whose surrounding
// source cells are not all defined, are no data. The other axes of f are kept.
func Regrid(f, like *Field) (*Field, error) {
	lat, lon, err := spatialAxes(like)
	if err != nil {
		return nil, fmt.Errorf("regrid %q: target: %w", f.Name(), err)
	}
	g, err := spatialLast(f)
	if err != nil {
		return nil, fmt.Errorf("regrid %q: %w", f.Name(), err)
	}
	srcLat, srcLon := g.axes[len(g.axes)-2], g.axes[len(g.axes)-1]
	if srcLat.Equal(lat) && srcLon.Equal(lon) {
		return g, nil
	}

	ys := make([]bracket, lat.Len())
	for i, y := range lat.Values {
		ys[i] = bracketOf(srcLat.Values, y)
	}
	xs := make([]bracket, lon.Len())
	for i, x := range lon.Values {
		xs[i] = bracketOf(srcLon.Values, x)
	}

	plane := srcLat.Len() * srcLon.Len()
	outer := 1
	if plane > 0 {
		outer = len(g.data) / plane
	}
	nx := srcLon.Len()
	data := make([]Value, 0, outer*len(ys)*len(xs))
	for o := 0; o < outer; o++ {
		src := g.data[o*plane : (o+1)*plane]
		for _, y := range ys {
			for _, x := range xs {
				if !y.ok || !x.ok {
					data = append(data, None())
					continue
				}
				v00, ok00 := src[y.lo*nx+x.lo].Get()
				v01, ok01 := src[y.lo*nx+x.hi].Get()
				v10, ok10 := src[y.hi*nx+x.lo].Get()
				v11, ok11 := src[y.hi*nx+x.hi].Get()
				if !ok00 || !ok01 || !ok10 || !ok11 {
					data = append(data, None())
					continue
				}
				south := v00 + x.w*(v01-v00)
				north := v10 + x.w*(v11-v10)
				data = append(data, Some(south+y.w*(north-south)))
			}
		}
	}
	axes := g.cloneAxes()
	axes[len(axes)-2], axes[len(axes)-1] = lat.clone(), lon.clone()
	return g.derive(axes, data), nil
}

// bracket locates a coordinate between two neighbouring source coordinates.
type bracket struct {
	lo, hi int
	w      float64 // weight of hi
	ok     bool
}

func bracketOf(coords []float64, x float64) bracket {
	n := len(coords)
	if n == 0 || x < coords[0] || x > coords[n-1] {
		return bracket{}
	}
	i := sort.SearchFloat64s(coords, x)
	if coords[i] == x {
		return bracket{lo: i, hi: i, ok: true}
	}
	return bracket{lo: i - 1, hi: i, w: (x - coords[i-1]) / (coords[i] - coords[i-1]), ok: true}
}
