package domain

import (
	"fmt"
	"sort"
)

// Region is a named rectangle in longitude/latitude with inclusive bounds.
type Region struct {
	Name   string  `json:"name" yaml:"name" validate:"required"`
	LonMin float64 `json:"lon_min" yaml:"lon_min" validate:"gte=-180,lte=180"`
	LonMax float64 `json:"lon_max" yaml:"lon_max" validate:"gte=-180,lte=180"`
	LatMin float64 `json:"lat_min" yaml:"lat_min" validate:"gte=-90,lte=90"`
	LatMax float64 `json:"lat_max" yaml:"lat_max" validate:"gte=-90,lte=90"`
}

// Contains reports whether the point lies inside the region bounds.
func (r Region) Contains(lon, lat float64) bool {
	return lon >= r.LonMin && lon <= r.LonMax && lat >= r.LatMin && lat <= r.LatMax
}

// Validate checks that the bounds are ordered and on the globe.
func (r Region) Validate() error {
	switch {
	case r.Name == "":
		return fmt.Errorf("region without name: %w", ErrInvalidRequest)
	case r.LatMin > r.LatMax || r.LatMin < -90 || r.LatMax > 90:
		return fmt.Errorf("region %q: latitude range [%g, %g]: %w", r.Name, r.LatMin, r.LatMax, ErrInvalidAxis)
	case r.LonMin > r.LonMax || r.LonMin < -180 || r.LonMax > 180:
		return fmt.Errorf("region %q: longitude range [%g, %g]: %w", r.Name, r.LonMin, r.LonMax, ErrInvalidAxis)
	}
	return nil
}

// Region names of the default catalog.
const (
	RegionGlobal   = "Global"
	RegionNorthern = "Northern Hemisphere"
	RegionSouthern = "Southern Hemisphere"
	RegionEurope   = "Europe"
	RegionArctic   = "Arctic"
)

// DefaultRegions follows the Copernicus ESOTC region definitions.
func DefaultRegions() []Region {
	return []Region{
		{Name: RegionGlobal, LonMin: -180, LonMax: 180, LatMin: -90, LatMax: 90},
		{Name: RegionNorthern, LonMin: -180, LonMax: 180, LatMin: 0, LatMax: 90},
		{Name: RegionSouthern, LonMin: -180, LonMax: 180, LatMin: -90, LatMax: 0},
		{Name: RegionEurope, LonMin: -25, LonMax: 40, LatMin: 34, LatMax: 72},
		{Name: RegionArctic, LonMin: -180, LonMax: 180, LatMin: 66.6, LatMax: 90},
	}
}

// Catalog is the read-only set of regions known to the process.
type Catalog struct {
	regions map[string]Region
}

// NewCatalog validates the regions and builds a catalog.
func NewCatalog(regions []Region) (*Catalog, error) {
	c := &Catalog{regions: make(map[string]Region, len(regions))}
	for _, r := range regions {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.regions[r.Name]; dup {
			return nil, fmt.Errorf("region %q defined twice: %w", r.Name, ErrInvalidRequest)
		}
		c.regions[r.Name] = r
	}
	return c, nil
}

// Lookup returns the named region.
func (c *Catalog) Lookup(name string) (Region, error) {
	r, ok := c.regions[name]
	if !ok {
		return Region{}, fmt.Errorf("%q: %w", name, ErrUnknownRegion)
	}
	return r, nil
}

// Regions returns every region sorted by name.
func (c *Catalog) Regions() []Region {
	out := make([]Region, 0, len(c.regions))
	for _, r := range c.regions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
