package main

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/couchcryptid/temperature-anomaly-etl/internal/domain"
)

const (
	warmingPerYear = 0.02 // K
	freezing       = 273.15
)

// grid describes the synthetic dataset. Coordinates follow reanalysis
// conventions: latitude descending, longitude in [0, 360), timestamps in the
// middle of each month.
type grid struct {
	start   int
	years   int
	res     float64
	missing float64
	seed    uint64
}

func (g grid) lats() []float64 {
	var out []float64
	for lat := 90 - g.res/2; lat > -90; lat -= g.res {
		out = append(out, lat)
	}
	return out
}

func (g grid) lons() []float64 {
	var out []float64
	for lon := 0.0; lon < 360; lon += g.res {
		out = append(out, lon)
	}
	return out
}

func (g grid) times() []time.Time {
	out := make([]time.Time, 0, 12*g.years)
	for y := g.start; y < g.start+g.years; y++ {
		for m := time.January; m <= time.December; m++ {
			out = append(out, time.Date(y, m, 15, 0, 0, 0, 0, time.UTC))
		}
	}
	return out
}

// land is a smooth pattern of continents.
func land(lat, lon float64) bool {
	r := math.Pi / 180
	return math.Sin(3*lon*r)*math.Cos(2*lat*r)+0.3*math.Sin(lat*r) > 0.2
}

// temperature in Kelvin for a cell and month; years counts from the start.
func temperature(lat, lon float64, month time.Month, years float64) float64 {
	r := math.Pi / 180
	base := freezing - 20 + 45*math.Cos(lat*r)
	amplitude := 10 * math.Sin(lat*r)
	if land(lat, lon) {
		amplitude *= 1.8
	}
	season := -math.Cos(2 * math.Pi * float64(month-1) / 12)
	return base + amplitude*season + warmingPerYear*years
}

func (g grid) reanalysis() (*domain.Field, error) {
	rng := rand.New(rand.NewPCG(g.seed, 1))
	lats, lons, times := g.lats(), g.lons(), g.times()
	data := make([]domain.Value, 0, len(times)*len(lats)*len(lons))
	for ti, t := range times {
		years := float64(ti) / 12
		for _, lat := range lats {
			for _, lon := range lons {
				if rng.Float64() < g.missing {
					data = append(data, domain.None())
					continue
				}
				noise := rng.NormFloat64() * 0.8
				data = append(data, domain.Some(temperature(lat, lon, t.Month(), years)+noise))
			}
		}
	}
	f, err := domain.NewField("t2m", []domain.Axis{
		named(domain.TimeAxis(times...), "valid_time"),
		domain.NumericAxis("latitude", lats...),
		domain.NumericAxis("longitude", lons...),
	}, data)
	if err != nil {
		return nil, err
	}
	return f.WithUnits("K"), nil
}

func (g grid) landMask() (*domain.Field, error) {
	lats, lons := g.lats(), g.lons()
	data := make([]domain.Value, 0, len(lats)*len(lons))
	for _, lat := range lats {
		for _, lon := range lons {
			v := 0.0
			if land(lat, lon) {
				v = 1
			}
			data = append(data, domain.Some(v))
		}
	}
	return domain.NewField("lsm", []domain.Axis{
		domain.NumericAxis("latitude", lats...),
		domain.NumericAxis("longitude", lons...),
	}, data)
}

// ensemble generates a coarser model ensemble on the same calendar where each
// member warms at its own rate.
func (g grid) ensemble(members int) (*domain.Field, error) {
	coarse := g
	coarse.res = math.Min(2*g.res, 90)
	rng := rand.New(rand.NewPCG(g.seed, 2))
	lats, lons, times := coarse.lats(), coarse.lons(), coarse.times()
	ids := make([]float64, members)
	data := make([]domain.Value, 0, len(times)*members*len(lats)*len(lons))
	for ti, t := range times {
		years := float64(ti) / 12
		for m := range members {
			ids[m] = float64(m)
			rate := 1 + 0.25*float64(m)
			for _, lat := range lats {
				for _, lon := range lons {
					v := temperature(lat, lon, t.Month(), rate*years) + rng.NormFloat64()*0.5
					data = append(data, domain.Some(v))
				}
			}
		}
	}
	f, err := domain.NewField("tas", []domain.Axis{
		domain.TimeAxis(times...),
		domain.NumericAxis("member", ids...),
		domain.NumericAxis("lat", lats...),
		domain.NumericAxis("lon", lons...),
	}, data)
	if err != nil {
		return nil, err
	}
	return f.WithUnits("K"), nil
}

func named(a domain.Axis, name string) domain.Axis {
	a.Name = domain.AxisName(name)
	return a
}
