package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformWeights(f *Field, w float64) *Field {
	lat, _ := f.Axis(AxisLat)
	lon, _ := f.Axis(AxisLon)
	return Fill("weights", []Axis{lat, lon}, Some(w))
}

func TestSpatialMeanUniformWeights(t *testing.T) {
	f := MustField("tas",
		[]Axis{TimeAxis(monthsFrom(2000, 1, 2)...), NumericAxis(AxisLat, -45, 45), NumericAxis(AxisLon, 0, 90, 180)},
		FromFloats([]float64{1, 2, 3, 4, 5, 6, 10, 20, 30, 40, 50, 60}))

	got, err := SpatialMean(f, uniformWeights(f, 2.5))
	require.NoError(t, err)

	assert.Equal(t, []AxisName{AxisTime}, got.AxisNames())
	assert.InDeltaSlice(t, []float64{3.5, 35}, floatsOf(got), 1e-12)
}

func TestSpatialMeanMissingExclusion(t *testing.T) {
	for _, missingWeight := range []float64{0, 1, 1000} {
		f := MustField("tas",
			[]Axis{NumericAxis(AxisLat, 0), NumericAxis(AxisLon, 0, 1)},
			[]Value{Some(7.25), None()})
		w := MustField("weights",
			[]Axis{NumericAxis(AxisLat, 0), NumericAxis(AxisLon, 0, 1)},
			FromFloats([]float64{0.3, missingWeight}))

		got, err := SpatialMean(f, w)
		require.NoError(t, err)
		v, ok := got.At().Get()
		require.True(t, ok)
		assert.Equal(t, 7.25, v, "missing cell weight %g", missingWeight)
	}
}

func TestSpatialMeanZeroWeightSum(t *testing.T) {
	f := constantGrid(monthsFrom(2000, 1, 1), []float64{0, 1}, []float64{0, 1}, 5)
	got, err := SpatialMean(f, uniformWeights(f, 0))
	require.NoError(t, err)
	assert.False(t, got.At(0).Valid())
}

func TestSpatialMeanWeightErrors(t *testing.T) {
	f := constantGrid(monthsFrom(2000, 1, 1), []float64{0, 1}, []float64{0, 1}, 5)

	t.Run("grid mismatch", func(t *testing.T) {
		w := Fill("weights", []Axis{NumericAxis(AxisLat, 0, 2), NumericAxis(AxisLon, 0, 1)}, Some(1))
		_, err := SpatialMean(f, w)
		require.ErrorIs(t, err, ErrGridMismatch)
	})

	t.Run("negative weight", func(t *testing.T) {
		_, err := SpatialMean(f, uniformWeights(f, -1))
		require.ErrorIs(t, err, ErrInvalidWeights)
	})

	t.Run("no spatial axes", func(t *testing.T) {
		_, err := SpatialMean(series(monthsFrom(2000, 1, 1), 1), uniformWeights(f, 1))
		require.ErrorIs(t, err, ErrMissingAxis)
	})
}

func TestWeightedSpatialAverage(t *testing.T) {
	lats := []float64{-60, 0, 60}
	lons := []float64{-30, 0, 30}
	vals := []float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}
	f := MustField("tas", []Axis{NumericAxis(AxisLat, lats...), NumericAxis(AxisLon, lons...)}, FromFloats(vals))

	t.Run("cos-lat weights", func(t *testing.T) {
		got, err := WeightedSpatialAverage(f, DefaultRegions()[0], nil)
		require.NoError(t, err)
		c := math.Cos(math.Pi / 3)
		want := (c*(1+2+3) + (4 + 5 + 6) + c*(7+8+9)) / (3*c + 3 + 3*c)
		assert.InDelta(t, want, got.At().Float(), 1e-12)
	})

	t.Run("inclusive region bounds", func(t *testing.T) {
		r := Region{Name: "box", LonMin: 0, LonMax: 30, LatMin: 0, LatMax: 0}
		got, err := WeightedSpatialAverage(f, r, nil)
		require.NoError(t, err)
		assert.InDelta(t, 5.5, got.At().Float(), 1e-12)
	})

	t.Run("land mask", func(t *testing.T) {
		mask := MustField("lsm",
			[]Axis{TimeAxis(monthsFrom(2000, 1, 1)...), NumericAxis(AxisLat, lats...), NumericAxis(AxisLon, lons...)},
			[]Value{
				Some(0), Some(0), Some(0),
				Some(1), None(), Some(0.5),
				Some(0), Some(0), Some(0),
			})
		got, err := WeightedSpatialAverage(f, DefaultRegions()[0], mask)
		require.NoError(t, err)
		assert.InDelta(t, (4+0.5*6)/1.5, got.At().Float(), 1e-12)
	})

	t.Run("all-ocean region is no data", func(t *testing.T) {
		mask := Fill("lsm", []Axis{NumericAxis(AxisLat, lats...), NumericAxis(AxisLon, lons...)}, Some(0))
		got, err := WeightedSpatialAverage(f, DefaultRegions()[0], mask)
		require.NoError(t, err)
		assert.False(t, got.At().Valid())
	})

	t.Run("empty selection is no data", func(t *testing.T) {
		r := Region{Name: "gap", LonMin: 100, LonMax: 120, LatMin: 10, LatMax: 20}
		got, err := WeightedSpatialAverage(f, r, nil)
		require.NoError(t, err)
		assert.False(t, got.At().Valid())
	})
}

func TestBuildWeightsNegativeMask(t *testing.T) {
	f := constantGrid(monthsFrom(2000, 1, 1), []float64{0}, []float64{0, 1}, 1)
	mask := MustField("lsm", []Axis{NumericAxis(AxisLat, 0), NumericAxis(AxisLon, 0, 1)}, FromFloats([]float64{1, -0.5}))
	_, err := BuildWeights(f, mask)
	require.ErrorIs(t, err, ErrInvalidWeights)
}

func TestBuildWeightsTimeRepeatedMask(t *testing.T) {
	f := constantGrid(monthsFrom(2000, 1, 3), []float64{0}, []float64{0, 1}, 1)
	axes := []Axis{TimeAxis(monthsFrom(2000, 1, 3)...), NumericAxis(AxisLat, 0), NumericAxis(AxisLon, 0, 1)}

	t.Run("identical steps collapse", func(t *testing.T) {
		mask := MustField("lsm", axes, FromFloats([]float64{1, 0.5, 1, 0.5, 1, 0.5}))
		w, err := BuildWeights(f, mask)
		require.NoError(t, err)
		assert.Equal(t, []AxisName{AxisLat, AxisLon}, w.AxisNames())
		assert.InDeltaSlice(t, []float64{1, 0.5}, floatsOf(w), 1e-12)
	})

	t.Run("varying steps rejected", func(t *testing.T) {
		mask := MustField("lsm", axes, FromFloats([]float64{1, 0.5, 1, 0.5, 0, 0.5}))
		_, err := BuildWeights(f, mask)
		require.ErrorIs(t, err, ErrGridMismatch)
	})
}

func TestSpatialPartialsMergeExactly(t *testing.T) {
	lats := []float64{-75, -45, -15, 15, 45, 75}
	lons := []float64{0, 60, 120, 180}
	times := monthsFrom(2000, 1, 3)
	vals := make([]Value, len(times)*len(lats)*len(lons))
	for i := range vals {
		if i%7 == 3 {
			continue
		}
		vals[i] = Some(math.Sin(float64(i)) * 13.7)
	}
	f := MustField("tas", []Axis{TimeAxis(times...), NumericAxis(AxisLat, lats...), NumericAxis(AxisLon, lons...)}, vals)
	w, err := AreaWeights(f)
	require.NoError(t, err)

	whole, err := SpatialMean(f, w)
	require.NoError(t, err)

	var parts []Partial
	for _, band := range [][2]int{{0, 1}, {1, 4}, {4, 6}} {
		p, err := SpatialPartials(f, w, band[0], band[1])
		require.NoError(t, err)
		parts = append(parts, p)
	}
	chunked, err := FinishSpatialMean(f, MergePartials(parts...))
	require.NoError(t, err)

	assert.Equal(t, floatsOf(whole), floatsOf(chunked))
}

func TestSelectRegion(t *testing.T) {
	f := constantGrid(monthsFrom(2000, time.January, 1), []float64{30, 40, 50, 80}, []float64{-30, -25, 0, 40, 41}, 1)
	europe, err := NewCatalog(DefaultRegions())
	require.NoError(t, err)
	r, err := europe.Lookup(RegionEurope)
	require.NoError(t, err)

	g, err := SelectRegion(f, r)
	require.NoError(t, err)
	lat, _ := g.Axis(AxisLat)
	lon, _ := g.Axis(AxisLon)
	assert.Equal(t, []float64{40, 50}, lat.Values)
	assert.Equal(t, []float64{-25, 0, 40}, lon.Values)
}
