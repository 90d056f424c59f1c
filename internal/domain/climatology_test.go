package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstantFieldScenario(t *testing.T) {
	f := constantGrid(monthsFrom(2000, time.January, 36), []float64{-10, 10}, []float64{0, 10}, 10)

	clim, err := MonthlyClimatology(f, reference(2001, 2001))
	require.NoError(t, err)
	assert.Equal(t, []AxisName{AxisMonth, AxisLat, AxisLon}, clim.AxisNames())
	assert.Equal(t, 12*4, clim.CountValid())
	for _, v := range floatsOf(clim) {
		assert.Equal(t, 10.0, v)
	}

	anom, err := Anomalies(f, clim)
	require.NoError(t, err)
	assert.True(t, SameGrid(f, anom))
	assert.Equal(t, 36*4, anom.CountValid())
	for _, v := range floatsOf(anom) {
		assert.Equal(t, 0.0, v)
	}
}

func TestClimatologyMissingReference(t *testing.T) {
	vals := make([]float64, 24)
	for i := range vals {
		vals[i] = float64(i)
	}
	// March is missing in the only reference year.
	vals[2] = math.NaN()
	f := series(monthsFrom(2000, time.January, 24), vals...)

	clim, err := MonthlyClimatology(f, reference(2000, 2000))
	require.NoError(t, err)
	assert.False(t, clim.At(2).Valid())
	assert.Equal(t, 11, clim.CountValid())

	anom, err := Anomalies(f, clim)
	require.NoError(t, err)
	assert.False(t, anom.At(2).Valid())
	assert.False(t, anom.At(14).Valid(), "March of the next year has no baseline")
	assert.InDelta(t, 12.0, anom.At(13).Float(), 1e-12)
}

func TestClimatologyNoReferenceYears(t *testing.T) {
	f := series(monthsFrom(2000, time.January, 12), 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12)
	clim, err := MonthlyClimatology(f, reference(1991, 1995))
	require.NoError(t, err)
	assert.Zero(t, clim.CountValid())
}

func TestAnomaliesGridMismatch(t *testing.T) {
	f := constantGrid(monthsFrom(2000, time.January, 12), []float64{0}, []float64{0, 1}, 1)
	other := constantGrid(monthsFrom(2000, time.January, 12), []float64{0}, []float64{0, 2}, 1)
	clim, err := MonthlyClimatology(other, reference(2000, 2000))
	require.NoError(t, err)

	_, err = Anomalies(f, clim)
	require.ErrorIs(t, err, ErrGridMismatch)

	_, err = Anomalies(f, f)
	require.ErrorIs(t, err, ErrMissingAxis)
}

func TestAnomalyLinearity(t *testing.T) {
	times := monthsFrom(1990, time.January, 36)
	lats := []float64{-40, 0, 20}
	lons := []float64{-20, 0, 20, 40}
	vals := make([]float64, len(times)*len(lats)*len(lons))
	for i := range vals {
		month := i / (len(lats) * len(lons))
		cell := i % (len(lats) * len(lons))
		vals[i] = 15 + 8*math.Sin(float64(month)*math.Pi/6) + float64(cell)*0.7 + 0.01*float64(month)
	}
	f := MustField("tas", []Axis{TimeAxis(times...), NumericAxis(AxisLat, lats...), NumericAxis(AxisLon, lons...)}, FromFloats(vals))
	ref := reference(1990, 1991)
	region := Region{Name: "box", LonMin: -20, LonMax: 20, LatMin: -40, LatMax: 0}

	clim, err := MonthlyClimatology(f, ref)
	require.NoError(t, err)
	nativeAnom, err := Anomalies(f, clim)
	require.NoError(t, err)
	meanOfAnomalies, err := WeightedSpatialAverage(nativeAnom, region, nil)
	require.NoError(t, err)

	regional, err := WeightedSpatialAverage(f, region, nil)
	require.NoError(t, err)
	regionalClim, err := MonthlyClimatology(regional, ref)
	require.NoError(t, err)
	anomalyOfMean, err := Anomalies(regional, regionalClim)
	require.NoError(t, err)

	assert.InDeltaSlice(t, floatsOf(anomalyOfMean), floatsOf(meanOfAnomalies), 1e-9)
}

func TestDailyQuantiles(t *testing.T) {
	days := daysFrom(2001, time.January, 1, 730)
	vals := make([]float64, len(days))
	for i, d := range days {
		vals[i] = float64(d.YearDay())
	}
	f := series(days, vals...)

	got, err := DailyQuantiles(f, reference(2001, 2002), DailyQuantileWindow, []float64{0, 0.5, 1})
	require.NoError(t, err)
	assert.Equal(t, []AxisName{AxisDayOfYear, AxisQuantile}, got.AxisNames())
	assert.Equal(t, []int{366, 3}, got.Shape())

	t.Run("window centred on the day", func(t *testing.T) {
		assert.Equal(t, 85.0, got.At(99, 0).Float())
		assert.Equal(t, 100.0, got.At(99, 1).Float())
		assert.Equal(t, 115.0, got.At(99, 2).Float())
	})

	t.Run("window crosses the year boundary", func(t *testing.T) {
		assert.Equal(t, 1.0, got.At(0, 0).Float())
		assert.Equal(t, 365.0, got.At(0, 2).Float())
	})

	t.Run("day 366 needs a leap year", func(t *testing.T) {
		assert.False(t, got.At(365, 1).Valid())
	})

	t.Run("outside the reference period", func(t *testing.T) {
		q, err := DailyQuantiles(f, reference(1990, 1991), DailyQuantileWindow, []float64{0.5})
		require.NoError(t, err)
		assert.Zero(t, q.CountValid())
	})

	t.Run("rejects monthly data", func(t *testing.T) {
		_, err := DailyQuantiles(series(monthsFrom(2001, time.January, 3), 1, 2, 3), reference(2001, 2001), DailyQuantileWindow, []float64{0.5})
		require.ErrorIs(t, err, ErrNotDaily)
	})

	t.Run("rejects bad arguments", func(t *testing.T) {
		_, err := DailyQuantiles(f, reference(2001, 2002), 0, []float64{0.5})
		require.ErrorIs(t, err, ErrInvalidRequest)
		_, err = DailyQuantiles(f, reference(2001, 2002), DailyQuantileWindow, []float64{1.1})
		require.ErrorIs(t, err, ErrInvalidAxis)
	})
}

func TestPeriodLevel(t *testing.T) {
	a := series(monthsFrom(1899, time.January, 36), append(repeat(1, 24), repeat(100, 12)...)...)
	bvals := repeat(4, 12)
	bvals[5] = math.NaN()
	b := series(monthsFrom(1900, time.January, 12), bvals...)
	ensemble := MustField("ens", []Axis{TimeAxis(monthsFrom(1900, time.January, 1)...), NumericAxis(AxisRealization, 0)}, FromFloats([]float64{1000}))

	level, err := PeriodLevel([]*Field{a, b, ensemble}, PreindustrialPeriod)
	require.NoError(t, err)
	v, ok := level.Get()
	require.True(t, ok)
	assert.InDelta(t, (24.0+11*4)/35, v, 1e-12)

	level, err = PeriodLevel([]*Field{series(monthsFrom(1991, time.January, 2), 1, 2)}, PreindustrialPeriod)
	require.NoError(t, err)
	assert.False(t, level.Valid())
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
