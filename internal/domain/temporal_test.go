package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnualWeightCompleteness(t *testing.T) {
	for _, year := range []int{2019, 2020, 1900, 2000} {
		var sum float64
		for m := time.January; m <= time.December; m++ {
			sum += float64(DaysInMonth(time.Date(year, m, 1, 0, 0, 0, 0, time.UTC))) / float64(DaysInYear(year))
		}
		assert.InDelta(t, 1.0, sum, 1e-6, "year %d", year)
	}
}

func TestAnnualMean(t *testing.T) {
	t.Run("alternating months give the day-weighted blend", func(t *testing.T) {
		vals := make([]float64, 12)
		for i := range vals {
			if (i+1)%2 == 0 {
				vals[i] = 20
			}
		}
		got, err := AnnualMean(series(monthsFrom(2023, time.January, 12), vals...))
		require.NoError(t, err)

		// Feb 28 + Apr, Jun 30 + Aug, Oct, Dec 31 = 181 days at 20.0.
		want := 20.0 * 181 / 365
		v, ok := got.At(0, 0).Get()
		require.True(t, ok)
		assert.InDelta(t, want, v, 1e-9)
		assert.NotEqual(t, 10.0, v)
	})

	t.Run("axes are year and month", func(t *testing.T) {
		f := constantGrid(monthsFrom(2001, time.January, 24), []float64{0}, []float64{0, 1}, 3)
		got, err := AnnualMean(f)
		require.NoError(t, err)
		assert.Equal(t, []AxisName{AxisYear, AxisMonth, AxisLat, AxisLon}, got.AxisNames())
		year, _ := got.Axis(AxisYear)
		month, _ := got.Axis(AxisMonth)
		assert.Equal(t, []float64{2001, 2002}, year.Values)
		assert.Equal(t, []float64{1}, month.Values)
		assert.InDeltaSlice(t, []float64{3, 3, 3, 3}, floatsOf(got), 1e-12)

		y2002, err := got.SelectYear(2002)
		require.NoError(t, err)
		jan, err := y2002.SelectCoord(AxisMonth, 1)
		require.NoError(t, err)
		assert.Equal(t, []AxisName{AxisLat, AxisLon}, jan.AxisNames())
	})

	t.Run("missing month is no data", func(t *testing.T) {
		vals := make([]float64, 24)
		for i := range vals {
			vals[i] = 1
		}
		vals[17] = math.NaN()
		got, err := AnnualMean(series(monthsFrom(2001, time.January, 24), vals...))
		require.NoError(t, err)
		assert.True(t, got.At(0, 0).Valid())
		assert.False(t, got.At(1, 0).Valid())
	})

	t.Run("partial year is no data", func(t *testing.T) {
		got, err := AnnualMean(series(monthsFrom(2001, time.March, 12), 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1))
		require.NoError(t, err)
		assert.False(t, got.At(0, 0).Valid())
		assert.False(t, got.At(1, 0).Valid())
	})

	t.Run("rejects non month-start time", func(t *testing.T) {
		_, err := AnnualMean(series(daysFrom(2001, time.January, 1, 2), 1, 2))
		require.ErrorIs(t, err, ErrNotMonthly)
	})
}

func TestAnnualMean_ScalesLinearly(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	grid := func(years int) *Field {
		lats := make([]float64, 10)
		for i := range lats {
			lats[i] = float64(i)
		}
		lons := make([]float64, 20)
		for i := range lons {
			lons[i] = float64(i)
		}
		return constantGrid(monthsFrom(1850, time.January, 12*years), lats, lons, 14)
	}
	fastest := func(f *Field) time.Duration {
		best := time.Duration(math.MaxInt64)
		for range 3 {
			start := time.Now()
			got, err := AnnualMean(f)
			require.NoError(t, err)
			require.Equal(t, f.Len()/12, got.CountValid())
			best = min(best, time.Since(start))
		}
		return best
	}

	short, long := grid(50), grid(400)
	base := max(fastest(short), time.Millisecond)
	// Eight times the record length; a per-year rescan of the time axis
	// would cost about 64 times as much.
	assert.Less(t, fastest(long), 24*base)
}

func BenchmarkAnnualMean(b *testing.B) {
	f := constantGrid(monthsFrom(1850, time.January, 12*174), []float64{40, 45, 50, 55}, []float64{0, 5, 10, 15, 20}, 14)
	b.ResetTimer()
	for range b.N {
		if _, err := AnnualMean(f); err != nil {
			b.Fatal(err)
		}
	}
}

func TestSeasonalMean(t *testing.T) {
	// Dec 2000 .. Feb 2002: 15 months with value = month number.
	times := monthsFrom(2000, time.December, 15)
	vals := make([]float64, len(times))
	for i, ts := range times {
		vals[i] = float64(ts.Month())
	}
	got, err := SeasonalMean(series(times, vals...))
	require.NoError(t, err)
	assert.Equal(t, []AxisName{AxisYear, AxisSeason}, got.AxisNames())
	year, _ := got.Axis(AxisYear)
	assert.Equal(t, []float64{2001, 2002}, year.Values)

	season := func(t *testing.T, y int, label string) Value {
		t.Helper()
		f, err := got.SelectYear(y)
		require.NoError(t, err)
		s, err := f.SelectLabel(AxisSeason, label)
		require.NoError(t, err)
		return s.At()
	}

	t.Run("DJF belongs to January's year", func(t *testing.T) {
		want := (12*31 + 1*31 + 2*28) / float64(31+31+28)
		assert.InDelta(t, want, season(t, 2001, "DJF").Float(), 1e-12)
	})

	t.Run("complete seasons", func(t *testing.T) {
		assert.InDelta(t, (3*31+4*30+5*31)/92.0, season(t, 2001, "MAM").Float(), 1e-12)
		assert.InDelta(t, (9*30+10*31+11*30)/91.0, season(t, 2001, "SON").Float(), 1e-12)
	})

	t.Run("edge seasons", func(t *testing.T) {
		// Dec 2001 + Jan, Feb 2002 are present.
		assert.True(t, season(t, 2002, "DJF").Valid())
		assert.False(t, season(t, 2002, "MAM").Valid())
		assert.False(t, season(t, 2002, "SON").Valid())
	})

	t.Run("leading partial DJF is no data", func(t *testing.T) {
		got, err := SeasonalMean(series(monthsFrom(2001, time.January, 12), 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12))
		require.NoError(t, err)
		first, err := got.SelectYear(2001)
		require.NoError(t, err)
		djf, err := first.SelectLabel(AxisSeason, "DJF")
		require.NoError(t, err)
		assert.False(t, djf.At().Valid())
	})
}

func TestToYearMonth(t *testing.T) {
	times := []time.Time{
		time.Date(2000, 11, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2001, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	got, err := ToYearMonth(series(times, 4, 8))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 12}, got.Shape())
	assert.Equal(t, 4.0, got.At(0, 10).Float())
	assert.Equal(t, 8.0, got.At(1, 1).Float())
	assert.Equal(t, 2, got.CountValid())
}

func TestMonthlyMean(t *testing.T) {
	// All of February 2020 and the first three days of March.
	days := daysFrom(2020, time.February, 1, 32)
	vals := make([]float64, len(days))
	for i := range vals {
		vals[i] = float64(i)
	}
	got, err := MonthlyMean(series(days, vals...))
	require.NoError(t, err)

	axis, _ := got.Axis(AxisTime)
	assert.Equal(t, monthsFrom(2020, time.February, 2), axis.Times)
	assert.InDelta(t, 14.0, got.At(0).Float(), 1e-12)
	assert.False(t, got.At(1).Valid(), "partial March")

	t.Run("missing day", func(t *testing.T) {
		vals[3] = math.NaN()
		got, err := MonthlyMean(series(days, vals...))
		require.NoError(t, err)
		assert.False(t, got.At(0).Valid())
	})
}

func TestRollingMean(t *testing.T) {
	f := series(monthsFrom(2000, time.January, 6), 1, 2, 3, 4, math.NaN(), 6)

	got, err := RollingMean(f, 2)
	require.NoError(t, err)
	// label i covers [i-1, i+1)
	assert.False(t, got.At(0).Valid())
	assert.InDelta(t, 1.5, got.At(1).Float(), 1e-12)
	assert.InDelta(t, 3.5, got.At(3).Float(), 1e-12)
	assert.False(t, got.At(4).Valid())
	assert.False(t, got.At(5).Valid())

	got, err = RollingMean(f, 3)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got.At(1).Float(), 1e-12)
	assert.False(t, got.At(5).Valid())

	_, err = RollingMean(f, 0)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestDayWeightedMean(t *testing.T) {
	times := monthsFrom(2019, time.December, 3)
	got, err := DayWeightedMean(series(times, 100, 1, 2), reference(2020, 2020))
	require.NoError(t, err)
	assert.Empty(t, got.AxisNames())
	assert.InDelta(t, (31*1+29*2)/60.0, got.At().Float(), 1e-12)
}
