package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRequestID = "req-42"

func TestParseRequest(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		raw := RawRequest{
			Key:   []byte(testRequestID),
			Value: []byte(`{"region":"Europe","sources":[{"name":"era5","variable":"t2m","mask":"lsm","offset":-273.15}]}`),
		}
		req, err := ParseRequest(raw)
		require.NoError(t, err)
		assert.Equal(t, testRequestID, req.ID)
		assert.Equal(t, Monthly, req.Resolution)
		assert.Equal(t, KindSeries, req.Kind)
		require.Len(t, req.Sources, 1)
		assert.Equal(t, "lsm", req.Sources[0].Mask)
		assert.Equal(t, -273.15, req.Sources[0].Offset)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := ParseRequest(RawRequest{Value: []byte("{nope")})
		require.Error(t, err)
	})

	t.Run("collects every problem", func(t *testing.T) {
		raw := RawRequest{Value: []byte(`{"id":"x","resolution":"weekly","kind":"map","smoothing":-1,
			"sources":[{"name":"a","variable":"t"},{"name":"a","variable":"t"},{"name":""}]}`)}
		_, err := ParseRequest(raw)
		require.ErrorIs(t, err, ErrInvalidRequest)
		for _, want := range []string{"missing region", "weekly", "map", "negative smoothing", `"a" listed twice`, "needs name"} {
			assert.Contains(t, err.Error(), want)
		}
	})
}

func TestParseRequest_RejectsPathNames(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"parent source", `{"name":"../../tmp/evil","variable":"t2m"}`},
		{"nested source", `{"name":"era5/monthly","variable":"t2m"}`},
		{"windows separator", `{"name":"era5\\monthly","variable":"t2m"}`},
		{"dot source", `{"name":".","variable":"t2m"}`},
		{"variable", `{"name":"era5","variable":"../t2m"}`},
		{"mask", `{"name":"era5","variable":"t2m","mask":"/etc/lsm"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := RawRequest{Value: []byte(`{"id":"x","region":"Europe","sources":[` + tt.body + `]}`)}
			_, err := ParseRequest(raw)
			require.ErrorIs(t, err, ErrInvalidRequest)
			assert.Contains(t, err.Error(), "invalid name")
		})
	}
}

func TestValidName(t *testing.T) {
	for _, ok := range []string{"era5", "cmip6_tas", "HadCRUT.5.0", "t2m"} {
		assert.True(t, ValidName(ok), ok)
	}
	for _, bad := range []string{"", ".", "..", "a/b", `a\b`, "x..y", "nul\x00"} {
		assert.False(t, ValidName(bad), bad)
	}
}

func TestCatalog(t *testing.T) {
	c, err := NewCatalog(DefaultRegions())
	require.NoError(t, err)

	r, err := c.Lookup(RegionArctic)
	require.NoError(t, err)
	assert.True(t, r.Contains(0, 66.6))
	assert.False(t, r.Contains(0, 66.5))

	_, err = c.Lookup("Atlantis")
	require.ErrorIs(t, err, ErrUnknownRegion)

	names := make([]string, 0, 5)
	for _, r := range c.Regions() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{RegionArctic, RegionEurope, RegionGlobal, RegionNorthern, RegionSouthern}, names)

	t.Run("rejects bad regions", func(t *testing.T) {
		_, err := NewCatalog([]Region{{Name: "upside-down", LatMin: 10, LatMax: -10, LonMin: 0, LonMax: 1}})
		require.ErrorIs(t, err, ErrInvalidAxis)
		_, err = NewCatalog([]Region{DefaultRegions()[0], DefaultRegions()[0]})
		require.ErrorIs(t, err, ErrInvalidRequest)
	})
}

func TestCalendar(t *testing.T) {
	assert.Equal(t, 29, DaysInMonth(time.Date(2000, 2, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 28, DaysInMonth(time.Date(1900, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 366, DaysInYear(2020))
	assert.Equal(t, 365, DaysInYear(2100))

	s, y := SeasonOf(2019, time.December)
	assert.Equal(t, DJF, s)
	assert.Equal(t, 2020, y)
	s, y = SeasonOf(2020, time.October)
	assert.Equal(t, SON, s)
	assert.Equal(t, 2020, y)
	assert.Equal(t, "JJA", JJA.String())

	p := reference(1991, 2020)
	assert.Equal(t, "1991-2020", p.String())
	assert.True(t, p.Contains(time.Date(2020, 12, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)))
	_, err := ReferenceYears(2020, 1991)
	require.ErrorIs(t, err, ErrInvalidRequest)

	assert.True(t, IsMonthly(monthsFrom(2000, time.January, 13)))
	assert.False(t, IsMonthly(daysFrom(2000, time.January, 1, 10)))
	assert.False(t, IsMonthly(monthsFrom(2000, time.January, 1)))
	assert.True(t, IsDaily(daysFrom(2000, time.February, 27, 4)))
}

func TestResultID(t *testing.T) {
	period, err := ReferenceYears(1991, 2020)
	require.NoError(t, err)
	req := AnalysisRequest{
		ID: testRequestID, Region: RegionEurope, Resolution: Annual, Kind: KindSeries,
		Sources: []SourceSpec{{Name: "era5", Variable: "t2m"}},
	}

	id := ResultID(req, period)
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
	assert.Equal(t, id, ResultID(req, period))

	other := req
	other.Resolution = Seasonal
	assert.NotEqual(t, id, ResultID(other, period))

	later, err := ReferenceYears(1981, 2010)
	require.NoError(t, err)
	assert.NotEqual(t, id, ResultID(req, later))

	extras := req
	extras.PreindustrialLevel = true
	assert.NotEqual(t, id, ResultID(extras, period))
	extras.DailyQuantiles = []float64{0.1, 0.9}
	assert.NotEqual(t, ResultID(req, period), ResultID(extras, period))
}

func TestParseRequest_Extras(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		raw := RawRequest{Value: []byte(`{"id":"x","region":"Europe","preindustrial_level":true,"daily_quantiles":[0.1,0.5,0.9],
			"difference":{"minuend":"era5","subtrahend":"eobs"},
			"sources":[{"name":"era5","variable":"t2m"},{"name":"eobs","variable":"tg"}]}`)}
		req, err := ParseRequest(raw)
		require.NoError(t, err)
		assert.True(t, req.PreindustrialLevel)
		assert.Equal(t, []float64{0.1, 0.5, 0.9}, req.DailyQuantiles)
		require.NotNil(t, req.Difference)
		assert.Equal(t, "eobs", req.Difference.Subtrahend)
	})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"unlisted difference source", `"difference":{"minuend":"era5","subtrahend":"hadcrut"}`, "unlisted source"},
		{"self difference", `"difference":{"minuend":"era5","subtrahend":"era5"}`, "with itself"},
		{"quantile range", `"daily_quantiles":[1.5]`, "outside [0, 1]"},
		{"field level", `"kind":"field","preindustrial_level":true`, "need kind series"},
		{"field quantiles", `"kind":"field","daily_quantiles":[0.5]`, "need kind series"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := RawRequest{Value: []byte(`{"id":"x","region":"Europe",` + tt.body + `,"sources":[{"name":"era5","variable":"t2m"}]}`)}
			_, err := ParseRequest(raw)
			require.ErrorIs(t, err, ErrInvalidRequest)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
