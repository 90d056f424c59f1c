package netcdf

import (
	"errors"
	"testing"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/couchcryptid/temperature-anomaly-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGroup serves coordinate variables from a map.
type fakeGroup map[string]*api.Variable

func (g fakeGroup) GetVariable(name string) (*api.Variable, error) {
	v, ok := g[name]
	if !ok {
		return nil, errors.New("no such variable")
	}
	return v, nil
}

func attrs(t *testing.T, kv ...any) api.AttributeMap {
	t.Helper()
	m, err := attributes(kv...)
	require.NoError(t, err)
	return m
}

func TestDecodeVariable_FillAndPacking(t *testing.T) {
	g := fakeGroup{
		"latitude":  {Values: []float32{10, -10}, Dimensions: []string{"latitude"}},
		"longitude": {Values: []float32{0, 90, 180}, Dimensions: []string{"longitude"}},
	}
	v := &api.Variable{
		Values:     [][]int16{{100, -32767, 300}, {0, 50, -1}},
		Dimensions: []string{"latitude", "longitude"},
		Attributes: attrs(t,
			"_FillValue", int16(-32767),
			"missing_value", []int16{-1},
			"scale_factor", 0.5,
			"add_offset", float32(250),
			"units", "K",
		),
	}

	f, err := decodeVariable(g, "t2m", v)
	require.NoError(t, err)

	assert.Equal(t, "K", f.Units())
	assert.Equal(t, []int{2, 3}, f.Shape())
	assert.Equal(t, []domain.AxisName{"latitude", "longitude"}, f.AxisNames())
	want := []domain.Value{
		domain.Some(300), domain.None(), domain.Some(400),
		domain.Some(250), domain.Some(275), domain.None(),
	}
	assert.Equal(t, want, f.Values())
}

func TestDecodeVariable_Dimensions(t *testing.T) {
	t.Run("singleton level dropped", func(t *testing.T) {
		g := fakeGroup{"lat": {Values: []float64{0, 1}, Dimensions: []string{"lat"}}}
		v := &api.Variable{
			Values:     [][]float64{{1}, {2}},
			Dimensions: []string{"lat", "z"},
		}
		f, err := decodeVariable(g, "x", v)
		require.NoError(t, err)
		assert.Equal(t, []domain.AxisName{"lat"}, f.AxisNames())
		assert.Equal(t, []float64{1, 2}, domain.Floats(f.Values()))
	})

	t.Run("unknown non-singleton dimension kept", func(t *testing.T) {
		v := &api.Variable{
			Values:     [][]float64{{1, 2}},
			Dimensions: []string{"depth", "band"},
		}
		f, err := decodeVariable(fakeGroup{}, "x", v)
		require.NoError(t, err)
		assert.Equal(t, []domain.AxisName{"band"}, f.AxisNames())

		_, err = domain.Normalize(f)
		require.ErrorIs(t, err, domain.ErrUnrecognizedAxis)
	})

	t.Run("missing coordinate variable becomes index", func(t *testing.T) {
		v := &api.Variable{Values: []float64{5, 6, 7}, Dimensions: []string{"member"}}
		f, err := decodeVariable(fakeGroup{}, "x", v)
		require.NoError(t, err)
		a, ok := f.Axis("member")
		require.True(t, ok)
		assert.Equal(t, []float64{0, 1, 2}, a.Values)
	})

	t.Run("rank mismatch", func(t *testing.T) {
		v := &api.Variable{Values: []float64{1, 2}, Dimensions: []string{"lat", "lon"}}
		_, err := decodeVariable(fakeGroup{}, "x", v)
		require.ErrorIs(t, err, domain.ErrInvalidAxis)
	})

	t.Run("ragged values", func(t *testing.T) {
		v := &api.Variable{Values: [][]float64{{1, 2}, {3}}, Dimensions: []string{"lat", "lon"}}
		_, err := decodeVariable(fakeGroup{}, "x", v)
		require.ErrorIs(t, err, domain.ErrInvalidAxis)
	})

	t.Run("coordinate length mismatch", func(t *testing.T) {
		g := fakeGroup{"lat": {Values: []float64{0}, Dimensions: []string{"lat"}}}
		v := &api.Variable{Values: []float64{1, 2}, Dimensions: []string{"lat"}}
		_, err := decodeVariable(g, "x", v)
		require.ErrorIs(t, err, domain.ErrInvalidAxis)
	})
}

func TestDecodeVariable_Time(t *testing.T) {
	g := fakeGroup{
		"valid_time": {
			Values:     []int32{0, 744},
			Dimensions: []string{"valid_time"},
			Attributes: attrs(t, "units", "hours since 1990-01-01 00:00:00", "calendar", "proleptic_gregorian"),
		},
	}
	v := &api.Variable{Values: []float64{1, 2}, Dimensions: []string{"valid_time"}}

	f, err := decodeVariable(g, "t2m", v)
	require.NoError(t, err)
	a, ok := f.Axis("valid_time")
	require.True(t, ok)
	assert.Equal(t, []time.Time{
		time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1990, time.February, 1, 0, 0, 0, 0, time.UTC),
	}, a.Times)

	n, err := domain.Normalize(f)
	require.NoError(t, err)
	assert.True(t, n.HasAxis(domain.AxisTime))
}

func TestDecodeTimes_Errors(t *testing.T) {
	tests := []struct {
		name  string
		attrs []any
	}{
		{"no units", nil},
		{"no since", []any{"units", "days"}},
		{"unsupported unit", []any{"units", "months since 1990-01-01"}},
		{"bad date", []any{"units", "days since yesterday"}},
		{"noleap calendar", []any{"units", "days since 1990-01-01", "calendar", "noleap"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeTimes([]float64{0}, attrs(t, tt.attrs...))
			require.ErrorIs(t, err, domain.ErrInvalidAxis)
		})
	}
}

func TestParseTimeUnits(t *testing.T) {
	tests := []struct {
		units string
		step  time.Duration
		epoch time.Time
	}{
		{"days since 1850-01-01", 24 * time.Hour, time.Date(1850, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"hours since 1900-01-01 00:00:00.0", time.Hour, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"seconds since 1970-01-01T00:00:00Z", time.Second, time.Unix(0, 0).UTC()},
		{"minutes since 2000-1-1 6:0:0", time.Minute, time.Date(2000, 1, 1, 6, 0, 0, 0, time.UTC)},
		{"Days since 1979-01-01 UTC", 24 * time.Hour, time.Date(1979, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.units, func(t *testing.T) {
			step, epoch, err := parseTimeUnits(tt.units)
			require.NoError(t, err)
			assert.Equal(t, tt.step, step)
			assert.True(t, tt.epoch.Equal(epoch), "epoch %s, want %s", epoch, tt.epoch)
		})
	}
}

func TestFlattenAndNest(t *testing.T) {
	flat := []float64{1, 2, 3, 4, 5, 6}
	nested := nest(flat, []int{1, 2, 3})
	assert.Equal(t, [][][]float64{{{1, 2, 3}, {4, 5, 6}}}, nested)

	got, shape, err := flatten(nested)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, shape)
	assert.Equal(t, flat, got)

	_, _, err = flatten([]string{"a"})
	require.Error(t, err)
}
