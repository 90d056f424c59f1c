package netcdf

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/couchcryptid/temperature-anomaly-etl/internal/domain"
)

// variableSource is the part of api.Group the decoder needs.
type variableSource interface {
	GetVariable(name string) (*api.Variable, error)
}

// decodeVariable turns a NetCDF variable into a raw field. Coordinates come
// from the coordinate variable of each dimension, or from the index when the
// file has none. Fill values become no-data and packed values are unpacked.
func decodeVariable(src variableSource, name string, v *api.Variable) (*domain.Field, error) {
	raw, shape, err := flatten(v.Values)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}
	if len(shape) != len(v.Dimensions) {
		return nil, fmt.Errorf("variable %q: %d dimensions but values of rank %d: %w", name, len(v.Dimensions), len(shape), domain.ErrInvalidAxis)
	}

	axes := make([]domain.Axis, 0, len(shape))
	for i, dim := range v.Dimensions {
		if _, known := domain.CanonicalAxis(dim); !known && shape[i] == 1 {
			// A singleton level or height dimension carries no information.
			continue
		}
		a, err := coordinateAxis(src, dim, shape[i])
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		axes = append(axes, a)
	}

	unpack := unpacker(v.Attributes)
	data := make([]domain.Value, len(raw))
	for i, x := range raw {
		data[i] = unpack(x)
	}
	f, err := domain.NewField(name, axes, data)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}
	if units, ok := attrString(v.Attributes, "units"); ok {
		f = f.WithUnits(units)
	}
	return f, nil
}

// coordinateAxis builds the axis of one dimension of length n.
func coordinateAxis(src variableSource, dim string, n int) (domain.Axis, error) {
	cv, err := src.GetVariable(dim)
	if err != nil {
		idx := make([]float64, n)
		for i := range idx {
			idx[i] = float64(i)
		}
		return domain.NumericAxis(domain.AxisName(dim), idx...), nil
	}
	values, shape, err := flatten(cv.Values)
	if err != nil {
		return domain.Axis{}, fmt.Errorf("coordinate %q: %w", dim, err)
	}
	if len(shape) != 1 || shape[0] != n {
		return domain.Axis{}, fmt.Errorf("coordinate %q: shape %v, want [%d]: %w", dim, shape, n, domain.ErrInvalidAxis)
	}
	if canon, _ := domain.CanonicalAxis(dim); canon == domain.AxisTime {
		times, err := decodeTimes(values, cv.Attributes)
		if err != nil {
			return domain.Axis{}, fmt.Errorf("coordinate %q: %w", dim, err)
		}
		a := domain.TimeAxis(times...)
		a.Name = domain.AxisName(dim)
		return a, nil
	}
	return domain.NumericAxis(domain.AxisName(dim), values...), nil
}

// unpacker returns the conversion from stored numbers to physical values:
// fill and missing markers map to no-data, then scale_factor and add_offset
// apply.
func unpacker(attrs api.AttributeMap) func(float64) domain.Value {
	var markers []float64
	for _, key := range []string{"_FillValue", "missing_value"} {
		if m, ok := attrFloat(attrs, key); ok {
			markers = append(markers, m)
		}
	}
	scale, ok := attrFloat(attrs, "scale_factor")
	if !ok {
		scale = 1
	}
	offset, _ := attrFloat(attrs, "add_offset")
	return func(x float64) domain.Value {
		for _, m := range markers {
			if x == m || float32(x) == float32(m) {
				return domain.None()
			}
		}
		return domain.Some(x*scale + offset)
	}
}

// CF time encoding: "<unit> since <reference date>".
var timeUnits = map[string]time.Duration{
	"days":    24 * time.Hour,
	"day":     24 * time.Hour,
	"d":       24 * time.Hour,
	"hours":   time.Hour,
	"hour":    time.Hour,
	"h":       time.Hour,
	"minutes": time.Minute,
	"minute":  time.Minute,
	"min":     time.Minute,
	"seconds": time.Second,
	"second":  time.Second,
	"s":       time.Second,
}

var referenceLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-1-2 15:4:5",
	"2006-1-2",
}

// parseTimeUnits splits a CF units string into its step and epoch.
func parseTimeUnits(units string) (time.Duration, time.Time, error) {
	unit, ref, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return 0, time.Time{}, fmt.Errorf("time units %q: want \"<unit> since <date>\": %w", units, domain.ErrInvalidAxis)
	}
	step, ok := timeUnits[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return 0, time.Time{}, fmt.Errorf("time units %q: unsupported unit %q: %w", units, unit, domain.ErrInvalidAxis)
	}
	ref = strings.TrimSpace(ref)
	ref = strings.TrimSuffix(ref, "Z")
	ref = strings.TrimSpace(strings.TrimSuffix(ref, "UTC"))
	ref = strings.TrimSuffix(ref, ".0")
	for _, layout := range referenceLayouts {
		if t, err := time.Parse(layout, ref); err == nil {
			return step, t.UTC(), nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("time units %q: unparsable reference date: %w", units, domain.ErrInvalidAxis)
}

// decodeTimes converts offsets to timestamps. Only calendars that agree with
// Go's proleptic Gregorian calendar are accepted.
func decodeTimes(offsets []float64, attrs api.AttributeMap) ([]time.Time, error) {
	if cal, ok := attrString(attrs, "calendar"); ok {
		switch strings.ToLower(cal) {
		case "", "standard", "gregorian", "proleptic_gregorian":
		default:
			return nil, fmt.Errorf("calendar %q not supported: %w", cal, domain.ErrInvalidAxis)
		}
	}
	units, ok := attrString(attrs, "units")
	if !ok {
		return nil, fmt.Errorf("time coordinate has no units: %w", domain.ErrInvalidAxis)
	}
	step, epoch, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(offsets))
	for i, x := range offsets {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("time offset %d is not finite: %w", i, domain.ErrInvalidAxis)
		}
		secs := x * step.Seconds()
		whole := math.Floor(secs)
		nanos := int64(math.Round((secs - whole) * 1e9))
		out[i] = time.Unix(epoch.Unix()+int64(whole), nanos).UTC()
	}
	return out, nil
}

// encodeTimes is the inverse of decodeTimes for day offsets.
func encodeTimes(times []time.Time, epoch time.Time) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		secs := float64(t.Unix()-epoch.Unix()) + float64(t.Nanosecond())/1e9
		out[i] = secs / 86400
	}
	return out
}

// flatten copies nested numeric slices into row-major order and reports their
// shape. A scalar has an empty shape.
func flatten(values any) ([]float64, []int, error) {
	if values == nil {
		return nil, nil, fmt.Errorf("no values")
	}
	rv := reflect.ValueOf(values)
	var shape []int
	for cur := rv; cur.Kind() == reflect.Slice; {
		shape = append(shape, cur.Len())
		if cur.Len() == 0 {
			break
		}
		cur = cur.Index(0)
	}
	size := 1
	for _, n := range shape {
		size *= n
	}
	out := make([]float64, 0, size)
	var walk func(v reflect.Value, depth int) error
	walk = func(v reflect.Value, depth int) error {
		if depth < len(shape) {
			if v.Kind() != reflect.Slice || v.Len() != shape[depth] {
				return fmt.Errorf("ragged values at depth %d: %w", depth, domain.ErrInvalidAxis)
			}
			for i := range v.Len() {
				if err := walk(v.Index(i), depth+1); err != nil {
					return err
				}
			}
			return nil
		}
		x, ok := number(v)
		if !ok {
			return fmt.Errorf("non-numeric element of type %s", v.Type())
		}
		out = append(out, x)
		return nil
	}
	if err := walk(rv, 0); err != nil {
		return nil, nil, err
	}
	return out, shape, nil
}

func number(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	default:
		return 0, false
	}
}

// attrFloat reads a numeric attribute. Attributes stored as one-element
// arrays are accepted.
func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	raw, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Slice {
		if rv.Len() == 0 {
			return 0, false
		}
		rv = rv.Index(0)
	}
	return number(rv)
}

func attrString(attrs api.AttributeMap, key string) (string, bool) {
	if attrs == nil {
		return "", false
	}
	raw, ok := attrs.Get(key)
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return strings.TrimRight(s, "\x00"), ok
}
