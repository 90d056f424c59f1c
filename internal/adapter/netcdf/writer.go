package netcdf

import (
	"fmt"
	"reflect"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/couchcryptid/temperature-anomaly-etl/internal/domain"
)

// FillValue marks no-data cells in files written by Write.
const FillValue = 1.0e20

// timeEpoch is the reference date of written time coordinates.
var timeEpoch = time.Date(1850, time.January, 1, 0, 0, 0, 0, time.UTC)

// Write stores fields in a classic NetCDF file. Each axis becomes a
// dimension with a coordinate variable of the same name; fields sharing an
// axis name must share its coordinates. Label axes cannot be written.
func Write(path string, fields ...*domain.Field) (err error) {
	w, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	written := make(map[domain.AxisName]domain.Axis)
	for _, f := range fields {
		for _, a := range f.Axes() {
			if prev, ok := written[a.Name]; ok {
				if !prev.Equal(a) {
					return fmt.Errorf("axis %q differs between fields: %w", a.Name, domain.ErrGridMismatch)
				}
				continue
			}
			name, v, err := coordinateVariable(a)
			if err != nil {
				return err
			}
			if err := w.AddVar(name, v); err != nil {
				return fmt.Errorf("write coordinate %q: %w", name, err)
			}
			written[a.Name] = a
		}
	}

	for _, f := range fields {
		v, err := dataVariable(f)
		if err != nil {
			return err
		}
		if err := w.AddVar(f.Name(), v); err != nil {
			return fmt.Errorf("write variable %q: %w", f.Name(), err)
		}
	}
	return nil
}

func coordinateVariable(a domain.Axis) (string, api.Variable, error) {
	name := string(a.Name)
	dims := []string{name}
	switch {
	case a.IsTime():
		attrs, err := attributes(
			"units", "days since "+timeEpoch.Format("2006-01-02 15:04:05"),
			"calendar", "standard",
			"standard_name", "time",
		)
		if err != nil {
			return "", api.Variable{}, err
		}
		return name, api.Variable{Values: encodeTimes(a.Times, timeEpoch), Dimensions: dims, Attributes: attrs}, nil
	case a.Labels != nil:
		return "", api.Variable{}, fmt.Errorf("label axis %q cannot be written: %w", name, domain.ErrInvalidAxis)
	default:
		attrs, err := attributes()
		if err != nil {
			return "", api.Variable{}, err
		}
		return name, api.Variable{Values: append([]float64(nil), a.Values...), Dimensions: dims, Attributes: attrs}, nil
	}
}

func dataVariable(f *domain.Field) (api.Variable, error) {
	if len(f.Axes()) == 0 {
		return api.Variable{}, fmt.Errorf("variable %q has no axes: %w", f.Name(), domain.ErrMissingAxis)
	}
	kv := []any{"_FillValue", FillValue}
	if f.Units() != "" {
		kv = append(kv, "units", f.Units())
	}
	attrs, err := attributes(kv...)
	if err != nil {
		return api.Variable{}, err
	}
	flat := make([]float64, f.Len())
	for i, v := range f.Values() {
		x, ok := v.Get()
		if !ok {
			x = FillValue
		}
		flat[i] = x
	}
	dims := make([]string, 0, len(f.Axes()))
	for _, name := range f.AxisNames() {
		dims = append(dims, string(name))
	}
	return api.Variable{Values: nest(flat, f.Shape()), Dimensions: dims, Attributes: attrs}, nil
}

// nest reshapes row-major data into nested slices, e.g. [][][]float64 for a
// three-dimensional shape.
func nest(flat []float64, shape []int) any {
	if len(shape) == 1 {
		return flat
	}
	inner := 1
	for _, n := range shape[1:] {
		inner *= n
	}
	typ := reflect.TypeOf(flat)
	for range shape[1:] {
		typ = reflect.SliceOf(typ)
	}
	out := reflect.MakeSlice(typ, shape[0], shape[0])
	for i := range shape[0] {
		out.Index(i).Set(reflect.ValueOf(nest(flat[i*inner:(i+1)*inner], shape[1:])))
	}
	return out.Interface()
}

// attributes builds an ordered attribute map from alternating keys and
// values.
func attributes(kv ...any) (api.AttributeMap, error) {
	keys := make([]string, 0, len(kv)/2)
	vals := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k := kv[i].(string)
		keys = append(keys, k)
		vals[k] = kv[i+1]
	}
	m, err := util.NewOrderedMap(keys, vals)
	if err != nil {
		return nil, fmt.Errorf("attributes: %w", err)
	}
	return m, nil
}
