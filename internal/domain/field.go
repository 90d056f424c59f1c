package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Field is a labeled multi-dimensional array of Values stored in row-major
// order. A Field is immutable: every operation returns a new Field and
// accessors hand out copies.
type Field struct {
	name  string
	units string
	axes  []Axis
	data  []Value
}

// NewField validates the axes against the data length and returns a Field
// that owns copies of both.
func NewField(name string, axes []Axis, data []Value) (*Field, error) {
	seen := make(map[AxisName]bool, len(axes))
	n := 1
	for _, a := range axes {
		if a.Name == "" {
			return nil, fmt.Errorf("field %q: empty axis name: %w", name, ErrInvalidAxis)
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("field %q: duplicate axis %q: %w", name, a.Name, ErrInvalidAxis)
		}
		seen[a.Name] = true
		n *= a.Len()
	}
	if n != len(data) {
		return nil, fmt.Errorf("field %q: shape %v needs %d values, got %d: %w",
			name, shapeOf(axes), n, len(data), ErrInvalidAxis)
	}
	cp := make([]Axis, len(axes))
	for i, a := range axes {
		cp[i] = a.clone()
	}
	return &Field{name: name, axes: cp, data: append([]Value(nil), data...)}, nil
}

// MustField is NewField for fixtures and tests; it panics on error.
func MustField(name string, axes []Axis, data []Value) *Field {
	f, err := NewField(name, axes, data)
	if err != nil {
		panic(err)
	}
	return f
}

// Fill builds a field where every cell holds v.
func Fill(name string, axes []Axis, v Value) *Field {
	n := 1
	for _, a := range axes {
		n *= a.Len()
	}
	data := make([]Value, n)
	for i := range data {
		data[i] = v
	}
	return MustField(name, axes, data)
}

// newField takes ownership of axes and data without copying.
func newField(name, units string, axes []Axis, data []Value) *Field {
	return &Field{name: name, units: units, axes: axes, data: data}
}

func (f *Field) derive(axes []Axis, data []Value) *Field {
	return newField(f.name, f.units, axes, data)
}

// Name returns the variable name.
func (f *Field) Name() string { return f.name }

// Units returns the physical units, if known.
func (f *Field) Units() string { return f.units }

// Rename returns a copy of the field under a new name.
func (f *Field) Rename(name string) *Field {
	return newField(name, f.units, f.axes, f.data)
}

// WithUnits returns a copy of the field with the given units.
func (f *Field) WithUnits(units string) *Field {
	return newField(f.name, units, f.axes, f.data)
}

// Axes returns copies of the field's axes in storage order.
func (f *Field) Axes() []Axis {
	out := make([]Axis, len(f.axes))
	for i, a := range f.axes {
		out[i] = a.clone()
	}
	return out
}

// AxisNames returns the axis names in storage order.
func (f *Field) AxisNames() []AxisName {
	out := make([]AxisName, len(f.axes))
	for i, a := range f.axes {
		out[i] = a.Name
	}
	return out
}

// Axis returns a copy of the named axis.
func (f *Field) Axis(name AxisName) (Axis, bool) {
	i := f.axisIndex(name)
	if i < 0 {
		return Axis{}, false
	}
	return f.axes[i].clone(), true
}

// HasAxis reports whether the field has the named axis.
func (f *Field) HasAxis(name AxisName) bool { return f.axisIndex(name) >= 0 }

func (f *Field) axisIndex(name AxisName) int {
	for i, a := range f.axes {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// Shape returns the length of every axis.
func (f *Field) Shape() []int { return shapeOf(f.axes) }

// Len returns the number of cells.
func (f *Field) Len() int { return len(f.data) }

// At returns the value at the given multi-index. It panics on an out of range
// index, like slice indexing.
func (f *Field) At(idx ...int) Value {
	if len(idx) != len(f.axes) {
		panic(fmt.Sprintf("domain: At got %d indices for %d axes", len(idx), len(f.axes)))
	}
	off := 0
	for i, a := range f.axes {
		if idx[i] < 0 || idx[i] >= a.Len() {
			panic(fmt.Sprintf("domain: index %d out of range for axis %q", idx[i], a.Name))
		}
		off = off*a.Len() + idx[i]
	}
	return f.data[off]
}

// Values returns a copy of the data in row-major order.
func (f *Field) Values() []Value { return append([]Value(nil), f.data...) }

// CountValid returns the number of defined cells.
func (f *Field) CountValid() int {
	n := 0
	for _, v := range f.data {
		if v.ok {
			n++
		}
	}
	return n
}

// Map applies fn to every cell.
func (f *Field) Map(fn func(Value) Value) *Field {
	out := make([]Value, len(f.data))
	for i, v := range f.data {
		out[i] = fn(v)
	}
	return f.derive(f.cloneAxes(), out)
}

func (f *Field) cloneAxes() []Axis {
	out := make([]Axis, len(f.axes))
	for i, a := range f.axes {
		out[i] = a.clone()
	}
	return out
}

// split returns the element counts before, along and after axis k.
func (f *Field) split(k int) (outer, n, inner int) {
	outer, inner = 1, 1
	for i, a := range f.axes {
		switch {
		case i < k:
			outer *= a.Len()
		case i > k:
			inner *= a.Len()
		}
	}
	return outer, f.axes[k].Len(), inner
}

// gather builds a new field whose axis k holds the coordinates at idx.
func (f *Field) gather(k int, idx []int) *Field {
	outer, n, inner := f.split(k)
	data := make([]Value, outer*len(idx)*inner)
	for o := 0; o < outer; o++ {
		for j, i := range idx {
			src := (o*n + i) * inner
			dst := (o*len(idx) + j) * inner
			copy(data[dst:dst+inner], f.data[src:src+inner])
		}
	}
	axes := f.cloneAxes()
	axes[k] = f.axes[k].pick(idx)
	return f.derive(axes, data)
}

// SliceAxis keeps coordinates [lo, hi) of the named axis.
func (f *Field) SliceAxis(name AxisName, lo, hi int) (*Field, error) {
	k := f.axisIndex(name)
	if k < 0 {
		return nil, fmt.Errorf("slice %q: %w", name, ErrMissingAxis)
	}
	if lo < 0 || hi > f.axes[k].Len() || lo > hi {
		return nil, fmt.Errorf("slice %q [%d:%d] of length %d: %w", name, lo, hi, f.axes[k].Len(), ErrInvalidAxis)
	}
	return f.gather(k, rangeIdx(lo, hi)), nil
}

// Permute reorders the named axis so that new position j holds old index idx[j].
func (f *Field) Permute(name AxisName, idx []int) (*Field, error) {
	k := f.axisIndex(name)
	if k < 0 {
		return nil, fmt.Errorf("permute %q: %w", name, ErrMissingAxis)
	}
	for _, i := range idx {
		if i < 0 || i >= f.axes[k].Len() {
			return nil, fmt.Errorf("permute %q: index %d: %w", name, i, ErrInvalidAxis)
		}
	}
	return f.gather(k, idx), nil
}

// SelectIndex picks coordinate i of the named axis and drops the axis.
func (f *Field) SelectIndex(name AxisName, i int) (*Field, error) {
	k := f.axisIndex(name)
	if k < 0 {
		return nil, fmt.Errorf("select %q: %w", name, ErrMissingAxis)
	}
	if i < 0 || i >= f.axes[k].Len() {
		return nil, fmt.Errorf("select %q index %d: %w", name, i, ErrInvalidAxis)
	}
	g := f.gather(k, []int{i})
	axes := append(g.axes[:k:k], g.axes[k+1:]...)
	return f.derive(axes, g.data), nil
}

// SelectCoord picks numeric coordinate v of the named axis and drops the axis.
func (f *Field) SelectCoord(name AxisName, v float64) (*Field, error) {
	a, ok := f.Axis(name)
	if !ok {
		return nil, fmt.Errorf("select %q: %w", name, ErrMissingAxis)
	}
	i := a.IndexValue(v)
	if i < 0 {
		return nil, fmt.Errorf("select %q=%g: coordinate not found: %w", name, v, ErrInvalidAxis)
	}
	return f.SelectIndex(name, i)
}

// SelectLabel picks label l of the named axis and drops the axis.
func (f *Field) SelectLabel(name AxisName, l string) (*Field, error) {
	a, ok := f.Axis(name)
	if !ok {
		return nil, fmt.Errorf("select %q: %w", name, ErrMissingAxis)
	}
	i := a.IndexLabel(l)
	if i < 0 {
		return nil, fmt.Errorf("select %q=%s: label not found: %w", name, l, ErrInvalidAxis)
	}
	return f.SelectIndex(name, i)
}

// SelectTime picks timestamp t and drops the time axis.
func (f *Field) SelectTime(t time.Time) (*Field, error) {
	a, ok := f.Axis(AxisTime)
	if !ok {
		return nil, fmt.Errorf("select time: %w", ErrMissingAxis)
	}
	i := a.IndexTime(t)
	if i < 0 {
		return nil, fmt.Errorf("select time=%s: not found: %w", t.Format(time.RFC3339), ErrInvalidAxis)
	}
	return f.SelectIndex(AxisTime, i)
}

// SelectYear selects one year. On a year axis the axis is dropped; on a time
// axis the timestamps falling in that year are kept.
func (f *Field) SelectYear(year int) (*Field, error) {
	if f.HasAxis(AxisYear) {
		return f.SelectCoord(AxisYear, float64(year))
	}
	a, ok := f.Axis(AxisTime)
	if !ok {
		return nil, fmt.Errorf("select year %d: %w", year, ErrMissingAxis)
	}
	var idx []int
	for i, t := range a.Times {
		if t.Year() == year {
			idx = append(idx, i)
		}
	}
	return f.gather(f.axisIndex(AxisTime), idx), nil
}

// Transpose reorders the axes. order must name every axis exactly once.
func (f *Field) Transpose(order []AxisName) (*Field, error) {
	if len(order) != len(f.axes) {
		return nil, fmt.Errorf("transpose to %v from %v: %w", order, f.AxisNames(), ErrInvalidAxis)
	}
	perm := make([]int, len(order))
	identity := true
	for j, name := range order {
		k := f.axisIndex(name)
		if k < 0 {
			return nil, fmt.Errorf("transpose: %q: %w", name, ErrMissingAxis)
		}
		for _, p := range perm[:j] {
			if p == k {
				return nil, fmt.Errorf("transpose: %q repeated: %w", name, ErrInvalidAxis)
			}
		}
		perm[j] = k
		if k != j {
			identity = false
		}
	}
	if identity {
		return f.derive(f.cloneAxes(), f.Values()), nil
	}

	oldShape := f.Shape()
	oldStrides := make([]int, len(oldShape))
	s := 1
	for i := len(oldShape) - 1; i >= 0; i-- {
		oldStrides[i] = s
		s *= oldShape[i]
	}
	newShape := make([]int, len(perm))
	axes := make([]Axis, len(perm))
	for j, k := range perm {
		newShape[j] = oldShape[k]
		axes[j] = f.axes[k].clone()
	}

	data := make([]Value, len(f.data))
	idx := make([]int, len(perm))
	for pos := range data {
		off := 0
		for j, k := range perm {
			off += idx[j] * oldStrides[k]
		}
		data[pos] = f.data[off]
		for j := len(idx) - 1; j >= 0; j-- {
			idx[j]++
			if idx[j] < newShape[j] {
				break
			}
			idx[j] = 0
		}
	}
	return f.derive(axes, data), nil
}

// Concat joins fields along the named axis. All other axes must be equal.
func Concat(name AxisName, parts ...*Field) (*Field, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("concat %q: no parts: %w", name, ErrInvalidAxis)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	first := parts[0]
	k := first.axisIndex(name)
	if k < 0 {
		return nil, fmt.Errorf("concat %q: %w", name, ErrMissingAxis)
	}
	for _, p := range parts[1:] {
		if len(p.axes) != len(first.axes) || p.axisIndex(name) != k {
			return nil, fmt.Errorf("concat %q: axes %v vs %v: %w", name, p.AxisNames(), first.AxisNames(), ErrGridMismatch)
		}
		for i := range p.axes {
			if i != k && !p.axes[i].Equal(first.axes[i]) {
				return nil, fmt.Errorf("concat %q: axis %q differs: %w", name, p.axes[i].Name, ErrGridMismatch)
			}
		}
	}

	outer, _, inner := first.split(k)
	total := 0
	along := make([]Axis, len(parts))
	for i, p := range parts {
		along[i] = p.axes[k]
		total += p.axes[k].Len()
	}
	data := make([]Value, 0, outer*total*inner)
	for o := 0; o < outer; o++ {
		for _, p := range parts {
			_, n, _ := p.split(k)
			block := n * inner
			data = append(data, p.data[o*block:(o+1)*block]...)
		}
	}
	axes := first.cloneAxes()
	axes[k] = concatAxes(along)
	return first.derive(axes, data), nil
}

// SameGrid reports whether two fields carry identical axes.
func SameGrid(a, b *Field) bool {
	if len(a.axes) != len(b.axes) {
		return false
	}
	for i := range a.axes {
		if !a.axes[i].Equal(b.axes[i]) {
			return false
		}
	}
	return true
}

func shapeOf(axes []Axis) []int {
	out := make([]int, len(axes))
	for i, a := range axes {
		out[i] = a.Len()
	}
	return out
}

type fieldJSON struct {
	Name  string  `json:"name"`
	Units string  `json:"units,omitempty"`
	Axes  []Axis  `json:"axes"`
	Data  []Value `json:"data"`
}

// MarshalJSON encodes the field with its axes and nullable values.
func (f *Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(fieldJSON{Name: f.name, Units: f.units, Axes: f.axes, Data: f.data})
}

// UnmarshalJSON decodes and validates a field.
func (f *Field) UnmarshalJSON(b []byte) error {
	var raw fieldJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	g, err := NewField(raw.Name, raw.Axes, raw.Data)
	if err != nil {
		return err
	}
	*f = *g
	f.units = raw.Units
	return nil
}
