package domain

import (
	"bytes"
	"encoding/json"
	"math"
)

// Value is a single grid cell. A Value is either defined (holds a finite
// float64) or "no data". The zero Value is no data.
type Value struct {
	v  float64
	ok bool
}

// Some returns a defined Value. Non-finite input yields no data, so NaN never
// enters a field.
func Some(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{v: v, ok: true}
}

// None returns the no-data Value.
func None() Value { return Value{} }

// Get returns the numeric value and whether it is defined.
func (x Value) Get() (float64, bool) { return x.v, x.ok }

// Valid reports whether the value is defined.
func (x Value) Valid() bool { return x.ok }

// Float returns the value, or NaN when undefined. Only for display sinks.
func (x Value) Float() float64 {
	if !x.ok {
		return math.NaN()
	}
	return x.v
}

// Sub returns x - y, defined only when both operands are.
func (x Value) Sub(y Value) Value {
	if !x.ok || !y.ok {
		return Value{}
	}
	return Some(x.v - y.v)
}

// Add returns x + y, defined only when both operands are.
func (x Value) Add(y Value) Value {
	if !x.ok || !y.ok {
		return Value{}
	}
	return Some(x.v + y.v)
}

// Scale returns x*k.
func (x Value) Scale(k float64) Value {
	if !x.ok {
		return Value{}
	}
	return Some(x.v * k)
}

// MarshalJSON encodes no data as null.
func (x Value) MarshalJSON() ([]byte, error) {
	if !x.ok {
		return []byte("null"), nil
	}
	return json.Marshal(x.v)
}

// UnmarshalJSON accepts a number or null.
func (x *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*x = Value{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*x = Some(v)
	return nil
}

// Floats converts values to float64 with NaN for no data.
func Floats(vals []Value) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = v.Float()
	}
	return out
}

// FromFloats converts float64 values to Values; NaN becomes no data.
func FromFloats(vals []float64) []Value {
	out := make([]Value, len(vals))
	for i, v := range vals {
		out[i] = Some(v)
	}
	return out
}
