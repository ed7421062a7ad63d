package attribute

import (
	"cmp"
	"math"
	"strconv"
	"unique"
)

// Kind identifies the concrete type stored in a Value.
type Kind uint8

const (
	// KindInvalid represents an invalid kind.
	KindInvalid Kind = iota
	// KindNull represents a null value.
	KindNull
	// KindInt represents an integer value.
	KindInt
	// KindFloat represents a float value.
	KindFloat
	// KindString represents a string value.
	KindString
	// KindBool represents a boolean value.
	KindBool
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindBool:
		return "Bool"
	default:
		return "Invalid"
	}
}

// Value is a typed scalar produced by applying an attribute definition to a record.
//
// The representation avoids reflection and fmt-based stringification so that
// grouping and comparisons stay cheap. The zero Value is invalid; use Null()
// for an explicit null.
type Value struct {
	kind Kind
	i64  int64
	f64  float64
	s    unique.Handle[string]
	b    bool
}

// Null returns a null Value.
func Null() Value { return Value{kind: KindNull} }

// Int returns an int64 Value.
func Int(v int64) Value { return Value{kind: KindInt, i64: v} }

// Float returns a float64 Value.
func Float(v float64) Value { return Value{kind: KindFloat, f64: v} }

// String returns a string Value.
func String(v string) Value { return Value{kind: KindString, s: unique.Make(v)} }

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null. The zero (invalid) Value is not null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsNumeric reports whether v holds an int or a float.
func (v Value) IsNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// AsInt64 returns the int64 value if Kind is KindInt.
func (v Value) AsInt64() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i64, true
}

// AsFloat64 returns the numeric value as float64 for ints and floats.
func (v Value) AsFloat64() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f64, true
	case KindInt:
		return float64(v.i64), true
	default:
		return 0, false
	}
}

// AsString returns the string value if Kind is KindString.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s.Value(), true
}

// AsBool returns the boolean value if Kind is KindBool.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Interface returns the value as a plain Go value (nil, int64, float64, string or bool).
func (v Value) Interface() any {
	switch v.kind {
	case KindInt:
		return v.i64
	case KindFloat:
		return v.f64
	case KindString:
		return v.s.Value()
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// String implements fmt.Stringer.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindInt:
		return strconv.FormatInt(v.i64, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f64, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s.Value())
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "invalid"
	}
}

// Key returns a stable string representation for use in maps.
//
// Two values have the same key iff Equal reports true for them. Integral
// floats share the key of the matching int so Int(2) and Float(2) group together.
func (v Value) Key() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindInt:
		return "n:" + strconv.FormatInt(v.i64, 10)
	case KindFloat:
		if i, ok := integral(v.f64); ok {
			return "n:" + strconv.FormatInt(i, 10)
		}
		if math.IsNaN(v.f64) {
			return "f:nan"
		}
		return "f:" + strconv.FormatUint(math.Float64bits(v.f64), 16)
	case KindString:
		return "s:" + v.s.Value()
	case KindBool:
		if v.b {
			return "b:1"
		}
		return "b:0"
	default:
		return "invalid"
	}
}

// Equal reports value equality: numeric equality across ints and floats,
// exact string equality, and null equals null. NaN equals NaN so that equality
// stays consistent with Key.
func Equal(a, b Value) bool {
	if a.IsNumeric() && b.IsNumeric() {
		switch {
		case a.kind == KindInt && b.kind == KindInt:
			return a.i64 == b.i64
		case a.kind == KindFloat && b.kind == KindFloat:
			if math.IsNaN(a.f64) && math.IsNaN(b.f64) {
				return true
			}
			return a.f64 == b.f64
		case a.kind == KindInt:
			i, ok := integral(b.f64)
			return ok && i == a.i64
		default:
			i, ok := integral(a.f64)
			return ok && i == b.i64
		}
	}

	if a.kind != b.kind {
		return false
	}

	switch a.kind {
	case KindNull:
		return true
	case KindString:
		return a.s == b.s
	case KindBool:
		return a.b == b.b
	default:
		return false
	}
}

// Compare orders values by their natural ordering.
//
// Across kinds the order is null < bool < numbers < strings. Numbers compare
// numerically regardless of int/float representation.
func Compare(a, b Value) int {
	ra, rb := rank(a.kind), rank(b.kind)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}

	switch a.kind {
	case KindNull, KindInvalid:
		return 0
	case KindBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	case KindString:
		return cmp.Compare(a.s.Value(), b.s.Value())
	}

	if a.kind == KindInt && b.kind == KindInt {
		return cmp.Compare(a.i64, b.i64)
	}
	if Equal(a, b) {
		return 0
	}
	af, _ := a.AsFloat64()
	bf, _ := b.AsFloat64()
	return cmp.Compare(af, bf)
}

func rank(k Kind) int {
	switch k {
	case KindNull:
		return 1
	case KindBool:
		return 2
	case KindInt, KindFloat:
		return 3
	case KindString:
		return 4
	default:
		return 0
	}
}

// integral reports whether f holds an exact int64.
func integral(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < -(1<<63) || f >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}
