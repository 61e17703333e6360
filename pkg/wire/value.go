package wire

import (
	"fmt"
	"strconv"
)

// Kind discriminates attribute value types.
type Kind uint8

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindString
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is a discriminated attribute value: boolean, integer, numeric sensor
// reading, or a short enumerated string. The zero Value is boolean false.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

// Bool returns a boolean value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Int returns an integer value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float returns a numeric sensor value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Str returns an enumerated string value.
func Str(v string) Value { return Value{kind: KindString, s: v} }

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// AsBool returns the value coerced to bool. Numeric values are true when
// non-zero; strings are true when non-empty and not "off".
func (v Value) AsBool() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.s != "" && v.s != "off" && v.s != "Off"
	default:
		return false
	}
}

// AsInt returns the value coerced to int64.
func (v Value) AsInt() int64 {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindInt:
		return v.i
	case KindFloat:
		return int64(v.f)
	default:
		return 0
	}
}

// AsFloat returns the value coerced to float64.
func (v Value) AsFloat() float64 {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return float64(v.i)
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// AsString returns the string value, or a formatted representation for other
// kinds.
func (v Value) AsString() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return ""
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(other Value) bool {
	return v == other
}

// String implements fmt.Stringer for debugging output.
func (v Value) String() string {
	return fmt.Sprintf("%s(%s)", v.kind, v.AsString())
}
