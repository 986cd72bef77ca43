package facts

import (
	"fmt"
	"strconv"
)

// Kind identifies the type held by a Value.
type Kind int

const (
	// KindInvalid is the zero Kind; it is never stored in a Fact.
	KindInvalid Kind = iota
	// KindNumber holds a float64.
	KindNumber
	// KindBool holds a bool.
	KindBool
	// KindString holds a string.
	KindString
)

// String returns the lowercase kind name used in catalogs and error messages.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

// ParseKind converts a kind name ("number", "bool", "string") to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "number", "int", "float":
		return KindNumber, nil
	case "bool", "boolean":
		return KindBool, nil
	case "string":
		return KindString, nil
	default:
		return KindInvalid, fmt.Errorf("unknown attribute kind %q", s)
	}
}

// Value is a single attribute value.
type Value struct {
	kind Kind
	num  float64
	b    bool
	str  string
}

// Number returns a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether the value holds anything.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Num returns the numeric payload and whether the value is a number.
func (v Value) Num() (float64, bool) { return v.num, v.kind == KindNumber }

// Boolean returns the boolean payload and whether the value is a bool.
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

// Str returns the string payload and whether the value is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Interface returns the payload as a plain Go value (float64, bool or string).
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindString:
		return v.str
	default:
		return nil
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.str == o.str
	default:
		return true
	}
}

// Format renders the value for trace summaries and reason templates.
func (v Value) Format() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.str
	default:
		return "absent"
	}
}

// ValueOf converts a Go value to a Value. Integer and float types become
// numbers. Any other type is rejected.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		if !t.IsValid() {
			return Value{}, fmt.Errorf("invalid value")
		}
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int8:
		return Number(float64(t)), nil
	case int16:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint:
		return Number(float64(t)), nil
	case uint8:
		return Number(float64(t)), nil
	case uint16:
		return Number(float64(t)), nil
	case uint32:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	default:
		return Value{}, fmt.Errorf("unsupported type %T", x)
	}
}
