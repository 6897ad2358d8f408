package statemachine

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/amp-labs/tickfsm/optional"
)

// Kind identifies the type held by a Value.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
)

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
	case KindInvalid:
		return "invalid"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a dynamically typed fact: a bool, int, float or string.
// The zero Value is invalid and matches no condition.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

// Bool returns a boolean Value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Int returns an integer Value.
func Int(i int64) Value {
	return Value{kind: KindInt, i: i}
}

// Float returns a floating-point Value.
func Float(f float64) Value {
	return Value{kind: KindFloat, f: f}
}

// String returns a string Value.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// ValueOf converts a Go value into a Value. Values already of type Value are
// returned unchanged.
func ValueOf(v any) (Value, error) { //nolint:cyclop
	switch t := v.(type) {
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return fromUnsigned(uint64(t))
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return fromUnsigned(t)
	case float32:
		return fromFloat(float64(t))
	case float64:
		return fromFloat(t)
	case string:
		return String(t), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

func fromUnsigned(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, u)
	}

	return Int(int64(u)), nil
}

// fromFloat rejects NaN and the infinities, which have no JSON encoding.
func fromFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("%w: non-finite float %v", ErrUnsupportedValue, f)
	}

	return Float(f), nil
}

// Kind returns the kind of value held.
func (v Value) Kind() Kind {
	return v.kind
}

// IsValid reports whether v holds anything.
func (v Value) IsValid() bool {
	return v.kind != KindInvalid
}

// AsBool returns the boolean held by v, if any.
func (v Value) AsBool() optional.Value[bool] {
	if v.kind != KindBool {
		return optional.None[bool]()
	}

	return optional.Some(v.b)
}

// AsInt returns the integer held by v, if any. Floats are not truncated.
func (v Value) AsInt() optional.Value[int64] {
	if v.kind != KindInt {
		return optional.None[int64]()
	}

	return optional.Some(v.i)
}

// AsFloat returns v as a float64. Integers widen.
func (v Value) AsFloat() optional.Value[float64] {
	switch v.kind {
	case KindFloat:
		return optional.Some(v.f)
	case KindInt:
		return optional.Some(float64(v.i))
	default:
		return optional.None[float64]()
	}
}

// AsString returns the string held by v, if any.
func (v Value) AsString() optional.Value[string] {
	if v.kind != KindString {
		return optional.None[string]()
	}

	return optional.Some(v.s)
}

// IsNumeric reports whether v is an Int or a Float.
func (v Value) IsNumeric() bool {
	return v.kind == KindInt || v.kind == KindFloat
}

// Any returns the underlying Go value, or nil for an invalid Value.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	default:
		return nil
	}
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(other Value) bool {
	return v == other
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	default:
		return "<invalid>"
	}
}

// MarshalText encodes v as "<kind>:<text>".
func (v Value) MarshalText() ([]byte, error) {
	if !v.IsValid() {
		return nil, fmt.Errorf("%w: cannot encode invalid value", ErrInvalidValueText)
	}

	return []byte(v.kind.String() + ":" + v.String()), nil
}

// UnmarshalText decodes text produced by MarshalText.
func (v *Value) UnmarshalText(text []byte) error {
	kind, raw, ok := strings.Cut(string(text), ":")
	if !ok {
		return fmt.Errorf("%w: %q has no kind prefix", ErrInvalidValueText, text)
	}

	parsed, err := parseKind(kind, raw)
	if err != nil {
		return err
	}

	*v = parsed

	return nil
}

// MarshalJSON encodes v as its plain JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON decodes a JSON scalar. Whole numbers become Int.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	if num, ok := raw.(json.Number); ok {
		if i, err := num.Int64(); err == nil {
			*v = Int(i)

			return nil
		}

		f, err := num.Float64()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidValueText, err)
		}

		*v = Float(f)

		return nil
	}

	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}

	*v = parsed

	return nil
}

// ParseValue parses text. A kind prefix ("int:5") is honored; otherwise the
// text is tried as a bool, an integer and a float before falling back to a string.
func ParseValue(text string) Value {
	if kind, raw, ok := strings.Cut(text, ":"); ok {
		if parsed, err := parseKind(kind, raw); err == nil {
			return parsed
		}
	}

	// strconv.ParseBool also accepts "1" and "t", which must stay numeric or textual.
	switch strings.ToLower(text) {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}

	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return Int(i)
	}

	if f, err := strconv.ParseFloat(text, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return Float(f)
	}

	return String(text)
}

func parseKind(kind, raw string) (Value, error) {
	switch kind {
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %w", ErrInvalidValueText, err)
		}

		return Bool(b), nil
	case "int":
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %w", ErrInvalidValueText, err)
		}

		return Int(i), nil
	case "float":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %w", ErrInvalidValueText, err)
		}

		v, err := fromFloat(f)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %w", ErrInvalidValueText, err)
		}

		return v, nil
	case "string":
		return String(raw), nil
	default:
		return Value{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidValueText, kind)
	}
}
