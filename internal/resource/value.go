package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the attribute types a cloud object may carry.
// Only Null, String, Int, Bool, List and Attrs implement it. There is no float
// type: neutron attributes are integral and floats break byte-stable snapshots.
type Value interface {
	value()
}

// Null is an explicit JSON null (e.g. a flat network's segmentation_id).
type Null struct{}

func (Null) value() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a string attribute.
type String string

func (String) value() {}

// Int is an integer attribute. Always int64.
type Int int64

func (Int) value() {}

// Bool is a boolean attribute.
type Bool bool

func (Bool) value() {}

// List is an ordered list of values.
type List []Value

func (List) value() {}

// Attrs maps attribute names to values. Use SortedKeys for deterministic iteration.
type Attrs map[string]Value

func (Attrs) value() {}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
func (a Attrs) SortedKeys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// Clone returns a deep copy of a.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return nil
	}
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v Value) Value {
	switch val := v.(type) {
	case List:
		out := make(List, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case Attrs:
		return val.Clone()
	default:
		return v
	}
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Equal reports whether two values have the same canonical encoding.
// A missing value (nil) equals Null.
func Equal(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	ab, err := MarshalCanonical(a)
	if err != nil {
		return false
	}
	bb, err := MarshalCanonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// MarshalJSON implements json.Marshaler with sorted keys.
func (a Attrs) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(a)
}

// MarshalJSON implements json.Marshaler for List.
func (l List) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(l)
}

// UnmarshalJSON implements json.Unmarshaler for Attrs.
func (a *Attrs) UnmarshalJSON(data []byte) error {
	v, err := ParseJSON(data)
	if err != nil {
		return err
	}
	obj, ok := v.(Attrs)
	if !ok {
		return fmt.Errorf("expected JSON object, got %T", v)
	}
	*a = obj
	return nil
}

// ParseJSON decodes a JSON document into a Value.
// Integral numbers written with a fractional part ("1.0") are accepted as Int;
// any other non-integral number is rejected.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}

// FromAny converts decoded JSON or YAML data into a Value.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("number out of int64 range: %d", val)
		}
		return Int(val), nil
	case float64:
		return intFromFloat(val)
	case json.Number:
		return intFromNumber(val)
	case []any:
		out := make(List, len(val))
		for i, elem := range val {
			ev, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = ev
		}
		return out, nil
	case []string:
		out := make(List, len(val))
		for i, s := range val {
			out[i] = String(s)
		}
		return out, nil
	case map[string]any:
		out := make(Attrs, len(val))
		for k, elem := range val {
			ev, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			out[k] = ev
		}
		return out, nil
	case map[string]string:
		out := make(Attrs, len(val))
		for k, s := range val {
			out[k] = String(s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// AttrsFromMap converts a decoded JSON object into Attrs.
func AttrsFromMap(m map[string]any) (Attrs, error) {
	v, err := FromAny(m)
	if err != nil {
		return nil, err
	}
	return v.(Attrs), nil
}

// ToAny converts a Value back into plain Go data (map[string]any, []any,
// string, int64, bool, nil) suitable for encoding/json request bodies.
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	case List:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = ToAny(e)
		}
		return out
	case Attrs:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = ToAny(e)
		}
		return out
	default:
		return nil
	}
}

func intFromNumber(n json.Number) (Value, error) {
	if i, err := n.Int64(); err == nil {
		return Int(i), nil
	}
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		return nil, fmt.Errorf("number out of int64 range: %s", s)
	}
	f, err := n.Float64()
	if err != nil {
		return nil, err
	}
	return intFromFloat(f)
}

func intFromFloat(f float64) (Value, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, fmt.Errorf("floats are not supported: %v", f)
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return nil, fmt.Errorf("number out of int64 range: %v", f)
	}
	return Int(int64(f)), nil
}
