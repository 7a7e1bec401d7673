package ir

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface representing a parameter value.
// Only Null, Bool, Int, Float, String, List, and Object implement this.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null represents an explicit null parameter value.
// A nil Value and Null{} compare equal.
type Null struct{}

func (Null) irValue() {}

// Bool represents a boolean parameter.
type Bool bool

func (Bool) irValue() {}

// Int represents an integer parameter (always int64).
type Int int64

func (Int) irValue() {}

// Float represents a floating point parameter (always float64).
type Float float64

func (Float) irValue() {}

// String represents a string parameter.
type String string

func (String) irValue() {}

// List represents an ordered list of values (vectors, colors, matrices).
type List []Value

func (List) irValue() {}

// Object represents a map of string keys to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) irValue() {}

// L is a shorthand for building a List.
// Example: L(Float(1), Float(0.5), Float(0), Float(1))
func L(vals ...Value) List {
	return List(vals)
}

// Floats builds a List of Float values, the usual shape of vector parameters.
func Floats(fs ...float64) List {
	out := make(List, len(fs))
	for i, f := range fs {
		out[i] = Float(f)
	}
	return out
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's string comparison uses UTF-8 bytes, which orders some runes differently.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysUTF16)
	return keys
}

// compareKeysUTF16 compares strings by UTF-16 code units.
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// Kind names the dynamic kind of a value. Used in error messages and traces.
func Kind(v Value) string {
	switch v.(type) {
	case nil, Null:
		return "null"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case List:
		return "list"
	case Object:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Format renders a value for human-readable output (CLI text mode, traces).
// Format is not canonical; use MarshalCanonical for hashing.
func Format(v Value) string {
	var sb strings.Builder
	writeFormat(&sb, v)
	return sb.String()
}

func writeFormat(sb *strings.Builder, v Value) {
	switch val := v.(type) {
	case nil:
		sb.WriteString("<unset>")
	case Null:
		sb.WriteString("null")
	case Bool:
		sb.WriteString(strconv.FormatBool(bool(val)))
	case Int:
		sb.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		f := float64(val)
		s := strconv.FormatFloat(f, 'g', -1, 64)
		// Keep floats visibly distinct from ints.
		if !math.IsInf(f, 0) && !math.IsNaN(f) && !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		sb.WriteString(s)
	case String:
		sb.WriteString(strconv.Quote(string(val)))
	case List:
		sb.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				sb.WriteByte(' ')
			}
			writeFormat(sb, elem)
		}
		sb.WriteByte(']')
	case Object:
		sb.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(k)
			sb.WriteByte(':')
			writeFormat(sb, val[k])
		}
		sb.WriteByte('}')
	default:
		fmt.Fprintf(sb, "%v", v)
	}
}

// FromAny converts a decoded Go value (YAML, JSON, CUE, literals) to a Value.
// Integers stay Int, floating point numbers become Float.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("integer out of int64 range: %d", val)
		}
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer out of int64 range: %d", val)
		}
		return Int(val), nil
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case []any:
		out := make(List, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = conv
		}
		return out, nil
	case map[string]any:
		out := make(Object, len(val))
		for k, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			out[k] = conv
		}
		return out, nil
	case map[any]any:
		out := make(Object, len(val))
		for k, elem := range val {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("object key %v: keys must be strings", k)
			}
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", ks, err)
			}
			out[ks] = conv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// MustFromAny is like FromAny but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFromAny(v any) Value {
	out, err := FromAny(v)
	if err != nil {
		panic(err)
	}
	return out
}
