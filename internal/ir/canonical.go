package ir

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for a value.
// This is the ONLY serialization used for hashing and journal columns.
//
// Differences from encoding/json:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped), U+2028/U+2029 kept literal
//  3. Strings are NFC normalized
//  4. Floats use the shortest round-trip form; NaN and ±Inf are written in
//     the tagged form {"$float":"NaN"}, {"$float":"+Inf"}, {"$float":"-Inf"}
//  5. A nil Value marshals as null
//
// An Object with the same shape as a tagged float is rejected, so the encoding
// stays unambiguous.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		f := float64(val)
		if tag, ok := nonFiniteTag(f); ok {
			buf.WriteString(`{"` + floatTagKey + `":"` + tag + `"}`)
			return nil
		}
		buf.WriteString(formatCanonicalFloat(f))
	case String:
		writeCanonicalString(buf, string(val))
	case List:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("list[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Object:
		if _, ok := taggedFloat(val); ok {
			return fmt.Errorf("object %s is reserved for non-finite floats", floatTagKey)
		}
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, k)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// floatTagKey names the single key of a tagged non-finite float.
const floatTagKey = "$float"

func nonFiniteTag(f float64) (string, bool) {
	switch {
	case math.IsNaN(f):
		return "NaN", true
	case math.IsInf(f, 1):
		return "+Inf", true
	case math.IsInf(f, -1):
		return "-Inf", true
	}
	return "", false
}

// taggedFloat reports whether o is the tagged form of a non-finite float.
func taggedFloat(o Object) (Float, bool) {
	if len(o) != 1 {
		return 0, false
	}
	tag, ok := o[floatTagKey].(String)
	if !ok {
		return 0, false
	}
	switch tag {
	case "NaN":
		return Float(math.NaN()), true
	case "+Inf":
		return Float(math.Inf(1)), true
	case "-Inf":
		return Float(math.Inf(-1)), true
	}
	return 0, false
}

// formatCanonicalFloat keeps a fractional part on integral floats ("1.0"),
// so a reader can tell Float(1) from Int(1) in stored JSON.
func formatCanonicalFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', 'e', 'E':
			return s
		}
	}
	return s + ".0"
}

// writeCanonicalString writes a JSON string with NFC normalization.
// Only the quote, the backslash, and control characters (U+0000-U+001F) are
// escaped, using the short forms where JSON defines them.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r < 0x20:
			fmt.Fprintf(buf, `\u%04x`, r)
		default:
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}
