package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// UnmarshalCanonical parses JSON produced by MarshalCanonical.
//
// Numbers written with a fraction or exponent decode as Float, all others
// as Int, so values round-trip with their kind. Tagged non-finite floats
// decode back to Float. A nil Value encoded as null decodes as Null{}.
func UnmarshalCanonical(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal canonical: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unmarshal canonical: trailing data")
	}

	return fromJSON(raw)
}

func fromJSON(v any) (Value, error) {
	switch val := v.(type) {
	case json.Number:
		s := val.String()
		if strings.ContainsAny(s, ".eE") {
			f, err := val.Float64()
			if err != nil {
				return nil, err
			}
			return Float(f), nil
		}
		i, err := val.Int64()
		if err != nil {
			return nil, err
		}
		return Int(i), nil
	case []any:
		out := make(List, len(val))
		for i, elem := range val {
			conv, err := fromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = conv
		}
		return out, nil
	case map[string]any:
		out := make(Object, len(val))
		for k, elem := range val {
			conv, err := fromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			out[k] = conv
		}
		if f, ok := taggedFloat(out); ok {
			return f, nil
		}
		return out, nil
	default:
		return FromAny(val)
	}
}
