package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/fxparams/internal/ir"
)

// marshalValues converts compilation values to canonical JSON TEXT.
// Undefined (nil) values are stored as null.
func marshalValues(values []ir.Value) (string, error) {
	data, err := ir.MarshalCanonical(ir.List(values))
	if err != nil {
		return "", fmt.Errorf("marshal values: %w", err)
	}
	return string(data), nil
}

// unmarshalValues parses canonical JSON TEXT back into values.
func unmarshalValues(data string) ([]ir.Value, error) {
	v, err := ir.UnmarshalCanonical([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}
	list, ok := v.(ir.List)
	if !ok {
		return nil, fmt.Errorf("unmarshal values: expected array, got %s", ir.Kind(v))
	}
	return []ir.Value(list), nil
}

// marshalJSON encodes the non-value columns (names, counters, levels).
// A nil slice is stored as an empty array.
func marshalJSON[T any](column string, s []T) (string, error) {
	if s == nil {
		s = []T{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", column, err)
	}
	return string(data), nil
}

func unmarshalJSON[T any](column, data string) ([]T, error) {
	out := []T{}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", column, err)
	}
	return out, nil
}
