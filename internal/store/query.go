package store

import (
	"fmt"
	"strings"
)

// Predicate is a condition on journal columns.
//
// This is a sealed interface: only types in this package implement it, so
// compileWhere can switch over every case.
type Predicate interface {
	predicateNode()
}

// Equals matches rows whose column equals Value.
type Equals struct {
	Column string
	Value  any
}

func (Equals) predicateNode() {}

// AtLeast matches rows whose column is >= Value.
type AtLeast struct {
	Column string
	Value  int64
}

func (AtLeast) predicateNode() {}

// AtMost matches rows whose column is <= Value.
type AtMost struct {
	Column string
	Value  int64
}

func (AtMost) predicateNode() {}

// And matches rows satisfying every predicate. An empty And matches all rows.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// columns are the filterable columns of each journal table.
var columns = map[string]map[string]bool{
	"bindings": {
		"seq": true, "unit_id": true, "effect_name": true, "program_id": true,
	},
	"frame_events": {
		"seq": true, "effect_name": true, "unit_id": true, "outcome": true,
		"changed_key": true, "program_id": true,
	},
}

// compileWhere compiles p into a WHERE fragment for table. Values are always
// passed as parameters, never interpolated. A nil predicate matches all rows.
func compileWhere(table string, p Predicate) (string, []any, error) {
	cols, ok := columns[table]
	if !ok {
		return "", nil, fmt.Errorf("unknown journal table %q", table)
	}
	if p == nil {
		return "1 = 1", nil, nil
	}
	return compilePredicate(cols, table, p)
}

func compilePredicate(cols map[string]bool, table string, p Predicate) (string, []any, error) {
	checkColumn := func(c string) error {
		if !cols[c] {
			return fmt.Errorf("%s has no filterable column %q", table, c)
		}
		return nil
	}

	switch pred := p.(type) {
	case Equals:
		if err := checkColumn(pred.Column); err != nil {
			return "", nil, err
		}
		return pred.Column + " = ?", []any{pred.Value}, nil

	case AtLeast:
		if err := checkColumn(pred.Column); err != nil {
			return "", nil, err
		}
		return pred.Column + " >= ?", []any{pred.Value}, nil

	case AtMost:
		if err := checkColumn(pred.Column); err != nil {
			return "", nil, err
		}
		return pred.Column + " <= ?", []any{pred.Value}, nil

	case And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil
		}
		parts := make([]string, 0, len(pred.Predicates))
		var params []any
		for _, sub := range pred.Predicates {
			sql, subParams, err := compilePredicate(cols, table, sub)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			params = append(params, subParams...)
		}
		return strings.Join(parts, " AND "), params, nil

	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// Filter narrows journal reads. Zero fields do not filter.
type Filter struct {
	Effect  string
	Outcome string // frame events only; bindings carry no outcome
	FromSeq int64  // inclusive
	ToSeq   int64  // inclusive
}

// ForEffect returns a filter matching one effect, or every effect when
// effect is empty.
func ForEffect(effect string) Filter {
	return Filter{Effect: effect}
}

// predicate returns the conditions of f that apply to table.
func (f Filter) predicate(table string) Predicate {
	var preds []Predicate
	if f.Effect != "" {
		preds = append(preds, Equals{Column: "effect_name", Value: f.Effect})
	}
	if f.Outcome != "" && table == "frame_events" {
		preds = append(preds, Equals{Column: "outcome", Value: f.Outcome})
	}
	if f.FromSeq > 0 {
		preds = append(preds, AtLeast{Column: "seq", Value: f.FromSeq})
	}
	if f.ToSeq > 0 {
		preds = append(preds, AtMost{Column: "seq", Value: f.ToSeq})
	}
	return And{Predicates: preds}
}

// Validate rejects negative or inverted frame ranges.
func (f Filter) Validate() error {
	if f.FromSeq < 0 || f.ToSeq < 0 {
		return fmt.Errorf("frame range must not be negative")
	}
	if f.ToSeq > 0 && f.FromSeq > f.ToSeq {
		return fmt.Errorf("frame range %d..%d is empty", f.FromSeq, f.ToSeq)
	}
	return nil
}
