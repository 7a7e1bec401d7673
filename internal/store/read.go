package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/fxparams/internal/ir"
)

// ReadBindings returns the binding records matching f.
// Results ordered by seq ASC, id ASC.
func (s *Store) ReadBindings(ctx context.Context, f Filter) ([]ir.BindingRecord, error) {
	where, params, err := compileWhere("bindings", f.predicate("bindings"))
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, unit_id, effect_name, program_id, keys, comp_values, counters, levels
		FROM bindings
		WHERE `+where+`
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, params...)
	if err != nil {
		return nil, fmt.Errorf("query bindings: %w", err)
	}
	defer rows.Close()

	records := []ir.BindingRecord{}
	for rows.Next() {
		rec, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bindings: %w", err)
	}

	return records, nil
}

// ReadLatestBinding returns the most recent binding of effect.
// Returns sql.ErrNoRows if the effect was never bound.
func (s *Store) ReadLatestBinding(ctx context.Context, effect string) (ir.BindingRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, unit_id, effect_name, program_id, keys, comp_values, counters, levels
		FROM bindings
		WHERE effect_name = ?
		ORDER BY seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`, effect)
	return scanBinding(row)
}

// ReadFrameEvents returns the frame events matching f.
// Results ordered by seq ASC, effect_name ASC.
func (s *Store) ReadFrameEvents(ctx context.Context, f Filter) ([]ir.FrameEvent, error) {
	where, params, err := compileWhere("frame_events", f.predicate("frame_events"))
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, effect_name, unit_id, outcome, changed_key, program_id
		FROM frame_events
		WHERE `+where+`
		ORDER BY seq ASC, effect_name COLLATE BINARY ASC
	`, params...)
	if err != nil {
		return nil, fmt.Errorf("query frame events: %w", err)
	}
	defer rows.Close()

	events := []ir.FrameEvent{}
	for rows.Next() {
		var ev ir.FrameEvent
		if err := rows.Scan(&ev.Seq, &ev.EffectName, &ev.UnitID, &ev.Outcome, &ev.ChangedKey, &ev.ProgramID); err != nil {
			return nil, fmt.Errorf("scan frame event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frame events: %w", err)
	}

	return events, nil
}

// OutcomeCounts returns how many frame events matching f ended with each
// outcome.
func (s *Store) OutcomeCounts(ctx context.Context, f Filter) (map[string]int, error) {
	where, params, err := compileWhere("frame_events", f.predicate("frame_events"))
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT outcome, COUNT(*)
		FROM frame_events
		WHERE `+where+`
		GROUP BY outcome
		ORDER BY outcome COLLATE BINARY ASC
	`, params...)
	if err != nil {
		return nil, fmt.Errorf("query outcome counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		counts[outcome] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome counts: %w", err)
	}
	return counts, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBinding(row rowScanner) (ir.BindingRecord, error) {
	var rec ir.BindingRecord
	var keysJSON, valuesJSON, countersJSON, levelsJSON string

	if err := row.Scan(
		&rec.ID, &rec.Seq, &rec.UnitID, &rec.EffectName, &rec.ProgramID,
		&keysJSON, &valuesJSON, &countersJSON, &levelsJSON,
	); err != nil {
		if err == sql.ErrNoRows {
			return ir.BindingRecord{}, err
		}
		return ir.BindingRecord{}, fmt.Errorf("scan binding: %w", err)
	}

	var err error
	if rec.Keys, err = unmarshalJSON[string]("keys", keysJSON); err != nil {
		return ir.BindingRecord{}, err
	}
	if rec.Values, err = unmarshalValues(valuesJSON); err != nil {
		return ir.BindingRecord{}, err
	}
	if rec.Counters, err = unmarshalJSON[int64]("counters", countersJSON); err != nil {
		return ir.BindingRecord{}, err
	}
	if rec.Levels, err = unmarshalJSON[int]("levels", levelsJSON); err != nil {
		return ir.BindingRecord{}, err
	}

	return rec, nil
}
