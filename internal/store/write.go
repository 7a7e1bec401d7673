package store

import (
	"context"
	"fmt"

	"github.com/roach88/fxparams/internal/ir"
)

// WriteBinding inserts a binding record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteBinding(ctx context.Context, rec ir.BindingRecord) error {
	if len(rec.Values) != len(rec.Keys) || len(rec.Counters) != len(rec.Keys) {
		return fmt.Errorf("write binding %s: %d keys, %d values, %d counters",
			rec.ID, len(rec.Keys), len(rec.Values), len(rec.Counters))
	}

	keysJSON, err := marshalJSON("keys", rec.Keys)
	if err != nil {
		return fmt.Errorf("write binding: %w", err)
	}
	valuesJSON, err := marshalValues(rec.Values)
	if err != nil {
		return fmt.Errorf("write binding: %w", err)
	}
	countersJSON, err := marshalJSON("counters", rec.Counters)
	if err != nil {
		return fmt.Errorf("write binding: %w", err)
	}
	levelsJSON, err := marshalJSON("levels", rec.Levels)
	if err != nil {
		return fmt.Errorf("write binding: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bindings
		(id, seq, unit_id, effect_name, program_id, keys, comp_values, counters, levels)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Seq,
		rec.UnitID,
		rec.EffectName,
		rec.ProgramID,
		keysJSON,
		valuesJSON,
		countersJSON,
		levelsJSON,
	)
	if err != nil {
		return fmt.Errorf("write binding: %w", err)
	}

	return nil
}

// WriteFrameEvent inserts a frame event.
// An effect has one event per frame: a second write for the same
// (seq, effect_name) is silently ignored.
func (s *Store) WriteFrameEvent(ctx context.Context, ev ir.FrameEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO frame_events
		(seq, effect_name, unit_id, outcome, changed_key, program_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq, effect_name) DO NOTHING
	`,
		ev.Seq,
		ev.EffectName,
		ev.UnitID,
		ev.Outcome,
		ev.ChangedKey,
		ev.ProgramID,
	)
	if err != nil {
		return fmt.Errorf("write frame event: %w", err)
	}
	return nil
}
