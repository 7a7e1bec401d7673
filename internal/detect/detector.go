package detect

import (
	"github.com/roach88/fxparams/internal/binding"
	"github.com/roach88/fxparams/internal/ir"
	"github.com/roach88/fxparams/internal/params"
)

// MissingLevel is the level recorded for keys the live source does not know.
const MissingLevel = -1

// Detector decides whether the inputs of a bound unit changed.
//
// A Detector holds no per-definition state: it reads the live source and
// mutates only the SortedCounters and SortedLevels of the definitions it is
// given. It never writes to the live source.
type Detector struct {
	live    params.Source
	policy  Policy
	metrics *Metrics
}

// Option configures a Detector.
type Option func(*Detector)

// WithPolicy sets the base-layer policy. Default: VerifyBase.
func WithPolicy(p Policy) Option {
	return func(d *Detector) {
		d.policy = p
	}
}

// WithMetrics attaches prometheus counters.
func WithMetrics(m *Metrics) Option {
	return func(d *Detector) {
		d.metrics = m
	}
}

// New creates a detector over the live parameter source.
func New(live params.Source, opts ...Option) *Detector {
	d := &Detector{live: live, policy: VerifyBase}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Live returns the live source the detector reads.
func (d *Detector) Live() params.Source {
	return d.live
}

// Policy returns the base-layer policy in use.
func (d *Detector) Policy() Policy {
	return d.policy
}

// slotAt reads the live slot for index i of def.
// Keys missing from the live source read as an undefined slot at MissingLevel.
func (d *Detector) slotAt(def *binding.Definition, i int) params.Slot {
	idx := def.LiveIndex(d.live, i)
	if idx < 0 {
		return params.Slot{Key: def.SortedKeys[i], DirtyLevel: MissingLevel}
	}
	return d.live.At(idx)
}

// HasChanged reports whether any parameter read by def has diverged from the
// value the unit was compiled from.
func (d *Detector) HasChanged(def *binding.Definition) bool {
	_, changed := d.FirstChange(def)
	return changed
}

// FirstChange returns the index of the first key whose live value differs
// from its compilation value, evaluated as follows for each index i:
//
//   - level 0 under TrustBase: skipped
//   - live level == SortedLevels[i]: equal counters mean unchanged; otherwise
//     the values are compared
//   - live level != SortedLevels[i]: the values are compared, the counter is
//     ignored (an override may have been added or removed)
//
// If levels were never computed every key takes the value comparison path.
// Iteration stops at the first difference.
func (d *Detector) FirstChange(def *binding.Definition) (int, bool) {
	var t tally

	levels := def.SortedLevels
	n := len(levels)
	if levels == nil {
		n = len(def.SortedKeys)
	}

	for i := 0; i < n; i++ {
		slot := d.slotAt(def, i)

		if slot.DirtyLevel == 0 && d.policy == TrustBase {
			t.baseSkips++
			continue
		}

		if levels != nil && levels[i] == slot.DirtyLevel && def.SortedCounters[i] == slot.Counter {
			t.counterHits++
			continue
		}

		t.valueCompares++
		if !ir.Equal(slot.Value, def.SortedCompilationValues[i]) {
			d.metrics.observe(t, true)
			return i, true
		}
	}

	d.metrics.observe(t, false)
	return -1, false
}

// ComputeLevels records the current dirty level of every bound key into
// def.SortedLevels, reusing the slice when its length already matches.
func (d *Detector) ComputeLevels(def *binding.Definition) {
	levels := def.SortedLevels
	if len(levels) != len(def.SortedKeyHashes) {
		levels = make([]int, len(def.SortedKeyHashes))
	}

	for i := range levels {
		levels[i] = d.slotAt(def, i).DirtyLevel
	}

	def.SortedLevels = levels
}

// UpdateCounters resynchronizes def.SortedCounters with the live counters.
// Compilation values are kept: equal counters will short-circuit future
// checks until the keys are written again.
func (d *Detector) UpdateCounters(def *binding.Definition) {
	for i := range def.SortedCounters {
		def.SortedCounters[i] = d.slotAt(def, i).Counter
	}
}

// Resync accepts the current live state without a rebind: UpdateCounters
// followed by ComputeLevels. Use it when the key set is unchanged.
func (d *Detector) Resync(def *binding.Definition) {
	d.UpdateCounters(def)
	d.ComputeLevels(def)
}
