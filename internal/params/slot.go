package params

import "github.com/roach88/fxparams/internal/ir"

// Slot is the resolved state of one key.
type Slot struct {
	Key ir.Key

	// Value is the value of the nearest layer defining Key, or nil if no
	// active layer defines it any more.
	Value ir.Value

	// Counter is bumped on every write affecting Key. Equal counters imply
	// equal values.
	Counter int64

	// DirtyLevel counts the non-base layers of the active chain defining Key.
	DirtyLevel int
}

// Defined reports whether some active layer defines the slot's key.
func (s Slot) Defined() bool {
	return s.Value != nil
}

// Source is a flattened, read-only view of a parameter collection.
//
// Index i is stable for the life of the source: once IndexOf returns i for a
// key, At(i) keeps referring to that key.
type Source interface {
	// Len returns the number of slots.
	Len() int

	// At returns slot i. Panics if i is out of range.
	At(i int) Slot

	// IndexOf returns the slot index of key.
	IndexOf(key ir.Key) (int, bool)
}

// Snapshot is an immutable Source, typically the subset of a live store that
// a compiled unit reads ("used parameters").
type Snapshot struct {
	slots []Slot
	index map[ir.Key]int
}

var _ Source = (*Snapshot)(nil)

// Capture copies every slot of src.
func Capture(src Source) *Snapshot {
	n := src.Len()
	snap := &Snapshot{
		slots: make([]Slot, n),
		index: make(map[ir.Key]int, n),
	}
	for i := 0; i < n; i++ {
		slot := src.At(i)
		snap.slots[i] = slot
		snap.index[slot.Key] = i
	}
	return snap
}

// NewSnapshot copies the slots of src whose key is in keys.
//
// Slots appear in src order, not in keys order. Keys that src does not know
// are appended afterwards, in the order given, as undefined slots; a unit
// that reads a missing parameter still depends on it.
// Duplicate keys are collapsed.
func NewSnapshot(src Source, keys []ir.Key) *Snapshot {
	wanted := make(map[ir.Key]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}

	snap := &Snapshot{
		slots: make([]Slot, 0, len(wanted)),
		index: make(map[ir.Key]int, len(wanted)),
	}

	for i := 0; i < src.Len(); i++ {
		slot := src.At(i)
		if !wanted[slot.Key] {
			continue
		}
		snap.index[slot.Key] = len(snap.slots)
		snap.slots = append(snap.slots, slot)
	}

	for _, k := range keys {
		if _, ok := snap.index[k]; ok {
			continue
		}
		snap.index[k] = len(snap.slots)
		snap.slots = append(snap.slots, Slot{Key: k})
	}

	return snap
}

// Len implements Source.
func (s *Snapshot) Len() int {
	return len(s.slots)
}

// At implements Source.
func (s *Snapshot) At(i int) Slot {
	return s.slots[i]
}

// IndexOf implements Source.
func (s *Snapshot) IndexOf(key ir.Key) (int, bool) {
	i, ok := s.index[key]
	return i, ok
}

// Keys returns the snapshot keys in slot order.
func (s *Snapshot) Keys() []ir.Key {
	out := make([]ir.Key, len(s.slots))
	for i, slot := range s.slots {
		out[i] = slot.Key
	}
	return out
}
