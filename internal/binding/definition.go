package binding

import (
	"reflect"

	"github.com/roach88/fxparams/internal/ir"
	"github.com/roach88/fxparams/internal/params"
)

// Unit is a compiled computation unit (an effect permutation) whose inputs
// are tracked by a Definition.
type Unit interface {
	UnitID() string
}

// Definition is the dependency snapshot of a compiled unit.
//
// The five Sorted* slices are index-aligned: index i refers to the same key
// in all of them. SortedKeys, SortedKeyHashes and SortedCompilationValues are
// frozen at bind time; SortedCounters and SortedLevels are refreshed in place
// by the detector. A Definition is owned by exactly one unit and is never
// shared; recompiling builds a new one through Bind.
type Definition struct {
	// SortedKeys are the keys the unit reads, in source order at bind time.
	SortedKeys []ir.Key

	// SortedKeyHashes are the precomputed key hashes, used by IndexOf.
	SortedKeyHashes []uint64

	// SortedCompilationValues are the values the unit was compiled from.
	SortedCompilationValues []ir.Value

	// SortedCounters are the slot counters last synchronized.
	SortedCounters []int64

	// SortedLevels are the slot dirty levels last computed.
	// Nil until levels are computed for the first time.
	SortedLevels []int

	unit Unit

	// hashIndex maps a key hash to its first index; replaces the store-side
	// key mapping registration.
	hashIndex map[uint64]int

	// Live index cache, see LiveIndex.
	live       params.Source
	liveLen    int
	liveIndex  []int
	liveMisses int
}

// Bind snapshots used, the collection of parameters unit was compiled
// against, into a new Definition.
//
// Every slot of used is copied in iteration order. A nil used source yields
// an empty definition. Levels are left uncomputed; callers run
// detect.Detector.ComputeLevels next.
//
// Returns an *Error with CodeMissingUnit (matching ErrInvalidArgument) if
// unit is nil.
func Bind(unit Unit, used params.Source) (*Definition, error) {
	if isNil(unit) {
		return nil, &Error{Code: CodeMissingUnit, Message: "bind requires a computation unit"}
	}

	n := 0
	if used != nil {
		n = used.Len()
	}

	d := &Definition{
		SortedKeys:              make([]ir.Key, n),
		SortedKeyHashes:         make([]uint64, n),
		SortedCompilationValues: make([]ir.Value, n),
		SortedCounters:          make([]int64, n),
		unit:                    unit,
		hashIndex:               make(map[uint64]int, n),
	}

	for i := 0; i < n; i++ {
		slot := used.At(i)
		d.SortedKeys[i] = slot.Key
		d.SortedKeyHashes[i] = slot.Key.Hash
		d.SortedCompilationValues[i] = slot.Value
		d.SortedCounters[i] = slot.Counter
		if _, dup := d.hashIndex[slot.Key.Hash]; !dup {
			d.hashIndex[slot.Key.Hash] = i
		}
	}

	return d, nil
}

// isNil catches both untyped nil and typed nil pointers wrapped in Unit.
func isNil(u Unit) bool {
	if u == nil {
		return true
	}
	v := reflect.ValueOf(u)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// Unit returns the unit the definition was bound for.
func (d *Definition) Unit() Unit {
	return d.unit
}

// Len returns the number of bound keys.
func (d *Definition) Len() int {
	return len(d.SortedKeys)
}

// IndexOf resolves key to its index in the definition in O(1).
func (d *Definition) IndexOf(key ir.Key) (int, bool) {
	return d.IndexOfHash(key.Hash, key.Name)
}

// IndexOfHash resolves a key from its precomputed hash. The name check
// guards against hash collisions, which fall back to a scan.
func (d *Definition) IndexOfHash(hash uint64, name string) (int, bool) {
	i, ok := d.hashIndex[hash]
	if !ok {
		return -1, false
	}
	if d.SortedKeys[i].Name == name {
		return i, true
	}
	for j := i + 1; j < len(d.SortedKeys); j++ {
		if d.SortedKeyHashes[j] == hash && d.SortedKeys[j].Name == name {
			return j, true
		}
	}
	return -1, false
}

// CompilationValue returns the value key had when the unit was bound.
func (d *Definition) CompilationValue(key ir.Key) (ir.Value, bool) {
	i, ok := d.IndexOf(key)
	if !ok {
		return nil, false
	}
	return d.SortedCompilationValues[i], true
}

// UpdateCounter resynchronizes SortedCounters from used, which must be the
// collection (or an identically ordered one) the definition was bound from.
func (d *Definition) UpdateCounter(used params.Source) error {
	if used.Len() != len(d.SortedCounters) {
		return inconsistent(d.unitID(), "used parameters have %d slots, definition has %d", used.Len(), len(d.SortedCounters))
	}
	for i := range d.SortedCounters {
		d.SortedCounters[i] = used.At(i).Counter
	}
	return nil
}

// Validate checks the parallel-array invariant.
// A failure means the definition was modified outside this package and
// detector, a programming error.
func (d *Definition) Validate() error {
	n := len(d.SortedKeys)
	if len(d.SortedKeyHashes) != n {
		return inconsistent(d.unitID(), "%d keys but %d hashes", n, len(d.SortedKeyHashes))
	}
	if len(d.SortedCompilationValues) != n {
		return inconsistent(d.unitID(), "%d keys but %d compilation values", n, len(d.SortedCompilationValues))
	}
	if len(d.SortedCounters) != n {
		return inconsistent(d.unitID(), "%d keys but %d counters", n, len(d.SortedCounters))
	}
	if d.SortedLevels != nil && len(d.SortedLevels) != n {
		return inconsistent(d.unitID(), "%d keys but %d levels", n, len(d.SortedLevels))
	}
	for i, k := range d.SortedKeys {
		if k.Hash != d.SortedKeyHashes[i] {
			return inconsistent(d.unitID(), "hash of key %q at index %d is stale", k.Name, i)
		}
	}
	return nil
}

// LiveIndex returns the slot index of SortedKeys[i] in live, or -1 if live
// does not know the key.
//
// Indices are resolved once per live source and cached. The cache is rebuilt
// when a different source is passed, or when the source has grown since a
// key was found missing. live must be a comparable type (a pointer).
func (d *Definition) LiveIndex(live params.Source, i int) int {
	if d.live != live || (d.liveMisses > 0 && live.Len() != d.liveLen) {
		d.attach(live)
	}
	return d.liveIndex[i]
}

func (d *Definition) attach(live params.Source) {
	if len(d.liveIndex) != len(d.SortedKeys) {
		d.liveIndex = make([]int, len(d.SortedKeys))
	}
	d.liveMisses = 0
	for i, k := range d.SortedKeys {
		idx, ok := live.IndexOf(k)
		if !ok {
			idx = -1
			d.liveMisses++
		}
		d.liveIndex[i] = idx
	}
	d.live = live
	d.liveLen = live.Len()
}

func (d *Definition) unitID() string {
	if d.unit == nil {
		return ""
	}
	return d.unit.UnitID()
}
