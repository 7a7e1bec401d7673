package params

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/btree"

	"github.com/roach88/fxparams/internal/ir"
)

// LayerID indexes the layer arena of a Store.
type LayerID int

// BaseLayer is the root layer every store starts with.
const BaseLayer LayerID = 0

// NoLayer is the parent of the base layer.
const NoLayer LayerID = -1

// nameIndexDegree is the btree degree of the key name index.
const nameIndexDegree = 16

// Store errors.
var (
	// ErrBaseLayer is returned when popping or unsetting on the base layer.
	ErrBaseLayer = errors.New("operation not permitted on the base layer")

	// ErrUnknownLayer is returned for layer ids that are not in the active chain.
	ErrUnknownLayer = errors.New("unknown or inactive layer")

	// ErrNotDefined is returned when unsetting a key the layer does not define.
	ErrNotDefined = errors.New("key not defined in layer")
)

// LayerInfo describes one layer of the active chain.
type LayerInfo struct {
	ID      LayerID
	Name    string
	Parent  LayerID
	Defined int // number of keys this layer defines
}

type layer struct {
	name   string
	parent LayerID
	values map[int]ir.Value // slot index -> value
	order  []int            // slot indices in definition order
	active bool
}

// Store is a layered, versioned parameter collection.
//
// INVARIANTS:
//   - slots[i].Key == keys inserted i-th; indices never move
//   - slots[i] always reflects the resolution of the active chain
//   - layers[BaseLayer] is always active
type Store struct {
	name   string
	slots  []Slot
	index  map[ir.Key]int
	names  *btree.BTreeG[ir.Key]
	layers []layer
	top    LayerID
}

var _ Source = (*Store)(nil)

// New creates an empty store with only the base layer.
func New(name string) *Store {
	return &Store{
		name:  name,
		index: make(map[ir.Key]int),
		names: btree.NewG(nameIndexDegree, func(a, b ir.Key) bool { return a.Name < b.Name }),
		layers: []layer{{
			name:   "base",
			parent: NoLayer,
			values: make(map[int]ir.Value),
			active: true,
		}},
		top: BaseLayer,
	}
}

// Name returns the store name given to New.
func (s *Store) Name() string {
	return s.name
}

// Len implements Source.
func (s *Store) Len() int {
	return len(s.slots)
}

// At implements Source.
func (s *Store) At(i int) Slot {
	return s.slots[i]
}

// IndexOf implements Source.
func (s *Store) IndexOf(key ir.Key) (int, bool) {
	i, ok := s.index[key]
	return i, ok
}

// Get returns the resolved value of key.
// The boolean is false when the key is unknown or no active layer defines it.
func (s *Store) Get(key ir.Key) (ir.Value, bool) {
	i, ok := s.index[key]
	if !ok || s.slots[i].Value == nil {
		return nil, false
	}
	return s.slots[i].Value, true
}

// Slot returns the resolved slot of key.
func (s *Store) Slot(key ir.Key) (Slot, bool) {
	i, ok := s.index[key]
	if !ok {
		return Slot{}, false
	}
	return s.slots[i], true
}

// Keys returns all keys in insertion order.
func (s *Store) Keys() []ir.Key {
	out := make([]ir.Key, len(s.slots))
	for i, slot := range s.slots {
		out[i] = slot.Key
	}
	return out
}

// KeysWithPrefix returns the keys whose name starts with prefix, sorted by
// name. An empty prefix returns every key.
func (s *Store) KeysWithPrefix(prefix string) []ir.Key {
	var out []ir.Key
	s.names.AscendGreaterOrEqual(ir.Key{Name: prefix}, func(k ir.Key) bool {
		if !strings.HasPrefix(k.Name, prefix) {
			return false
		}
		out = append(out, k)
		return true
	})
	return out
}

// Top returns the current top layer.
func (s *Store) Top() LayerID {
	return s.top
}

// Depth returns the number of layers above the base in the active chain.
func (s *Store) Depth() int {
	depth := 0
	for id := s.top; id != BaseLayer; id = s.layers[id].parent {
		depth++
	}
	return depth
}

// Layers returns the active chain, base first.
func (s *Store) Layers() []LayerInfo {
	var chain []LayerInfo
	for id := s.top; id != NoLayer; id = s.layers[id].parent {
		l := &s.layers[id]
		chain = append(chain, LayerInfo{ID: id, Name: l.name, Parent: l.parent, Defined: len(l.order)})
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// LayerByName finds an active layer by name, searching from the top.
func (s *Store) LayerByName(name string) (LayerID, bool) {
	for id := s.top; id != NoLayer; id = s.layers[id].parent {
		if s.layers[id].name == name {
			return id, true
		}
	}
	return NoLayer, false
}

// Push creates a new layer on top of the active chain and returns its id.
func (s *Store) Push(name string) LayerID {
	s.layers = append(s.layers, layer{
		name:   name,
		parent: s.top,
		values: make(map[int]ir.Value),
		active: true,
	})
	s.top = LayerID(len(s.layers) - 1)
	return s.top
}

// Pop removes the top layer. Every key it defined has its counter bumped and
// is re-resolved against the remaining chain.
func (s *Store) Pop() (LayerID, error) {
	if s.top == BaseLayer {
		return NoLayer, fmt.Errorf("pop: %w", ErrBaseLayer)
	}

	popped := s.top
	l := &s.layers[popped]
	l.active = false
	s.top = l.parent

	for _, i := range l.order {
		s.slots[i].Counter++
		s.resolve(i)
	}
	return popped, nil
}

// Set writes key on the top layer. Panics on a zero key, the only error
// SetAt can return for the top layer.
func (s *Store) Set(key ir.Key, v ir.Value) {
	if err := s.SetAt(s.top, key, v); err != nil {
		panic(err)
	}
}

// SetAt writes key on the given active layer.
//
// A key's Counter stays 0 on its first definition and is incremented on every
// later write, even when the written value is equal or shadowed by a higher
// layer. A nil value is stored as ir.Null{}.
func (s *Store) SetAt(id LayerID, key ir.Key, v ir.Value) error {
	if err := s.checkActive(id); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if key.IsZero() {
		return fmt.Errorf("set: zero key")
	}
	if v == nil {
		v = ir.Null{}
	}

	i, known := s.index[key]
	if !known {
		i = len(s.slots)
		s.slots = append(s.slots, Slot{Key: key})
		s.index[key] = i
		s.names.ReplaceOrInsert(key)
	} else {
		s.slots[i].Counter++
	}

	l := &s.layers[id]
	if _, defined := l.values[i]; !defined {
		l.order = append(l.order, i)
	}
	l.values[i] = v

	s.resolve(i)
	return nil
}

// Unset removes key from the top layer.
func (s *Store) Unset(key ir.Key) error {
	return s.UnsetAt(s.top, key)
}

// UnsetAt removes key from the given active, non-base layer.
func (s *Store) UnsetAt(id LayerID, key ir.Key) error {
	if err := s.checkActive(id); err != nil {
		return fmt.Errorf("unset %s: %w", key, err)
	}
	if id == BaseLayer {
		return fmt.Errorf("unset %s: %w", key, ErrBaseLayer)
	}

	i, known := s.index[key]
	l := &s.layers[id]
	if !known {
		return fmt.Errorf("unset %s: %w", key, ErrNotDefined)
	}
	if _, defined := l.values[i]; !defined {
		return fmt.Errorf("unset %s: %w", key, ErrNotDefined)
	}

	delete(l.values, i)
	for pos, idx := range l.order {
		if idx == i {
			l.order = append(l.order[:pos], l.order[pos+1:]...)
			break
		}
	}

	s.slots[i].Counter++
	s.resolve(i)
	return nil
}

// Defined returns the keys the given active layer defines, in definition order.
func (s *Store) Defined(id LayerID) ([]ir.Key, error) {
	if err := s.checkActive(id); err != nil {
		return nil, err
	}
	l := &s.layers[id]
	out := make([]ir.Key, len(l.order))
	for pos, i := range l.order {
		out[pos] = s.slots[i].Key
	}
	return out, nil
}

// LayerValue returns the value the given layer itself defines for key,
// ignoring the rest of the chain.
func (s *Store) LayerValue(id LayerID, key ir.Key) (ir.Value, bool) {
	if s.checkActive(id) != nil {
		return nil, false
	}
	i, ok := s.index[key]
	if !ok {
		return nil, false
	}
	v, ok := s.layers[id].values[i]
	return v, ok
}

func (s *Store) checkActive(id LayerID) error {
	if id < 0 || int(id) >= len(s.layers) || !s.layers[id].active {
		return fmt.Errorf("layer %d: %w", id, ErrUnknownLayer)
	}
	return nil
}

// resolve recomputes the value and dirty level of slot i from the active chain.
func (s *Store) resolve(i int) {
	var (
		value ir.Value
		level int
		found bool
	)
	for id := s.top; id != NoLayer; id = s.layers[id].parent {
		v, ok := s.layers[id].values[i]
		if !ok {
			continue
		}
		if !found {
			value = v
			found = true
		}
		if id != BaseLayer {
			level++
		}
	}
	s.slots[i].Value = value
	s.slots[i].DirtyLevel = level
}
