// Package params implements the layered parameter store consumed by the
// binding and detect packages.
//
// # Layers
//
// A Store is an arena of layers. Layer 0 is the base layer, populated when
// the store is built (effect defaults, material values). Every other layer
// records the index of its parent; the active chain runs from the top layer
// through parents down to the base. Later layers shadow earlier ones for the
// same key.
//
//	base(0) <- scene(1) <- override(2)   top = 2
//
// # Slots
//
// Keys live in a flat slot table. A key's slot index is its insertion order
// and never changes for the life of the store, so consumers may cache
// indices. Each Slot carries the resolved Value, a Counter, and a DirtyLevel:
//
//   - Counter starts at 0 when a key is first defined and is incremented on
//     every write, override, unset, or pop touching the key
//   - DirtyLevel is the number of non-base layers in the active chain that
//     define the key; 0 means only the base layer sets it
//
// The resolved table is maintained incrementally on every mutation, so reads
// through the Source interface are O(1) and do not allocate.
//
// # Concurrency
//
// A Store is not safe for concurrent use. It assumes a single mutator
// goroutine which is also the only reader during change detection.
package params
