// Package binding builds the dependency snapshot of a compiled unit.
//
// A Definition records which keys a unit reads, their hashes, and the values,
// counters and dirty levels observed when the unit was bound. The detect
// package compares it against a live parameter store every frame.
//
// Lifecycle:
//
//	Unbound --Bind--> Bound --HasChanged--> Stable | Dirty
//	Dirty --Bind (new definition)--> Bound
//	Dirty --Resync (same key set)--> Bound
package binding
