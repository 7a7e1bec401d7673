// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/fxparams/internal/ir"
	"github.com/roach88/fxparams/internal/params"
)

// Layer is an override layer fixture. Values are converted with ir.FromAny.
type Layer struct {
	Name   string
	Values map[string]any
}

// NewStore builds a store from plain Go values: base is written to the base
// layer, then each layer is pushed in order. Keys within a layer are written
// in sorted order so slot indices are reproducible.
func NewStore(t testing.TB, base map[string]any, layers ...Layer) *params.Store {
	t.Helper()

	s := params.New("test")
	write(t, s, base)
	for _, l := range layers {
		s.Push(l.Name)
		write(t, s, l.Values)
	}
	return s
}

// Set converts v and writes it to the top layer of s.
func Set(t testing.TB, s *params.Store, name string, v any) {
	t.Helper()

	key, err := ir.ParseKey(name)
	require.NoError(t, err)
	val, err := ir.FromAny(v)
	require.NoError(t, err)
	s.Set(key, val)
}

func write(t testing.TB, s *params.Store, values map[string]any) {
	t.Helper()

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		Set(t, s, name, values[name])
	}
}
