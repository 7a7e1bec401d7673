package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fxparams/internal/ir"
	"github.com/roach88/fxparams/internal/params"
)

func TestNewStore(t *testing.T) {
	s := NewStore(t,
		map[string]any{"b": 2, "a": 1.5},
		Layer{Name: "scene", Values: map[string]any{"b": 3}},
	)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "a", s.At(0).Key.Name, "base keys are written in sorted order")

	v, ok := s.Get(ir.NewKey("b"))
	require.True(t, ok)
	assert.Equal(t, ir.Int(3), v)

	slot, ok := s.Slot(ir.NewKey("b"))
	require.True(t, ok)
	assert.Equal(t, 1, slot.DirtyLevel)
	assert.Equal(t, params.LayerID(1), s.Top())
}

func TestSet(t *testing.T) {
	s := NewStore(t, nil)
	Set(t, s, "Light.Color", []any{1.0, 0.5})

	v, ok := s.Get(ir.NewKey("Light.Color"))
	require.True(t, ok)
	assert.True(t, ir.Equal(ir.Floats(1, 0.5), v))
}

func TestLogger(t *testing.T) {
	Logger(t).Info("hello", "k", 1)
}
