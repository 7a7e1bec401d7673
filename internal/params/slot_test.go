package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fxparams/internal/ir"
)

func TestCapture_CopiesAllSlots(t *testing.T) {
	s := newBaseStore(t)
	snap := Capture(s)

	require.Equal(t, 2, snap.Len())
	assert.Equal(t, s.At(0), snap.At(0))
	assert.Equal(t, s.At(1), snap.At(1))

	s.Set(keyA, ir.Int(99))
	assert.Equal(t, ir.Int(1), snap.At(0).Value, "snapshot is frozen")
}

func TestNewSnapshot_SourceOrder(t *testing.T) {
	s := newBaseStore(t)
	s.Set(keyC, ir.Int(3))

	snap := NewSnapshot(s, []ir.Key{keyC, keyA})

	assert.Equal(t, []ir.Key{keyA, keyC}, snap.Keys())
	i, ok := snap.IndexOf(keyC)
	require.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = snap.IndexOf(keyB)
	assert.False(t, ok)
}

func TestNewSnapshot_AppendsMissingKeys(t *testing.T) {
	s := newBaseStore(t)
	missing := ir.NewKey("Missing")

	snap := NewSnapshot(s, []ir.Key{missing, keyB, missing})

	require.Equal(t, 2, snap.Len())
	assert.Equal(t, []ir.Key{keyB, missing}, snap.Keys())
	assert.False(t, snap.At(1).Defined())
}
