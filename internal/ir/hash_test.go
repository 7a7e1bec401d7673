package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueHashDeterminism(t *testing.T) {
	h1, err := ValueHash(Object{"b": Int(1), "a": Floats(1, 0)})
	require.NoError(t, err)
	h2, err := ValueHash(Object{"a": Floats(1, 0), "b": Int(1)})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestPermutationIDChangesWithValues(t *testing.T) {
	keys := Keys("Light.Count", "Shadow.Enabled")

	id1 := MustPermutationID(keys, []Value{Int(2), Bool(true)})
	id2 := MustPermutationID(keys, []Value{Int(2), Bool(true)})
	id3 := MustPermutationID(keys, []Value{Int(3), Bool(true)})

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)
}

func TestPermutationIDEmpty(t *testing.T) {
	id, err := PermutationID(nil, nil)
	require.NoError(t, err)
	assert.Len(t, id, 64)
}

func TestPermutationIDLengthMismatch(t *testing.T) {
	_, err := PermutationID(Keys("A"), nil)
	require.Error(t, err)
}

func TestDomainSeparation(t *testing.T) {
	data := []byte(`1`)
	assert.NotEqual(t, hashWithDomain(DomainValue, data), hashWithDomain(DomainPermutation, data))
}

func TestPermutationIDNonFinite(t *testing.T) {
	keys := []Key{NewKey("Camera.Exposure")}

	nan, err := PermutationID(keys, []Value{Float(math.NaN())})
	require.NoError(t, err)
	again, err := PermutationID(keys, []Value{Float(math.NaN())})
	require.NoError(t, err)
	assert.Equal(t, nan, again, "NaN hashes deterministically")

	inf, err := PermutationID(keys, []Value{Float(math.Inf(1))})
	require.NoError(t, err)
	assert.NotEqual(t, nan, inf)
}
