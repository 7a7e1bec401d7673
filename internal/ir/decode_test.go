package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalCanonical_PreservesKinds(t *testing.T) {
	in := L(Int(1), Float(1), Float(0.25), String("a<b"), Bool(false), Null{},
		Object{"z": Int(-3), "a": L()})

	data, err := MarshalCanonical(in)
	require.NoError(t, err)

	out, err := UnmarshalCanonical(data)
	require.NoError(t, err)
	assert.True(t, Equal(in, out), "got %s", Format(out))
}

func TestUnmarshalCanonical_LargeInt(t *testing.T) {
	out, err := UnmarshalCanonical([]byte("9007199254740993"))
	require.NoError(t, err)
	assert.Equal(t, Int(9007199254740993), out)
}

func TestUnmarshalCanonical_Errors(t *testing.T) {
	_, err := UnmarshalCanonical([]byte("[1,"))
	assert.Error(t, err)

	_, err = UnmarshalCanonical([]byte("1 2"))
	assert.Error(t, err)
}
