package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect_JSON(t *testing.T) {
	dir := writeProject(t, forwardProject)

	out, err := execute(t, &RootOptions{Format: "json"}, NewInspectCommand, dir)
	require.NoError(t, err)

	resp := decode[InspectResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	r := resp.Data

	assert.Equal(t, []string{"base", "scene"}, r.Layers)
	require.Len(t, r.Slots, 3)

	assert.Equal(t, SlotView{Key: "Fog.Density", Kind: "float", Value: "0.1", Layer: "base", Level: 0, Counter: 0}, r.Slots[0])
	assert.Equal(t, SlotView{Key: "Light.Count", Kind: "int", Value: "3", Layer: "scene", Level: 1, Counter: 1}, r.Slots[1])
	assert.Equal(t, "Material.DiffuseColor", r.Slots[2].Key)
	assert.Equal(t, "[1.0 0.5 0.2 1.0]", r.Slots[2].Value)

	require.Len(t, r.Effects, 2)
	assert.Equal(t, EffectView{
		Name:     "Forward",
		Reads:    []string{"Material.DiffuseColor", "Light.Count"},
		Permutes: []string{"Light.Count"},
	}, r.Effects[0])
	assert.Empty(t, r.Effects[1].Permutes)
}

func TestInspect_Prefix(t *testing.T) {
	dir := writeProject(t, forwardProject)

	out, err := execute(t, &RootOptions{Format: "json"}, NewInspectCommand, dir, "--prefix", "Light.")
	require.NoError(t, err)

	r := decode[InspectResult](t, out).Data
	require.Len(t, r.Slots, 1)
	assert.Equal(t, "Light.Count", r.Slots[0].Key)
}

func TestInspect_Text(t *testing.T) {
	dir := writeProject(t, forwardProject)

	out, err := execute(t, &RootOptions{Format: "text"}, NewInspectCommand, dir)
	require.NoError(t, err)

	assert.Contains(t, out, "Layers: base > scene")
	assert.Contains(t, out, "Light.Count")
	assert.Contains(t, out, "@scene")
	assert.Contains(t, out, "level=1 counter=1")
	assert.Contains(t, out, "Forward reads=[Material.DiffuseColor Light.Count] permutes=[Light.Count]")
	assert.Contains(t, out, "Fog reads=[Fog.Density]\n")
}

func TestInspect_MissingDir(t *testing.T) {
	out, err := execute(t, &RootOptions{Format: "json"}, NewInspectCommand, "/nonexistent/fx")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decode[any](t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestInspect_MissingArgs(t *testing.T) {
	_, err := execute(t, &RootOptions{Format: "text"}, NewInspectCommand)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
