package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fxparams/internal/ir"
	"github.com/roach88/fxparams/internal/store"
)

func outcomes(f FrameView) map[string]string {
	m := make(map[string]string, len(f.Results))
	for _, r := range f.Results {
		m[r.Effect] = r.Outcome
	}
	return m
}

func TestFrame_SingleFrame(t *testing.T) {
	dir := writeProject(t, forwardProject)

	out, err := execute(t, &RootOptions{Format: "json"}, NewFrameCommand, dir)
	require.NoError(t, err)

	r := decode[FrameResult](t, out).Data
	require.Len(t, r.Frames, 1)
	f := r.Frames[0]
	assert.Equal(t, int64(1), f.Seq)
	require.Len(t, f.Results, 2)
	assert.Equal(t, "Forward", f.Results[0].Effect)
	assert.Equal(t, "Fog", f.Results[1].Effect)
	assert.Equal(t, map[string]string{"Forward": "bound", "Fog": "bound"}, outcomes(f))
	assert.NotEmpty(t, f.Results[0].Unit)
	assert.Len(t, f.Results[0].ProgramID, 12)
	assert.Empty(t, r.Overrides)
}

func TestFrame_Overrides(t *testing.T) {
	dir := writeProject(t, forwardProject)

	out, err := execute(t, &RootOptions{Format: "json"}, NewFrameCommand, dir,
		"--frames", "3", "--set", "Light.Count=4", "--set", "Fog.Density=0.2")
	require.NoError(t, err)

	r := decode[FrameResult](t, out).Data
	require.Len(t, r.Frames, 3)

	assert.Equal(t, map[string]string{"Forward": "bound", "Fog": "bound"}, outcomes(r.Frames[0]))

	second := r.Frames[1]
	assert.Equal(t, map[string]string{"Forward": "rebound", "Fog": "resynced"}, outcomes(second))
	assert.Equal(t, "Light.Count", second.Results[0].ChangedKey)
	assert.Equal(t, "Fog.Density", second.Results[1].ChangedKey)
	assert.NotEqual(t, r.Frames[0].Results[0].ProgramID, second.Results[0].ProgramID, "new permutation")
	assert.Equal(t, r.Frames[0].Results[1].ProgramID, second.Results[1].ProgramID, "no permutation keys")

	assert.Equal(t, map[string]string{"Forward": "stable", "Fog": "stable"}, outcomes(r.Frames[2]))

	require.Len(t, r.Overrides, 2)
	assert.Equal(t, SlotView{Key: "Light.Count", Kind: "int", Value: "4", Layer: OverrideLayer, Level: 2, Counter: 2}, r.Overrides[0])
	assert.Equal(t, SlotView{Key: "Fog.Density", Kind: "float", Value: "0.2", Layer: OverrideLayer, Level: 1, Counter: 1}, r.Overrides[1])
}

func TestFrame_OverridesForceSecondFrame(t *testing.T) {
	dir := writeProject(t, forwardProject)

	out, err := execute(t, &RootOptions{Format: "text"}, NewFrameCommand, dir, "--set", "Light.Count=9")
	require.NoError(t, err)

	assert.Contains(t, out, "frame 1\n")
	assert.Contains(t, out, "set Light.Count = 9 @cli\n")
	assert.Contains(t, out, "frame 2\n")
	assert.Contains(t, out, "rebound")
	assert.Contains(t, out, "changed=Light.Count")
}

func TestFrame_JournalResumes(t *testing.T) {
	for _, driver := range []string{store.DriverCgo, store.DriverPure} {
		t.Run(driver, func(t *testing.T) {
			dir := writeProject(t, forwardProject)
			db := filepath.Join(t.TempDir(), "fx.db")

			_, err := execute(t, &RootOptions{Format: "json"}, NewFrameCommand, dir, "--frames", "2", "--db", db, "--driver", driver)
			require.NoError(t, err)

			out, err := execute(t, &RootOptions{Format: "json"}, NewFrameCommand, dir, "--db", db, "--driver", driver)
			require.NoError(t, err)

			r := decode[FrameResult](t, out).Data
			require.Len(t, r.Frames, 1)
			assert.Equal(t, int64(3), r.Frames[0].Seq, "clock continues after the journal")
			assert.Equal(t, map[string]string{"Forward": "bound", "Fog": "bound"}, outcomes(r.Frames[0]))
		})
	}
}

func TestFrame_BadFlags(t *testing.T) {
	dir := writeProject(t, forwardProject)

	_, err := execute(t, &RootOptions{Format: "text"}, NewFrameCommand, dir, "--frames", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, &RootOptions{Format: "text"}, NewFrameCommand, dir, "--set", "Light.Count")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "expected key=value")

	_, err = execute(t, &RootOptions{Format: "text"}, NewFrameCommand, dir, "--db", filepath.Join(t.TempDir(), "fx.db"), "--driver", "postgres")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open journal")
}

func TestFrame_LoadFailure(t *testing.T) {
	_, err := execute(t, &RootOptions{Format: "text"}, NewFrameCommand, t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no CUE files found")
}

func TestParseOverride(t *testing.T) {
	tests := []struct {
		in   string
		key  string
		want ir.Value
	}{
		{in: "Light.Count=4", key: "Light.Count", want: ir.Int(4)},
		{in: "Fog.Density=0.25", key: "Fog.Density", want: ir.Float(0.25)},
		{in: "Tonemap.Curve=aces", key: "Tonemap.Curve", want: ir.String("aces")},
		{in: `Tonemap.Curve="filmic"`, key: "Tonemap.Curve", want: ir.String("filmic")},
		{in: "Bloom.Enabled=true", key: "Bloom.Enabled", want: ir.Bool(true)},
		{in: "Material.DiffuseColor=[1,0,0,1]", key: "Material.DiffuseColor", want: ir.L(ir.Int(1), ir.Int(0), ir.Int(0), ir.Int(1))},
		{in: " Light.Count =a=b", key: "Light.Count", want: ir.String("a=b")},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			o, err := parseOverride(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.key, o.key.Name)
			assert.True(t, ir.Equal(tt.want, o.value), "got %s", ir.Format(o.value))
		})
	}

	_, err := parseOverride("noequals")
	require.Error(t, err)
	_, err = parseOverride("=3")
	require.Error(t, err)
}
