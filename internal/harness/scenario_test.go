package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: basic
description: one bind and one check
policy: trust_base
base:
  Light.Count: 2
steps:
  - op: bind
    unit: u
    keys: [Light.Count]
  - op: check
    unit: u
    expect: unchanged
`))
	require.NoError(t, err)

	assert.Equal(t, "basic", s.Name)
	assert.Equal(t, "trust_base", s.Policy)
	assert.Equal(t, map[string]any{"Light.Count": 2}, s.Base)
	require.Len(t, s.Steps, 2)
	assert.Equal(t, OpBind, s.Steps[0].Op)
	assert.Equal(t, []string{"Light.Count"}, s.Steps[0].Keys)
	assert.Equal(t, ExpectUnchanged, s.Steps[1].Expect)
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: a\ndescription: d\nstepz: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			yaml:    "description: d\nsteps: [{op: pop}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: a\nsteps: [{op: pop}]\n",
			wantErr: "description is required",
		},
		{
			name:    "bad policy",
			yaml:    "name: a\ndescription: d\npolicy: lazy\nsteps: [{op: pop}]\n",
			wantErr: "lazy",
		},
		{
			name:    "no steps",
			yaml:    "name: a\ndescription: d\n",
			wantErr: "steps list is required",
		},
		{
			name:    "missing op",
			yaml:    "name: a\ndescription: d\nsteps: [{unit: u}]\n",
			wantErr: "steps[0]: op is required",
		},
		{
			name:    "unknown op",
			yaml:    "name: a\ndescription: d\nsteps: [{op: frobnicate}]\n",
			wantErr: `unknown op "frobnicate"`,
		},
		{
			name:    "set without key",
			yaml:    "name: a\ndescription: d\nsteps: [{op: set, value: 1}]\n",
			wantErr: "key is required for set",
		},
		{
			name:    "push without layer",
			yaml:    "name: a\ndescription: d\nsteps: [{op: push}]\n",
			wantErr: "layer is required for push",
		},
		{
			name:    "bind without unit",
			yaml:    "name: a\ndescription: d\nsteps: [{op: bind}]\n",
			wantErr: "unit is required for bind",
		},
		{
			name:    "check without expect",
			yaml:    "name: a\ndescription: d\nsteps: [{op: check, unit: u}]\n",
			wantErr: "expect must be",
		},
		{
			name:    "changed_key on unchanged",
			yaml:    "name: a\ndescription: d\nsteps: [{op: check, unit: u, expect: unchanged, changed_key: A}]\n",
			wantErr: "changed_key requires expect: changed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_Missing(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenarios(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("b.yml", "name: b\ndescription: d\nsteps: [{op: pop}]\n")
	write("a.yaml", "name: a\ndescription: d\nsteps: [{op: pop}]\n")
	write("notes.txt", "ignored")

	scenarios, err := LoadScenarios(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "a", scenarios[0].Name)
	assert.Equal(t, "b", scenarios[1].Name)
}

func TestLoadScenarios_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenario files found")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: x\n"), 0o644))
	_, err = LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}
