package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	harnessScenarios = "../harness/testdata/scenarios"
	harnessGolden    = "../harness/testdata/golden"
)

const passingScenario = `name: ok
description: a base write is detected
base:
  A: 1
steps:
  - op: bind
    unit: u
  - op: set
    key: A
    value: 2
  - op: check
    unit: u
    expect: changed
`

const failingScenario = `name: wrong
description: expects the opposite of what happens
base:
  A: 1
steps:
  - op: bind
    unit: u
  - op: check
    unit: u
    expect: changed
`

func writeScenario(t *testing.T, dir, file, body string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestTestCommand_HarnessScenarios(t *testing.T) {
	out, err := execute(t, &RootOptions{Format: "json"}, NewTestCommand, harnessScenarios, "--golden", harnessGolden)
	require.NoError(t, err)

	resp := decode[TestResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Zero(t, resp.Data.Failed)
	assert.Equal(t, resp.Data.Total, resp.Data.Passed)
	assert.GreaterOrEqual(t, resp.Data.Total, 5)
	for _, sr := range resp.Data.Scenarios {
		assert.Equal(t, "match", sr.Golden, sr.Name)
	}
}

func TestTestCommand_SingleFile(t *testing.T) {
	path := filepath.Join(harnessScenarios, "trust_base.yaml")
	out, err := execute(t, &RootOptions{Format: "text"}, NewTestCommand, path, "--golden", harnessGolden)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ trust_base")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := execute(t, &RootOptions{Format: "json"}, NewTestCommand, harnessScenarios, "--golden", harnessGolden, "--filter", "base_*")
	require.NoError(t, err)

	r := decode[TestResult](t, out).Data
	require.Equal(t, 1, r.Total)
	assert.Equal(t, "base_overwrite", r.Scenarios[0].Name)
}

func TestTestCommand_Failure(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "ok.yaml", passingScenario)
	writeScenario(t, dir, "wrong.yaml", failingScenario)

	out, err := execute(t, &RootOptions{Format: "json"}, NewTestCommand, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decode[TestResult](t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeScenarioFails, resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)

	wrong := resp.Data.Scenarios[1]
	assert.Equal(t, "wrong", wrong.Name)
	assert.False(t, wrong.Pass)
	assert.Equal(t, "missing", wrong.Golden)
	require.Len(t, wrong.Errors, 1)
	assert.Contains(t, wrong.Errors[0], "expected changed")
}

func TestTestCommand_UpdateThenMatch(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "ok.yaml", passingScenario)

	out, err := execute(t, &RootOptions{Format: "text"}, NewTestCommand, dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ok (golden updated)")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "ok.golden"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(golden), "scenario ok policy=verify\nbase A=1\n"))
	assert.Contains(t, string(golden), "003 check u changed at A\n")

	out, err = execute(t, &RootOptions{Format: "json"}, NewTestCommand, dir)
	require.NoError(t, err)
	assert.Equal(t, "match", decode[TestResult](t, out).Data.Scenarios[0].Golden)
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "ok.yaml", passingScenario)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "ok.golden"), []byte("stale\n"), 0o644))

	out, err := execute(t, &RootOptions{Format: "text"}, NewTestCommand, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ ok")
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommand_LoadError(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken.yaml", "name: broken\nsteps: []\n")

	out, err := execute(t, &RootOptions{Format: "text"}, NewTestCommand, dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommand_MissingPath(t *testing.T) {
	_, err := execute(t, &RootOptions{Format: "text"}, NewTestCommand, "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario path not found")
}

func TestTestCommand_EmptyDir(t *testing.T) {
	out, err := execute(t, &RootOptions{Format: "text"}, NewTestCommand, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")

	out, err = execute(t, &RootOptions{Format: "json"}, NewTestCommand, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "ok", decode[TestResult](t, out).Status)
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "golden")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	for _, name := range []string{"base-a.yaml", "base-b.yml", "other.yaml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(sub, "nested.yaml"), nil, 0o644))

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Len(t, files, 3, "only direct children with a yaml extension")

	files, err = findScenarioFiles(dir, "base-*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("/s", "golden", "ok.golden"), goldenFilePath("", "/s/ok.yaml", "ok"))
	assert.Equal(t, filepath.Join("/g", "named.golden"), goldenFilePath("/g", "/s/ok.yaml", "named"))
}
