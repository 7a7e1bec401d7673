package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const forwardProject = `package fx

layers: [
	{name: "base", values: {
		"Material.DiffuseColor": [1.0, 0.5, 0.2, 1.0]
		"Light.Count":           2
		"Fog.Density":           0.1
	}},
	{name: "scene", values: {"Light.Count": 3}},
]

effect: Forward: {
	reads: ["Material.DiffuseColor", "Light.Count"]
	permutes: ["Light.Count"]
}

effect: Fog: reads: ["Fog.Density"]
`

// writeProject writes src as fx.cue into a fresh directory.
func writeProject(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fx.cue"), []byte(src), 0o644))
	return dir
}

// execute runs a single command built by newCmd and returns its stdout.
func execute(t *testing.T, root *RootOptions, newCmd func(*RootOptions) *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := newCmd(root)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if errOut.Len() > 0 {
		t.Log(errOut.String())
	}
	return out.String(), err
}

type response[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *CLIError `json:"error"`
}

func decode[T any](t *testing.T, out string) response[T] {
	t.Helper()
	var resp response[T]
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}
