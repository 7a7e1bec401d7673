package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fxparams/internal/ir"
	"github.com/roach88/fxparams/internal/params"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Prefix string
}

// SlotView is one resolved parameter.
type SlotView struct {
	Key     string `json:"key"`
	Kind    string `json:"kind"`
	Value   string `json:"value"`
	Layer   string `json:"layer"` // nearest layer defining the key
	Level   int    `json:"level"`
	Counter int64  `json:"counter"`
}

// EffectView is one declared effect.
type EffectView struct {
	Name     string   `json:"name"`
	Reads    []string `json:"reads"`
	Permutes []string `json:"permutes"`
}

// InspectResult is the output of inspect.
type InspectResult struct {
	Layers  []string     `json:"layers"`
	Slots   []SlotView   `json:"slots"`
	Effects []EffectView `json:"effects"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <project-dir>",
		Short: "Show resolved parameters of a project",
		Long: `Load a CUE parameter project, build its layered store and print every
resolved parameter with the layer it comes from, its dirty level and its
write counter.

Examples:
  fxparams inspect ./fx
  fxparams inspect ./fx --prefix Material.
  fxparams inspect ./fx --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "only show parameters whose name starts with prefix")

	return cmd
}

func runInspect(opts *InspectOptions, dir string, cmd *cobra.Command) error {
	out := opts.output(cmd)

	loaded, err := LoadProject(dir)
	if err != nil {
		return loadFailure(out, err)
	}
	s, err := loaded.BuildStore(dir)
	if err != nil {
		return loadFailure(out, err)
	}

	result := InspectResult{
		Layers:  layerNames(s),
		Slots:   describeSlots(s, opts.Prefix),
		Effects: make([]EffectView, 0, len(loaded.Project.Effects)),
	}
	for _, eff := range loaded.Project.Effects {
		result.Effects = append(result.Effects, EffectView{
			Name:     eff.Name,
			Reads:    keyNames(eff.Reads),
			Permutes: keyNames(eff.Permutes),
		})
	}

	if out.JSON() {
		return out.Success(result)
	}
	writeInspectText(cmd.OutOrStdout(), result)
	return nil
}

// describeSlots lists the slots of s whose name starts with prefix, sorted by
// name.
func describeSlots(s *params.Store, prefix string) []SlotView {
	keys := s.KeysWithPrefix(prefix)
	layers := s.Layers()

	views := make([]SlotView, 0, len(keys))
	for _, k := range keys {
		slot, _ := s.Slot(k)
		view := SlotView{
			Key:     k.Name,
			Kind:    ir.Kind(slot.Value),
			Value:   ir.Format(slot.Value),
			Level:   slot.DirtyLevel,
			Counter: slot.Counter,
		}
		for i := len(layers) - 1; i >= 0; i-- {
			if _, ok := s.LayerValue(layers[i].ID, k); ok {
				view.Layer = layers[i].Name
				break
			}
		}
		views = append(views, view)
	}
	return views
}

func layerNames(s *params.Store) []string {
	layers := s.Layers()
	names := make([]string, len(layers))
	for i, l := range layers {
		names[i] = l.Name
	}
	return names
}

func keyNames(keys []ir.Key) []string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.Name
	}
	return names
}

func writeInspectText(w io.Writer, r InspectResult) {
	fmt.Fprintf(w, "Layers: %s\n", strings.Join(r.Layers, " > "))
	fmt.Fprintln(w)
	for _, sv := range r.Slots {
		layer := sv.Layer
		if layer == "" {
			layer = "-"
		}
		fmt.Fprintf(w, "  %-32s %-24s @%-10s level=%d counter=%d\n", sv.Key, sv.Value, layer, sv.Level, sv.Counter)
	}
	if len(r.Effects) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Effects:")
	for _, e := range r.Effects {
		fmt.Fprintf(w, "  %s reads=[%s]", e.Name, strings.Join(e.Reads, " "))
		if len(e.Permutes) > 0 {
			fmt.Fprintf(w, " permutes=[%s]", strings.Join(e.Permutes, " "))
		}
		fmt.Fprintln(w)
	}
}

// loadFailure reports a project loading error and returns it as a command
// error.
func loadFailure(out *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	var le *LoadError
	if errors.As(err, &le) {
		code = le.Code
	}
	if out.JSON() {
		_ = out.Error(code, err.Error(), nil)
	}
	return WrapExitError(ExitCommandError, "failed to load project", err)
}
