package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fxparams/internal/ir"
	"github.com/roach88/fxparams/internal/params"
)

// OverrideLayer is the layer --set values are written to.
const OverrideLayer = "cli"

// FrameOptions holds flags for the frame command.
type FrameOptions struct {
	*RootOptions
	journalFlags
	Frames int
	Sets   []string
}

// FrameResult is the output of the frame command.
type FrameResult struct {
	Frames    []FrameView `json:"frames"`
	Overrides []SlotView  `json:"overrides,omitempty"`
}

// NewFrameCommand creates the frame command.
func NewFrameCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FrameOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "frame <project-dir>",
		Short: "Evaluate effect bindings for a number of frames",
		Long: `Build the live store of a project, register its effects and evaluate
them frame by frame. Every frame reports, per effect, whether it was bound,
stable, resynced, rebound or failed.

--set overrides are written to a "cli" layer pushed after the first frame,
so later frames show how the bindings react. With overrides at least two
frames run.

With a journal (--db or journal.path in the config) bindings and frame
events are persisted, and frame numbers continue after the last journaled
frame.

Examples:
  fxparams frame ./fx
  fxparams frame ./fx --frames 3 --set Light.Count=4
  fxparams frame ./fx --set 'Material.DiffuseColor=[1,0,0,1]' --db ./fx.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFrames(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Frames, "frames", 1, "number of frames to evaluate")
	cmd.Flags().StringArrayVar(&opts.Sets, "set", nil, "override a parameter after the first frame (key=value, value as JSON or a bare string)")
	opts.journalFlags.register(cmd)

	return cmd
}

func runFrames(opts *FrameOptions, dir string, cmd *cobra.Command) error {
	out := opts.output(cmd)

	if opts.Frames < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--frames must be at least 1, got %d", opts.Frames))
	}
	overrides := make([]override, 0, len(opts.Sets))
	for _, s := range opts.Sets {
		o, err := parseOverride(s)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --set", err)
		}
		overrides = append(overrides, o)
	}
	frames := opts.Frames
	if len(overrides) > 0 && frames < 2 {
		frames = 2
	}

	loaded, err := LoadProject(dir)
	if err != nil {
		return loadFailure(out, err)
	}
	live, err := loaded.BuildStore(dir)
	if err != nil {
		return loadFailure(out, err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger := opts.Logger(cmd.ErrOrStderr())
	rt, err := newRuntime(ctx, opts.RootOptions, opts.journalFlags, live, loaded.Effects(), logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			logger.Error("error closing journal", "error", closeErr)
		}
	}()

	result := FrameResult{Frames: make([]FrameView, 0, frames)}
	for i := 0; i < frames; i++ {
		if i == 1 && len(overrides) > 0 {
			result.Overrides = applyOverrides(live, overrides)
		}
		report, err := rt.engine.Frame(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "frame failed", err)
		}
		result.Frames = append(result.Frames, newFrameView(report))
	}

	last := result.Frames[len(result.Frames)-1]
	if failed := last.Failed(); failed > 0 {
		msg := fmt.Sprintf("%d effect(s) failed", failed)
		if out.JSON() {
			if err := out.Failure(result, ErrCodeEffectFailed, msg); err != nil {
				return err
			}
		} else {
			writeFramesText(cmd.OutOrStdout(), result)
		}
		return NewExitError(ExitFailure, msg)
	}

	if out.JSON() {
		return out.Success(result)
	}
	writeFramesText(cmd.OutOrStdout(), result)
	return nil
}

type override struct {
	key   ir.Key
	value ir.Value
}

// parseOverride parses key=value. The value is decoded as JSON when
// possible, otherwise taken as a plain string.
func parseOverride(s string) (override, error) {
	name, raw, ok := strings.Cut(s, "=")
	if !ok {
		return override{}, fmt.Errorf("%q: expected key=value", s)
	}
	key, err := ir.ParseKey(strings.TrimSpace(name))
	if err != nil {
		return override{}, fmt.Errorf("%q: %w", s, err)
	}
	val, err := ir.UnmarshalCanonical([]byte(raw))
	if err != nil {
		val = ir.String(raw)
	}
	return override{key: key, value: val}, nil
}

// applyOverrides pushes the override layer and writes every override to it.
func applyOverrides(live *params.Store, overrides []override) []SlotView {
	live.Push(OverrideLayer)
	for _, o := range overrides {
		live.Set(o.key, o.value)
	}

	views := make([]SlotView, 0, len(overrides))
	for _, o := range overrides {
		slot, _ := live.Slot(o.key)
		views = append(views, SlotView{
			Key:     o.key.Name,
			Kind:    ir.Kind(slot.Value),
			Value:   ir.Format(slot.Value),
			Layer:   OverrideLayer,
			Level:   slot.DirtyLevel,
			Counter: slot.Counter,
		})
	}
	return views
}

func writeFramesText(w io.Writer, r FrameResult) {
	for i, f := range r.Frames {
		if i == 1 && len(r.Overrides) > 0 {
			for _, o := range r.Overrides {
				fmt.Fprintf(w, "set %s = %s @%s\n", o.Key, o.Value, o.Layer)
			}
		}
		fmt.Fprintf(w, "frame %d\n", f.Seq)
		writeResultsText(w, f.Results)
	}
}

func writeResultsText(w io.Writer, results []ResultView) {
	for _, res := range results {
		line := fmt.Sprintf("  %-20s %-9s", res.Effect, res.Outcome)
		if res.Unit != "" {
			line += " " + res.Unit
		}
		if res.ChangedKey != "" {
			line += " changed=" + res.ChangedKey
		}
		if res.Error != "" {
			line += " error=" + res.Error
		}
		fmt.Fprintln(w, line)
	}
}
