package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fxparams/internal/engine"
	"github.com/roach88/fxparams/internal/ir"
	"github.com/roach88/fxparams/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	journalFlags
	Effect  string // optional - filter to one effect
	Outcome string
	From    int64
	To      int64
	Latest  bool
}

// BindingView is a journaled binding with its compilation values rendered.
type BindingView struct {
	Seq       int64    `json:"seq"`
	Effect    string   `json:"effect"`
	Unit      string   `json:"unit"`
	ProgramID string   `json:"program_id"`
	Params    []string `json:"params"` // "key=value"
	Counters  []int64  `json:"counters"`
	Levels    []int    `json:"levels"`
}

// HistoryResult is the output of the history command.
type HistoryResult struct {
	Events   []ir.FrameEvent `json:"events"`
	Bindings []BindingView   `json:"bindings"`
	Outcomes map[string]int  `json:"outcomes"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print journaled frames and bindings",
		Long: `Read a journal written by frame or watch and print, in frame order, the
outcome of every effect and the parameter values each binding was compiled
from.

Examples:
  fxparams history --db ./fx.db
  fxparams history --db ./fx.db --effect Forward
  fxparams history --db ./fx.db --outcome rebound --from 10 --to 20
  fxparams history --db ./fx.db --effect Forward --latest
  fxparams history --db ./fx.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Effect, "effect", "", "only show this effect")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "only show frame events with this outcome")
	cmd.Flags().Int64Var(&opts.From, "from", 0, "first frame to show")
	cmd.Flags().Int64Var(&opts.To, "to", 0, "last frame to show")
	cmd.Flags().BoolVar(&opts.Latest, "latest", false, "only show the most recent binding of --effect")
	opts.journalFlags.register(cmd)

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	out := opts.output(cmd)

	filter := store.Filter{Effect: opts.Effect, Outcome: opts.Outcome, FromSeq: opts.From, ToSeq: opts.To}
	if err := filter.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid frame range", err)
	}
	if opts.Outcome != "" && !validOutcome(opts.Outcome) {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown outcome %q", opts.Outcome))
	}
	if opts.Latest {
		if opts.Effect == "" {
			return NewExitError(ExitCommandError, "--latest requires --effect")
		}
		if opts.Outcome != "" || opts.From != 0 || opts.To != 0 {
			return NewExitError(ExitCommandError, "--latest cannot be combined with --outcome, --from or --to")
		}
	}

	path, driver, err := opts.journalFlags.resolve(opts.RootOptions)
	if err != nil {
		return err
	}
	if path == "" {
		return NewExitError(ExitCommandError, "no journal: pass --db or set journal.path in the config")
	}
	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", path), err)
	}

	st, err := store.OpenWithDriver(driver, path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Latest {
		return runLatest(ctx, st, opts.Effect, out, cmd.OutOrStdout())
	}

	result, err := readHistory(ctx, st, filter)
	if err != nil {
		if out.JSON() {
			_ = out.Error(ErrCodeJournal, err.Error(), nil)
		}
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if out.JSON() {
		return out.Success(result)
	}
	writeHistoryText(cmd.OutOrStdout(), result, opts.Effect)
	return nil
}

func validOutcome(o string) bool {
	switch engine.Outcome(o) {
	case engine.OutcomeBound, engine.OutcomeStable, engine.OutcomeResynced, engine.OutcomeRebound, engine.OutcomeFailed:
		return true
	}
	return false
}

func readHistory(ctx context.Context, st *store.Store, f store.Filter) (HistoryResult, error) {
	events, err := st.ReadFrameEvents(ctx, f)
	if err != nil {
		return HistoryResult{}, err
	}
	records, err := st.ReadBindings(ctx, f)
	if err != nil {
		return HistoryResult{}, err
	}
	outcomes, err := st.OutcomeCounts(ctx, f)
	if err != nil {
		return HistoryResult{}, err
	}

	bindings := make([]BindingView, len(records))
	for i, rec := range records {
		bindings[i] = newBindingView(rec)
	}

	return HistoryResult{Events: events, Bindings: bindings, Outcomes: outcomes}, nil
}

// runLatest prints the binding effect currently runs with.
func runLatest(ctx context.Context, st *store.Store, effect string, out *OutputFormatter, w io.Writer) error {
	rec, err := st.ReadLatestBinding(ctx, effect)
	if errors.Is(err, sql.ErrNoRows) {
		msg := "no binding journaled for effect: " + effect
		if out.JSON() {
			_ = out.Error(ErrCodeJournal, msg, nil)
		}
		return NewExitError(ExitCommandError, msg)
	}
	if err != nil {
		if out.JSON() {
			_ = out.Error(ErrCodeJournal, err.Error(), nil)
		}
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	view := newBindingView(rec)
	if out.JSON() {
		return out.Success(view)
	}
	fmt.Fprintf(w, "%s bound at frame %d: %s %s\n", view.Effect, view.Seq, view.Unit, view.ProgramID)
	fmt.Fprintf(w, "  %s\n", strings.Join(view.Params, " "))
	return nil
}

func newBindingView(rec ir.BindingRecord) BindingView {
	ps := make([]string, len(rec.Keys))
	for j, k := range rec.Keys {
		ps[j] = k + "=" + ir.Format(rec.Values[j])
	}
	return BindingView{
		Seq:       rec.Seq,
		Effect:    rec.EffectName,
		Unit:      rec.UnitID,
		ProgramID: engine.ShortID(rec.ProgramID),
		Params:    ps,
		Counters:  rec.Counters,
		Levels:    rec.Levels,
	}
}

func writeHistoryText(w io.Writer, r HistoryResult, effect string) {
	if len(r.Events) == 0 {
		if effect != "" {
			fmt.Fprintf(w, "No frames journaled for effect: %s\n", effect)
		} else {
			fmt.Fprintln(w, "No frames journaled.")
		}
		return
	}

	bySeq := make(map[int64][]BindingView)
	for _, b := range r.Bindings {
		bySeq[b.Seq] = append(bySeq[b.Seq], b)
	}

	var seq int64 = -1
	for _, ev := range r.Events {
		if ev.Seq != seq {
			seq = ev.Seq
			fmt.Fprintf(w, "frame %d\n", seq)
		}
		line := fmt.Sprintf("  %-20s %-9s", ev.EffectName, ev.Outcome)
		if ev.UnitID != "" {
			line += " " + ev.UnitID
		}
		if ev.ChangedKey != "" {
			line += " changed=" + ev.ChangedKey
		}
		fmt.Fprintln(w, line)
		for _, b := range bySeq[seq] {
			if b.Effect == ev.EffectName {
				fmt.Fprintf(w, "    %s\n", strings.Join(b.Params, " "))
			}
		}
	}

	outcomes := make([]string, 0, len(r.Outcomes))
	for o := range r.Outcomes {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	parts := make([]string, len(outcomes))
	for i, o := range outcomes {
		parts[i] = fmt.Sprintf("%s=%d", o, r.Outcomes[o])
	}
	fmt.Fprintf(w, "\nOutcomes: %s\n", strings.Join(parts, " "))
}
