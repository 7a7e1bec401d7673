package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/fxparams/internal/detect"
	"github.com/roach88/fxparams/internal/engine"
	"github.com/roach88/fxparams/internal/params"
	"github.com/roach88/fxparams/internal/store"
)

// journalFlags override the journal section of the config.
type journalFlags struct {
	Path   string
	Driver string
}

func (f *journalFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Path, "db", "", "journal database path (default from config, empty disables the journal)")
	cmd.Flags().StringVar(&f.Driver, "driver", "", "journal driver: sqlite3 (cgo) or sqlite (pure Go); default from config")
}

func (f journalFlags) resolve(opts *RootOptions) (path, driver string, err error) {
	cfg, err := opts.Config()
	if err != nil {
		return "", "", err
	}
	path, driver = cfg.Journal.Path, cfg.Journal.Driver
	if f.Path != "" {
		path = f.Path
	}
	if f.Driver != "" {
		driver = f.Driver
	}
	return path, driver, nil
}

// runtime is an engine over a live store with its optional journal.
type runtime struct {
	live    *params.Store
	engine  *engine.Engine
	journal *store.Store
}

// newRuntime builds the engine for live and registers effects. With a
// journal configured, the frame clock resumes after the last journaled frame.
func newRuntime(ctx context.Context, opts *RootOptions, jf journalFlags, live *params.Store, effects []*engine.Effect, logger *slog.Logger, metrics *detect.Metrics) (*runtime, error) {
	cfg, err := opts.Config()
	if err != nil {
		return nil, err
	}
	path, driver, err := jf.resolve(opts)
	if err != nil {
		return nil, err
	}

	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithPolicy(cfg.DetectPolicy()),
	}
	if metrics != nil {
		engOpts = append(engOpts, engine.WithMetrics(metrics))
	}

	rt := &runtime{live: live}
	if path != "" {
		j, err := store.OpenWithDriver(driver, path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		last, err := j.LastSeq(ctx)
		if err != nil {
			_ = j.Close()
			return nil, WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		rt.journal = j
		engOpts = append(engOpts, engine.WithJournal(j), engine.WithClock(engine.NewClockAt(last)))
		logger.Info("journal opened", "path", path, "driver", j.Driver(), "last_seq", last)
	}

	rt.engine = engine.New(live, nil, engOpts...)
	for _, eff := range effects {
		if err := rt.engine.Register(eff); err != nil {
			_ = rt.Close()
			return nil, WrapExitError(ExitCommandError, "failed to register effect", err)
		}
	}
	return rt, nil
}

// Close closes the journal, if any.
func (rt *runtime) Close() error {
	if rt.journal == nil {
		return nil
	}
	return rt.journal.Close()
}

// ResultView is one effect outcome of a frame.
type ResultView struct {
	Effect     string `json:"effect"`
	Unit       string `json:"unit,omitempty"`
	Outcome    string `json:"outcome"`
	ChangedKey string `json:"changed_key,omitempty"`
	ProgramID  string `json:"program_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// FrameView is one evaluated frame.
type FrameView struct {
	Seq     int64        `json:"seq"`
	Results []ResultView `json:"results"`
}

func newFrameView(r *engine.FrameReport) FrameView {
	fv := FrameView{Seq: r.Seq, Results: make([]ResultView, len(r.Results))}
	for i, res := range r.Results {
		rv := ResultView{
			Effect:     res.Effect,
			Unit:       res.Unit,
			Outcome:    string(res.Outcome),
			ChangedKey: res.ChangedKey,
			ProgramID:  engine.ShortID(res.ProgramID),
		}
		if res.Err != nil {
			rv.Error = res.Err.Error()
		}
		fv.Results[i] = rv
	}
	return fv
}

// Failed returns the number of failed effects.
func (fv FrameView) Failed() int {
	n := 0
	for _, r := range fv.Results {
		if r.Outcome == string(engine.OutcomeFailed) {
			n++
		}
	}
	return n
}
