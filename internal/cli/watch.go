package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/fxparams/internal/compiler"
	"github.com/roach88/fxparams/internal/detect"
	"github.com/roach88/fxparams/internal/engine"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	journalFlags
	MetricsAddr string
	Debounce    time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <project-dir>",
		Short: "Re-evaluate bindings whenever project files change",
		Long: `Evaluate one frame, then watch the project directory. Every change to a
.cue file reloads the project, applies the differences to the live store and
evaluates another frame. Unchanged parameters keep their counters, so only
effects reading an edited parameter are recompiled.

Detector counters are served on /metrics when --metrics-addr (or
metrics.addr in the config) is set.

Examples:
  fxparams watch ./fx
  fxparams watch ./fx --metrics-addr :9100 --db ./fx.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address (default from config)")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 100*time.Millisecond, "wait this long after the last file event before reloading")
	opts.journalFlags.register(cmd)

	return cmd
}

func runWatch(opts *WatchOptions, dir string, cmd *cobra.Command) error {
	out := opts.output(cmd)
	cfg, err := opts.Config()
	if err != nil {
		return err
	}

	loaded, err := LoadProject(dir)
	if err != nil {
		return loadFailure(out, err)
	}
	live, err := loaded.BuildStore(dir)
	if err != nil {
		return loadFailure(out, err)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := opts.Logger(cmd.ErrOrStderr())
	registry := prometheus.NewRegistry()
	metrics := detect.NewMetrics(registry)

	rt, err := newRuntime(ctx, opts.RootOptions, opts.journalFlags, live, loaded.Effects(), logger, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			logger.Error("error closing journal", "error", closeErr)
		}
	}()

	addr := cfg.Metrics.Addr
	if opts.MetricsAddr != "" {
		addr = opts.MetricsAddr
	}
	if addr != "" {
		srv := serveMetrics(addr, registry, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create file watcher", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return WrapExitError(ExitCommandError, "failed to watch directory", err)
	}

	pw := &projectWatcher{
		dir:    dir,
		rt:     rt,
		logger: logger,
		emit:   frameEmitter(cmd.OutOrStdout(), out.JSON()),
	}

	report, err := rt.engine.Frame(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "frame failed", err)
	}
	pw.emit(newFrameView(report))

	logger.Info("watching project", "dir", dir, "metrics_addr", addr)
	if err := pw.run(ctx, w.Events, w.Errors, opts.Debounce); err != nil {
		return WrapExitError(ExitCommandError, "watch failed", err)
	}
	logger.Info("watch stopped")
	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	return srv
}

func frameEmitter(w io.Writer, asJSON bool) func(FrameView) {
	if asJSON {
		enc := json.NewEncoder(w)
		return func(fv FrameView) { _ = enc.Encode(fv) }
	}
	return func(fv FrameView) {
		fmt.Fprintf(w, "frame %d\n", fv.Seq)
		writeResultsText(w, fv.Results)
	}
}

// projectWatcher reloads a project into a running engine. All store
// mutation and frames happen on the goroutine calling run.
type projectWatcher struct {
	dir    string
	rt     *runtime
	logger *slog.Logger
	emit   func(FrameView)
}

// run waits for .cue file events and reloads once no further event arrived
// for debounce. It returns nil when ctx is done or the event channel closes.
func (pw *projectWatcher) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, debounce time.Duration) error {
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			pw.logger.Debug("project file changed", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(debounce)

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			pw.logger.Warn("file watcher error", "error", err)

		case <-timer.C:
			fv, err := pw.reload(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				var le *LoadError
				if errors.As(err, &le) {
					pw.logger.Error("reload rejected, live parameters unchanged", "error", err)
					continue
				}
				return err
			}
			pw.emit(fv)
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if filepath.Ext(ev.Name) != ".cue" {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}

// reload recompiles the project, applies it to the live store, registers
// effects declared since the last load and evaluates a frame. A *LoadError
// means nothing was written to the live store.
func (pw *projectWatcher) reload(ctx context.Context) (FrameView, error) {
	loaded, err := LoadProject(pw.dir)
	if err != nil {
		return FrameView{}, err
	}

	if err := compiler.ValidateLayers(loaded.Project.Layers); err != nil {
		return FrameView{}, convertCompileError(err)
	}
	writes, err := compiler.ApplyLayers(pw.rt.live, loaded.Project.Layers)
	if err != nil {
		return FrameView{}, fmt.Errorf("apply layers: %w", err)
	}

	for _, eff := range loaded.Effects() {
		if pw.registered(eff.Name) {
			continue
		}
		if err := pw.rt.engine.Register(eff); err != nil {
			pw.logger.Warn("effect not registered", "effect", eff.Name, "error", err)
			continue
		}
		pw.logger.Info("effect registered", "effect", eff.Name)
	}

	pw.logger.Debug("project reloaded", "dir", pw.dir, "writes", writes)

	report, err := pw.rt.engine.Frame(ctx)
	if err != nil {
		if ctx.Err() == nil && engine.IsJournalError(err) {
			pw.logger.Error("journal write failed, bindings kept for retry", "seq", report.Seq, "error", err)
			return newFrameView(report), nil
		}
		return FrameView{}, err
	}
	return newFrameView(report), nil
}

func (pw *projectWatcher) registered(name string) bool {
	for _, eff := range pw.rt.engine.Effects() {
		if eff.Name == name {
			return true
		}
	}
	return false
}
