package harness

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/fxparams/internal/binding"
	"github.com/roach88/fxparams/internal/detect"
	"github.com/roach88/fxparams/internal/ir"
	"github.com/roach88/fxparams/internal/params"
)

// unit is the computation unit a scenario binds; it only carries a name.
type unit string

func (u unit) UnitID() string { return string(u) }

// Harness executes the steps of one scenario against a fresh store.
type Harness struct {
	store    *params.Store
	detector *detect.Detector
	defs     map[string]*binding.Definition
	logger   *slog.Logger
	seq      int
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh store. A check that does not match its
// expectation fails the result but does not stop the run. Steps that cannot
// be executed at all (popping the base layer, checking an unbound unit)
// abort with an error.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is like Run and logs each step at debug level.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	policy, err := detect.ParsePolicy(scenario.Policy)
	if err != nil {
		return nil, err
	}

	store := params.New(scenario.Name)
	h := &Harness{
		store:    store,
		detector: detect.New(store, detect.WithPolicy(policy)),
		defs:     make(map[string]*binding.Definition),
		logger:   logger,
	}

	result := NewResult()
	result.AddTrace(fmt.Sprintf("scenario %s policy=%s", scenario.Name, policy))

	base, err := h.writeBase(scenario.Base)
	if err != nil {
		return nil, fmt.Errorf("base: %w", err)
	}
	result.AddTrace(base)

	for i, step := range scenario.Steps {
		h.seq++
		line, err := h.execute(step, result)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Op, err)
		}
		result.AddTrace(fmt.Sprintf("%03d %s", h.seq, line))

		h.logger.Debug("scenario step",
			"scenario", scenario.Name,
			"seq", h.seq,
			"op", step.Op,
			"trace", line,
		)
	}

	return result, nil
}

func (h *Harness) writeBase(base map[string]any) (string, error) {
	if len(base) == 0 {
		return "base (empty)", nil
	}

	names := make([]string, 0, len(base))
	for name := range base {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		key, val, err := convert(name, base[name])
		if err != nil {
			return "", err
		}
		h.store.Set(key, val)
		parts[i] = fmt.Sprintf("%s=%s", name, ir.Format(val))
	}
	return "base " + strings.Join(parts, " "), nil
}

func convert(name string, v any) (ir.Key, ir.Value, error) {
	key, err := ir.ParseKey(name)
	if err != nil {
		return ir.Key{}, nil, err
	}
	val, err := ir.FromAny(v)
	if err != nil {
		return ir.Key{}, nil, fmt.Errorf("%s: %w", name, err)
	}
	return key, val, nil
}

// execute runs one step and returns its trace line.
func (h *Harness) execute(st Step, result *Result) (string, error) {
	switch st.Op {
	case OpSet:
		key, val, err := convert(st.Key, st.Value)
		if err != nil {
			return "", err
		}
		h.store.Set(key, val)
		return fmt.Sprintf("set %s = %s @%s %s", st.Key, ir.Format(val), h.topName(), h.slotState(key)), nil

	case OpUnset:
		key, err := ir.ParseKey(st.Key)
		if err != nil {
			return "", err
		}
		layer := h.topName()
		if err := h.store.Unset(key); err != nil {
			return "", err
		}
		return fmt.Sprintf("unset %s @%s %s", st.Key, layer, h.slotState(key)), nil

	case OpPush:
		h.store.Push(st.Layer)
		return fmt.Sprintf("push %s depth=%d", st.Layer, h.store.Depth()), nil

	case OpPop:
		layer := h.topName()
		if _, err := h.store.Pop(); err != nil {
			return "", err
		}
		return fmt.Sprintf("pop %s depth=%d", layer, h.store.Depth()), nil

	case OpBind:
		return h.bind(st)
	}

	def, ok := h.defs[st.Unit]
	if !ok {
		return "", fmt.Errorf("unit %q is not bound", st.Unit)
	}

	switch st.Op {
	case OpComputeLevels:
		h.detector.ComputeLevels(def)
		return fmt.Sprintf("compute_levels %s levels=%v", st.Unit, def.SortedLevels), nil

	case OpUpdateCounters:
		h.detector.UpdateCounters(def)
		return fmt.Sprintf("update_counters %s counters=%v", st.Unit, def.SortedCounters), nil

	case OpResync:
		h.detector.Resync(def)
		return fmt.Sprintf("resync %s counters=%v levels=%v", st.Unit, def.SortedCounters, def.SortedLevels), nil

	case OpCheck:
		return h.check(st, def, result), nil
	}

	return "", fmt.Errorf("unknown op %q", st.Op)
}

func (h *Harness) bind(st Step) (string, error) {
	var used params.Source
	if len(st.Keys) > 0 {
		keys := make([]ir.Key, len(st.Keys))
		for i, name := range st.Keys {
			key, err := ir.ParseKey(name)
			if err != nil {
				return "", err
			}
			keys[i] = key
		}
		used = params.NewSnapshot(h.store, keys)
	} else {
		used = params.Capture(h.store)
	}

	def, err := binding.Bind(unit(st.Unit), used)
	if err != nil {
		return "", err
	}
	h.defs[st.Unit] = def

	names := make([]string, def.Len())
	for i, k := range def.SortedKeys {
		names[i] = k.Name
	}
	return fmt.Sprintf("bind %s keys=[%s]", st.Unit, strings.Join(names, " ")), nil
}

func (h *Harness) check(st Step, def *binding.Definition, result *Result) string {
	i, changed := h.detector.FirstChange(def)

	line := fmt.Sprintf("check %s unchanged", st.Unit)
	changedKey := ""
	if changed {
		changedKey = def.SortedKeys[i].Name
		line = fmt.Sprintf("check %s changed at %s", st.Unit, changedKey)
	}

	var failure string
	switch {
	case changed && st.Expect == ExpectUnchanged:
		failure = "expected unchanged"
	case !changed && st.Expect == ExpectChanged:
		failure = "expected changed"
	case st.ChangedKey != "" && changedKey != st.ChangedKey:
		failure = fmt.Sprintf("expected change at %s", st.ChangedKey)
	}

	if failure != "" {
		result.AddError(fmt.Sprintf("step %03d: %s: %s", h.seq, line, failure))
		line += " FAIL: " + failure
	}
	return line
}

func (h *Harness) topName() string {
	layers := h.store.Layers()
	return layers[len(layers)-1].Name
}

func (h *Harness) slotState(key ir.Key) string {
	slot, _ := h.store.Slot(key)
	return fmt.Sprintf("counter=%d level=%d", slot.Counter, slot.DirtyLevel)
}
