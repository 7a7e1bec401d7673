package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/fxparams/internal/binding"
	"github.com/roach88/fxparams/internal/detect"
	"github.com/roach88/fxparams/internal/ir"
	"github.com/roach88/fxparams/internal/params"
)

// TracerName is the instrumentation name used for compile spans.
const TracerName = "fxparams/engine"

// Effect is a use-site: a named computation that reads a set of parameters.
// Permutes must be a subset of Reads; their values select the compiled
// program, the other reads only feed it.
type Effect struct {
	ID       string
	Name     string
	Reads    []ir.Key
	Permutes []ir.Key
}

// Program is an effect compiled against the live parameters.
type Program struct {
	// ID identifies the permutation. Recompiling with equal permutation
	// values yields the same ID.
	ID string

	// Used holds the parameters the program was compiled from.
	Used params.Source
}

// Compiler turns an effect into a program.
type Compiler interface {
	Compile(ctx context.Context, eff *Effect, live params.Source) (Program, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(ctx context.Context, eff *Effect, live params.Source) (Program, error)

// Compile implements Compiler.
func (f CompilerFunc) Compile(ctx context.Context, eff *Effect, live params.Source) (Program, error) {
	return f(ctx, eff, live)
}

// PermutationCompiler snapshots the effect's reads and derives the program ID
// from the values of its permutation keys.
type PermutationCompiler struct{}

// Compile implements Compiler.
func (PermutationCompiler) Compile(_ context.Context, eff *Effect, live params.Source) (Program, error) {
	used := params.NewSnapshot(live, eff.Reads)

	values := make([]ir.Value, len(eff.Permutes))
	for i, k := range eff.Permutes {
		if idx, ok := used.IndexOf(k); ok {
			values[i] = used.At(idx).Value
		}
	}

	id, err := ir.PermutationID(eff.Permutes, values)
	if err != nil {
		return Program{}, err
	}
	return Program{ID: id, Used: used}, nil
}

// Unit is a bound program. Each bind creates a new Unit; a Unit never
// changes after creation.
type Unit struct {
	Effect  *Effect
	Program Program
}

// UnitID implements binding.Unit.
func (u *Unit) UnitID() string {
	return u.Effect.ID + "/" + ShortID(u.Program.ID)
}

// ShortID truncates a program ID for display.
func ShortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// Journal persists bindings and frame events. *store.Store implements it.
type Journal interface {
	WriteBinding(ctx context.Context, rec ir.BindingRecord) error
	WriteFrameEvent(ctx context.Context, ev ir.FrameEvent) error
}

// Outcome is what a frame did with a use-site.
type Outcome string

const (
	// OutcomeBound: first successful compile of the effect.
	OutcomeBound Outcome = "bound"

	// OutcomeStable: no parameter read by the unit changed.
	OutcomeStable Outcome = "stable"

	// OutcomeResynced: parameters changed but the recompiled program is the
	// same permutation; counters and levels were refreshed in place.
	OutcomeResynced Outcome = "resynced"

	// OutcomeRebound: a different program was compiled and bound.
	OutcomeRebound Outcome = "rebound"

	// OutcomeFailed: compiling or binding failed; the previous binding, if
	// any, is kept and retried next frame.
	OutcomeFailed Outcome = "failed"
)

// Result describes one use-site in a frame.
type Result struct {
	Effect     string
	Unit       string
	Outcome    Outcome
	ChangedKey string
	ProgramID  string
	Err        error
}

// FrameReport lists the results of one frame in registration order.
type FrameReport struct {
	Seq     int64
	Results []Result
}

// Count returns how many use-sites ended with outcome o.
func (r *FrameReport) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Changed reports whether any use-site was not stable.
func (r *FrameReport) Changed() bool {
	return r.Count(OutcomeStable) != len(r.Results)
}

type site struct {
	effect *Effect
	unit   *Unit
	def    *binding.Definition

	// pending are binding records the journal has not accepted yet, oldest
	// first. They are retried before the site's next frame event.
	pending []ir.BindingRecord
}

// Engine owns the use-sites of a live parameter store and decides, once per
// frame, which of them need recompiling.
//
// Engine is not safe for concurrent use: the live store and the definitions
// are mutated from the goroutine that calls Frame.
type Engine struct {
	live     *params.Store
	compiler Compiler
	detector *detect.Detector
	clock    *Clock
	ids      IDGenerator
	logger   *slog.Logger
	tracer   trace.Tracer
	journal  Journal

	policy  detect.Policy
	metrics *detect.Metrics

	sites  []*site
	byName map[string]*site
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithPolicy sets the detector base-layer policy.
func WithPolicy(p detect.Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithMetrics attaches detector counters.
func WithMetrics(m *detect.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithJournal persists bindings and frame events to j.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithTracer sets the tracer for compile spans.
// Default: otel.Tracer(TracerName) from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithIDGenerator sets the generator for effect and binding ids.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithClock sets the frame clock, e.g. NewClockAt to resume a journal.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an engine over live. A nil compiler selects
// PermutationCompiler.
func New(live *params.Store, compiler Compiler, opts ...Option) *Engine {
	if compiler == nil {
		compiler = PermutationCompiler{}
	}

	e := &Engine{
		live:     live,
		compiler: compiler,
		clock:    NewClock(),
		ids:      UUIDv7Generator{},
		logger:   slog.Default(),
		byName:   make(map[string]*site),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.tracer == nil {
		e.tracer = otel.Tracer(TracerName)
	}
	e.detector = detect.New(live, detect.WithPolicy(e.policy), detect.WithMetrics(e.metrics))

	return e
}

// Live returns the live parameter store.
func (e *Engine) Live() *params.Store {
	return e.live
}

// Detector returns the detector frames run with.
func (e *Engine) Detector() *detect.Detector {
	return e.detector
}

// Clock returns the frame clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Register adds a use-site. Effects are evaluated in registration order.
// The effect is copied; an empty ID is filled from the id generator.
func (e *Engine) Register(eff *Effect) error {
	if eff == nil || eff.Name == "" {
		return &RuntimeError{Code: ErrCodeInvalidEffect, Message: "effect requires a name"}
	}
	if _, dup := e.byName[eff.Name]; dup {
		return &RuntimeError{
			Code:    ErrCodeDuplicateEffect,
			Message: "effect already registered",
			Effect:  eff.Name,
		}
	}
	for _, k := range eff.Permutes {
		if !slices.Contains(eff.Reads, k) {
			return &RuntimeError{
				Code:    ErrCodeInvalidEffect,
				Message: fmt.Sprintf("permutation key %q is not read by the effect", k.Name),
				Effect:  eff.Name,
			}
		}
	}

	cp := &Effect{
		ID:       eff.ID,
		Name:     eff.Name,
		Reads:    slices.Clone(eff.Reads),
		Permutes: slices.Clone(eff.Permutes),
	}
	if cp.ID == "" {
		cp.ID = e.ids.Generate()
	}

	s := &site{effect: cp}
	e.sites = append(e.sites, s)
	e.byName[cp.Name] = s
	return nil
}

// Effects returns the registered effects in registration order.
func (e *Engine) Effects() []*Effect {
	out := make([]*Effect, len(e.sites))
	for i, s := range e.sites {
		out[i] = s.effect
	}
	return out
}

// Unit returns the unit currently bound for the named effect.
func (e *Engine) Unit(name string) (*Unit, bool) {
	s, ok := e.byName[name]
	if !ok || s.unit == nil {
		return nil, false
	}
	return s.unit, true
}

// Definition returns the binding definition of the named effect.
func (e *Engine) Definition(name string) (*binding.Definition, bool) {
	s, ok := e.byName[name]
	if !ok || s.def == nil {
		return nil, false
	}
	return s.def, true
}

// Frame evaluates every use-site once.
//
// Compile and bind failures are reported per site and do not stop the frame.
// Journal failures do not stop it either: every site is still evaluated, the
// unwritten binding records are retried on later frames, and the journal
// errors are returned joined with the complete report. If ctx is done the
// frame stops and the report holds the sites evaluated so far.
func (e *Engine) Frame(ctx context.Context) (*FrameReport, error) {
	seq := e.clock.Next()
	report := &FrameReport{Seq: seq, Results: make([]Result, 0, len(e.sites))}

	var journalErrs []error
	for _, s := range e.sites {
		if err := ctx.Err(); err != nil {
			return report, errors.Join(append(journalErrs, err)...)
		}

		res := e.evaluate(ctx, s)
		report.Results = append(report.Results, res)

		if err := e.record(ctx, seq, s, res); err != nil {
			journalErrs = append(journalErrs, err)
		}
	}

	e.logger.Debug("frame evaluated",
		"seq", seq,
		"effects", len(e.sites),
		"stable", report.Count(OutcomeStable),
		"resynced", report.Count(OutcomeResynced),
		"rebound", report.Count(OutcomeRebound)+report.Count(OutcomeBound),
		"failed", report.Count(OutcomeFailed),
	)

	return report, errors.Join(journalErrs...)
}

func (e *Engine) evaluate(ctx context.Context, s *site) Result {
	if s.def == nil {
		prog, err := e.compile(ctx, s, "")
		if err != nil {
			return e.failed(s, "", err)
		}
		return e.install(s, prog, OutcomeBound, "")
	}

	i, changed := e.detector.FirstChange(s.def)
	if !changed {
		return e.result(s, OutcomeStable, "")
	}
	key := s.def.SortedKeys[i].Name

	prog, err := e.compile(ctx, s, key)
	if err != nil {
		return e.failed(s, key, err)
	}

	if prog.ID == s.unit.Program.ID && sameKeys(prog.Used, s.def) {
		// Counters come from the snapshot the program was compiled against.
		if err := s.def.UpdateCounter(prog.Used); err != nil {
			return e.failed(s, key, err)
		}
		e.detector.ComputeLevels(s.def)
		e.logger.Debug("effect resynced",
			"effect", s.effect.Name,
			"unit", s.unit.UnitID(),
			"changed_key", key,
		)
		return e.result(s, OutcomeResynced, key)
	}

	return e.install(s, prog, OutcomeRebound, key)
}

func (e *Engine) compile(ctx context.Context, s *site, changedKey string) (Program, error) {
	ctx, span := e.tracer.Start(ctx, "engine.compile", trace.WithAttributes(
		attribute.String("fxparams.effect", s.effect.Name),
		attribute.String("fxparams.changed_key", changedKey),
	))
	defer span.End()

	prog, err := e.compiler.Compile(ctx, s.effect, e.live)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "compile failed")
		return Program{}, &RuntimeError{
			Code:    ErrCodeCompileFailed,
			Message: "compile failed",
			Effect:  s.effect.Name,
			Err:     err,
		}
	}

	span.SetAttributes(attribute.String("fxparams.program_id", prog.ID))
	return prog, nil
}

func (e *Engine) install(s *site, prog Program, outcome Outcome, changedKey string) Result {
	unit := &Unit{Effect: s.effect, Program: prog}

	def, err := binding.Bind(unit, prog.Used)
	if err != nil {
		return e.failed(s, changedKey, &RuntimeError{
			Code:    ErrCodeBindFailed,
			Message: "bind failed",
			Effect:  s.effect.Name,
			Unit:    unit.UnitID(),
			Err:     err,
		})
	}
	e.detector.ComputeLevels(def)

	s.unit = unit
	s.def = def

	e.logger.Info("effect bound",
		"effect", s.effect.Name,
		"unit", unit.UnitID(),
		"outcome", string(outcome),
		"changed_key", changedKey,
		"keys", def.Len(),
	)

	return e.result(s, outcome, changedKey)
}

func (e *Engine) failed(s *site, changedKey string, err error) Result {
	e.logger.Error("effect failed",
		"effect", s.effect.Name,
		"changed_key", changedKey,
		"error", err,
	)
	res := e.result(s, OutcomeFailed, changedKey)
	res.Err = err
	return res
}

func (e *Engine) result(s *site, outcome Outcome, changedKey string) Result {
	res := Result{Effect: s.effect.Name, Outcome: outcome, ChangedKey: changedKey}
	if s.unit != nil {
		res.Unit = s.unit.UnitID()
		res.ProgramID = s.unit.Program.ID
	}
	return res
}

func (e *Engine) record(ctx context.Context, seq int64, s *site, res Result) error {
	if e.journal == nil {
		return nil
	}

	if res.Outcome == OutcomeBound || res.Outcome == OutcomeRebound {
		s.pending = append(s.pending, newBindingRecord(e.ids.Generate(), seq, s.unit, s.def))
	}

	var bindErr error
	for len(s.pending) > 0 {
		rec := s.pending[0]
		if err := e.journal.WriteBinding(ctx, rec); err != nil {
			bindErr = &RuntimeError{
				Code:    ErrCodeJournalFailed,
				Message: "write binding",
				Effect:  s.effect.Name,
				Unit:    rec.UnitID,
				Err:     err,
			}
			e.logger.Error("journal write failed, binding kept for retry",
				"effect", s.effect.Name,
				"unit", rec.UnitID,
				"seq", rec.Seq,
				"pending", len(s.pending),
				"error", err,
			)
			break
		}
		s.pending = s.pending[1:]
	}

	ev := ir.FrameEvent{
		Seq:        seq,
		EffectName: s.effect.Name,
		UnitID:     res.Unit,
		Outcome:    string(res.Outcome),
		ChangedKey: res.ChangedKey,
		ProgramID:  res.ProgramID,
	}
	var eventErr error
	if err := e.journal.WriteFrameEvent(ctx, ev); err != nil {
		eventErr = &RuntimeError{
			Code:    ErrCodeJournalFailed,
			Message: "write frame event",
			Effect:  s.effect.Name,
			Unit:    res.Unit,
			Err:     err,
		}
	}
	return errors.Join(bindErr, eventErr)
}

// Pending returns how many binding records of the named effect are waiting
// for the journal.
func (e *Engine) Pending(name string) int {
	s, ok := e.byName[name]
	if !ok {
		return 0
	}
	return len(s.pending)
}

func newBindingRecord(id string, seq int64, u *Unit, def *binding.Definition) ir.BindingRecord {
	rec := ir.BindingRecord{
		ID:         id,
		Seq:        seq,
		UnitID:     u.UnitID(),
		EffectName: u.Effect.Name,
		ProgramID:  u.Program.ID,
		Keys:       make([]string, def.Len()),
		Values:     slices.Clone(def.SortedCompilationValues),
		Counters:   slices.Clone(def.SortedCounters),
		Levels:     slices.Clone(def.SortedLevels),
	}
	for i, k := range def.SortedKeys {
		rec.Keys[i] = k.Name
	}
	return rec
}

// sameKeys reports whether used lists exactly the keys of def, in order.
func sameKeys(used params.Source, def *binding.Definition) bool {
	if used.Len() != def.Len() {
		return false
	}
	for i := 0; i < used.Len(); i++ {
		if used.At(i).Key != def.SortedKeys[i] {
			return false
		}
	}
	return true
}
