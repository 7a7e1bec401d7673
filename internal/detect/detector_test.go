package detect

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fxparams/internal/binding"
	"github.com/roach88/fxparams/internal/ir"
	"github.com/roach88/fxparams/internal/params"
)

type testUnit struct{ id string }

func (u *testUnit) UnitID() string { return u.id }

var (
	keyA = ir.NewKey("A")
	keyB = ir.NewKey("B")
)

// newScenarioStore builds {A=1, B=2}, both at level 0 with counter 0.
func newScenarioStore() *params.Store {
	s := params.New("test")
	s.Set(keyA, ir.Int(1))
	s.Set(keyB, ir.Int(2))
	return s
}

func bind(t *testing.T, d *Detector, used params.Source) *binding.Definition {
	t.Helper()
	def, err := binding.Bind(&testUnit{id: "fx"}, used)
	require.NoError(t, err)
	d.ComputeLevels(def)
	return def
}

func TestHasChanged_UnchangedIsIdempotent(t *testing.T) {
	s := newScenarioStore()
	d := New(s)
	def := bind(t, d, s)

	assert.False(t, d.HasChanged(def))
	assert.False(t, d.HasChanged(def))

	// Unrelated keys do not matter.
	s.Set(ir.NewKey("Unrelated"), ir.Int(5))
	assert.False(t, d.HasChanged(def))
}

func TestHasChanged_BaseOverwriteThenUpdateCounters(t *testing.T) {
	s := newScenarioStore()
	d := New(s)
	def := bind(t, d, s)
	assert.Equal(t, []int64{0, 0}, def.SortedCounters)
	assert.Equal(t, []int{0, 0}, def.SortedLevels)

	s.Set(keyB, ir.Int(3))
	slot, _ := s.Slot(keyB)
	require.Equal(t, int64(1), slot.Counter)
	require.Equal(t, 0, slot.DirtyLevel)

	i, changed := d.FirstChange(def)
	assert.True(t, changed)
	assert.Equal(t, 1, i)

	d.UpdateCounters(def)
	assert.Equal(t, []int64{0, 1}, def.SortedCounters)
	assert.False(t, d.HasChanged(def))
}

func TestHasChanged_SameValueOverride(t *testing.T) {
	s := newScenarioStore()
	d := New(s)
	def := bind(t, d, s)

	s.Push("override")
	s.Set(keyA, ir.Int(1))
	slot, _ := s.Slot(keyA)
	require.Equal(t, 1, slot.DirtyLevel)
	require.Equal(t, int64(1), slot.Counter)

	// Stale SortedLevels[A] = 0: the level-mismatch branch compares values.
	assert.Equal(t, 0, def.SortedLevels[0])
	assert.False(t, d.HasChanged(def))
}

func TestHasChanged_NewValueOverride(t *testing.T) {
	s := newScenarioStore()
	d := New(s)
	def := bind(t, d, s)

	s.Push("override")
	s.Set(keyA, ir.Int(7))

	i, changed := d.FirstChange(def)
	assert.True(t, changed)
	assert.Equal(t, 0, i)
}

func TestHasChanged_LevelMismatchEqualCounter(t *testing.T) {
	s := newScenarioStore()
	d := New(s)
	def := bind(t, d, s)

	s.Push("override")
	s.Set(keyA, ir.Int(7))

	// Forge a counter match; the level mismatch must still force a compare.
	slot, _ := s.Slot(keyA)
	def.SortedCounters[0] = slot.Counter
	assert.True(t, d.HasChanged(def))
}

func TestHasChanged_EveryValueChange(t *testing.T) {
	s := newScenarioStore()
	d := New(s)
	def := bind(t, d, s)

	writes := []func(){
		func() { s.Set(keyA, ir.Int(10)) },
		func() { s.Push("l1"); s.Set(keyB, ir.Int(20)) },
		func() { s.Set(keyB, ir.Int(21)) },
		func() { _, _ = s.Pop() },
	}

	for n, write := range writes {
		before, _ := s.Slot(keyA)
		beforeB, _ := s.Slot(keyB)
		write()
		afterA, _ := s.Slot(keyA)
		afterB, _ := s.Slot(keyB)

		if !ir.Equal(before.Value, afterA.Value) {
			assert.Greater(t, afterA.Counter, before.Counter, "write %d", n)
		}
		if !ir.Equal(beforeB.Value, afterB.Value) {
			assert.Greater(t, afterB.Counter, beforeB.Counter, "write %d", n)
		}

		assert.True(t, d.HasChanged(def), "write %d must be detected", n)

		// Accept the new state as the baseline for the next write.
		def = bind(t, d, s)
		assert.False(t, d.HasChanged(def))
	}
}

func TestDetector_RebindResetsBaseline(t *testing.T) {
	s := newScenarioStore()
	d := New(s)
	def := bind(t, d, s)

	s.Set(keyA, ir.Int(100))
	require.True(t, d.HasChanged(def))

	rebound := bind(t, d, s)
	assert.False(t, d.HasChanged(rebound))
	assert.True(t, d.HasChanged(def), "the old definition is untouched")
}

func TestTrustBase_SkipsLevelZeroKeys(t *testing.T) {
	s := newScenarioStore()
	d := New(s, WithPolicy(TrustBase))
	def := bind(t, d, s)

	// A base-layer overwrite is a precondition violation under TrustBase:
	// it is not reported.
	s.Set(keyB, ir.Int(3))
	assert.False(t, d.HasChanged(def))

	// Overrides are still caught.
	s.Push("override")
	s.Set(keyA, ir.Int(9))
	assert.True(t, d.HasChanged(def))
}

func TestTrustBase_KeepsLevelMismatchGuard(t *testing.T) {
	s := newScenarioStore()
	d := New(s, WithPolicy(TrustBase))
	def := bind(t, d, s)

	s.Push("override")
	s.Set(keyA, ir.Int(1))
	assert.False(t, d.HasChanged(def))
}

func TestHasChanged_UncomputedLevels(t *testing.T) {
	s := newScenarioStore()
	d := New(s)
	def, err := binding.Bind(&testUnit{id: "fx"}, s)
	require.NoError(t, err)
	require.Nil(t, def.SortedLevels)

	assert.False(t, d.HasChanged(def))

	s.Set(keyB, ir.Int(3))
	assert.True(t, d.HasChanged(def))
}

func TestComputeLevels_ReusesSlice(t *testing.T) {
	s := newScenarioStore()
	d := New(s)
	def := bind(t, d, s)
	first := def.SortedLevels

	s.Push("override")
	s.Set(keyB, ir.Int(2))
	d.ComputeLevels(def)

	assert.Equal(t, []int{0, 1}, def.SortedLevels)
	assert.Same(t, &first[0], &def.SortedLevels[0], "slice must be reused when lengths match")
}

func TestResync_AcceptsOverride(t *testing.T) {
	s := newScenarioStore()
	d := New(s)
	def := bind(t, d, s)

	s.Push("override")
	s.Set(keyB, ir.Int(2))
	d.Resync(def)

	slot, _ := s.Slot(keyB)
	assert.Equal(t, slot.Counter, def.SortedCounters[1])
	assert.Equal(t, 1, def.SortedLevels[1])
	assert.False(t, d.HasChanged(def))
}

func TestHasChanged_MissingLiveKey(t *testing.T) {
	base := newScenarioStore()
	missing := ir.NewKey("Missing")
	used := params.NewSnapshot(base, []ir.Key{keyA, missing})

	live := newScenarioStore()
	d := New(live)
	def := bind(t, d, used)
	assert.Equal(t, []int{0, MissingLevel}, def.SortedLevels)

	assert.False(t, d.HasChanged(def), "missing and never defined read as equal")

	live.Set(missing, ir.Bool(true))
	i, changed := d.FirstChange(def)
	assert.True(t, changed)
	assert.Equal(t, 1, i)
}

func TestHasChanged_SeparateSources(t *testing.T) {
	live := newScenarioStore()
	used := params.NewSnapshot(live, []ir.Key{keyB})

	d := New(live)
	def := bind(t, d, used)
	require.Equal(t, 1, def.Len())

	live.Set(keyA, ir.Int(50))
	assert.False(t, d.HasChanged(def), "A is not read by the unit")

	live.Set(keyB, ir.Int(51))
	assert.True(t, d.HasChanged(def))
}

func TestHasChanged_DoesNotMutateStore(t *testing.T) {
	s := newScenarioStore()
	d := New(s)
	def := bind(t, d, s)
	s.Set(keyA, ir.Int(2))

	before := params.Capture(s)
	d.HasChanged(def)
	d.Resync(def)
	after := params.Capture(s)

	assert.Equal(t, before, after)
}

func TestHasChanged_DoesNotAllocate(t *testing.T) {
	s := newScenarioStore()
	for i := 0; i < 64; i++ {
		s.Set(ir.NewKey("K"+string(rune('a'+i%26))+string(rune('a'+i/26))), ir.Floats(1, 0, 0, 1))
	}
	d := New(s, WithMetrics(NewMetrics(nil)))
	def := bind(t, d, s)

	allocs := testing.AllocsPerRun(100, func() {
		_ = d.HasChanged(def)
	})
	assert.Zero(t, allocs)
}

func TestDetector_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	s := newScenarioStore()
	d := New(s, WithMetrics(m))
	def := bind(t, d, s)

	d.HasChanged(def) // two counter hits
	s.Push("override")
	s.Set(keyA, ir.Int(5))
	d.HasChanged(def) // value compare on A, changed

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Checks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Changes))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CounterHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValueCompares))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BaseSkips))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestPolicy_Parse(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, VerifyBase, p)

	p, err = ParsePolicy("trust_base")
	require.NoError(t, err)
	assert.Equal(t, TrustBase, p)
	assert.Equal(t, "trust_base", p.String())

	_, err = ParsePolicy("sometimes")
	require.Error(t, err)
}
