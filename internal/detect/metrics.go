package detect

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts detector work. Counts are accumulated locally during a check
// and added once at the end, so the per-key loop stays free of atomics.
type Metrics struct {
	Checks        prometheus.Counter
	Changes       prometheus.Counter
	BaseSkips     prometheus.Counter
	CounterHits   prometheus.Counter
	ValueCompares prometheus.Counter
}

// NewMetrics creates detector counters registered on reg.
// A nil reg creates unregistered counters (useful in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Checks: f.NewCounter(prometheus.CounterOpts{
			Name: "fxparams_detect_checks_total",
			Help: "Number of change checks run against binding definitions",
		}),
		Changes: f.NewCounter(prometheus.CounterOpts{
			Name: "fxparams_detect_changes_total",
			Help: "Number of checks that found a changed parameter",
		}),
		BaseSkips: f.NewCounter(prometheus.CounterOpts{
			Name: "fxparams_detect_base_skips_total",
			Help: "Keys skipped because only the base layer defines them",
		}),
		CounterHits: f.NewCounter(prometheus.CounterOpts{
			Name: "fxparams_detect_counter_hits_total",
			Help: "Keys proven unchanged by an equal counter",
		}),
		ValueCompares: f.NewCounter(prometheus.CounterOpts{
			Name: "fxparams_detect_value_compares_total",
			Help: "Keys that needed a value comparison",
		}),
	}
}

type tally struct {
	baseSkips     int
	counterHits   int
	valueCompares int
}

func (m *Metrics) observe(t tally, changed bool) {
	if m == nil {
		return
	}
	m.Checks.Inc()
	if changed {
		m.Changes.Inc()
	}
	if t.baseSkips > 0 {
		m.BaseSkips.Add(float64(t.baseSkips))
	}
	if t.counterHits > 0 {
		m.CounterHits.Add(float64(t.counterHits))
	}
	if t.valueCompares > 0 {
		m.ValueCompares.Add(float64(t.valueCompares))
	}
}
