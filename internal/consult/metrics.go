package consult

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wombat2006/techdev-sub003/internal/engine/stream"
	"github.com/wombat2006/techdev-sub003/internal/store"
)

// Metrics instruments consultations. All record methods are safe for
// concurrent use.
type Metrics struct {
	invocations  *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	tokens       *prometheus.CounterVec
	costWarnings prometheus.Counter
}

// NewMetrics creates the consultation metric set on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		invocations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consultd",
				Subsystem: "engine",
				Name:      "invocations_total",
				Help:      "Engine invocations by engine and outcome.",
			},
			[]string{"engine", "outcome"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "consultd",
				Subsystem: "engine",
				Name:      "duration_seconds",
				Help:      "Engine invocation duration in seconds.",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"engine"},
		),
		tokens: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consultd",
				Subsystem: "engine",
				Name:      "tokens_total",
				Help:      "Tokens consumed by engine and direction.",
			},
			[]string{"engine", "direction"},
		),
		costWarnings: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "consultd",
				Subsystem: "selection",
				Name:      "cost_warnings_total",
				Help:      "Selections whose estimated cost crossed the warning threshold.",
			},
		),
	}
}

// RecordInvocation counts one completed invocation with its duration and
// token usage.
func (m *Metrics) RecordInvocation(engine string, outcome store.Outcome, d time.Duration, usage stream.Usage) {
	m.invocations.WithLabelValues(engine, string(outcome)).Inc()
	m.duration.WithLabelValues(engine).Observe(d.Seconds())
	m.tokens.WithLabelValues(engine, "input").Add(float64(usage.InputTokens))
	m.tokens.WithLabelValues(engine, "output").Add(float64(usage.OutputTokens))
}

// RecordCostWarning counts one selection that tripped the cost warning.
func (m *Metrics) RecordCostWarning() {
	m.costWarnings.Inc()
}
