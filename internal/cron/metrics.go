package cron

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the instruments the maintenance jobs update.
type Metrics struct {
	toolReady  *prometheus.GaugeVec
	prunedRows prometheus.Counter
}

// NewMetrics registers the cron instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		toolReady: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "consultd_tool_ready",
			Help: "Whether the tool's readiness probe currently passes.",
		}, []string{"tool"}),
		prunedRows: factory.NewCounter(prometheus.CounterOpts{
			Name: "consultd_store_pruned_rows_total",
			Help: "Invocation rows deleted by the retention prune job.",
		}),
	}
}
