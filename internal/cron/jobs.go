package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wombat2006/techdev-sub003/internal/tool"
)

// ToolReadinessJob probes every catalog tool and records the outcome, so
// operators see readiness flips between consultations. Probes also run
// inline during selection; this pass exists for the gauge and the
// transition log.
type ToolReadinessJob struct {
	Registry     *tool.Registry
	Metrics      *Metrics
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"

	mu   sync.Mutex
	last map[string]bool
}

// Compile-time interface check.
var _ Job = (*ToolReadinessJob)(nil)

// Name implements Job.
func (j *ToolReadinessJob) Name() string { return "tool_readiness" }

// Schedule implements Job.
func (j *ToolReadinessJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run evaluates each readiness probe once and updates the per-tool gauge.
// A tool that enters or leaves readiness gets one log line.
func (j *ToolReadinessJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cron: readiness refresh cancelled: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.last == nil {
		j.last = make(map[string]bool)
	}

	for _, d := range j.Registry.List() {
		ready := d.Ready == nil || d.Ready()

		if j.Metrics != nil {
			v := 0.0
			if ready {
				v = 1.0
			}
			j.Metrics.toolReady.WithLabelValues(d.ID).Set(v)
		}

		prev, seen := j.last[d.ID]
		switch {
		case !seen && !ready:
			j.Logger.Warn("cron: tool not ready", "tool", d.ID)
		case seen && prev != ready:
			j.Logger.Info("cron: tool readiness changed", "tool", d.ID, "ready", ready)
		}
		j.last[d.ID] = ready
	}
	return nil
}

// Pruner is the subset of the invocation store the prune job needs.
// Defined here so the job does not depend on the store package.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// StorePruneJob deletes invocation rows past the retention window.
type StorePruneJob struct {
	Store        Pruner
	Retention    time.Duration
	Metrics      *Metrics
	Logger       *slog.Logger
	ScheduleExpr string           // empty = default "0 3 * * *"
	Now          func() time.Time // nil = time.Now
}

// Compile-time interface check.
var _ Job = (*StorePruneJob)(nil)

// Name implements Job.
func (j *StorePruneJob) Name() string { return "store_prune" }

// Schedule implements Job.
func (j *StorePruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 3 * * *"
}

// Run deletes rows older than the retention window. A zero or negative
// retention disables pruning.
func (j *StorePruneJob) Run(ctx context.Context) error {
	if j.Retention <= 0 {
		return nil
	}

	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	cutoff := now().Add(-j.Retention)

	pruned, err := j.Store.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cron: prune invocations: %w", err)
	}

	if j.Metrics != nil {
		j.Metrics.prunedRows.Add(float64(pruned))
	}
	if pruned > 0 {
		j.Logger.Info("cron: pruned invocation rows", "count", pruned, "older_than", cutoff)
	}
	return nil
}
