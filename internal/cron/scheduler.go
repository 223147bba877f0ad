package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// entry pairs a registered job with the gate that keeps its runs from
// overlapping.
type entry struct {
	job  Job
	gate sync.Mutex
}

// fire executes one tick of the entry's job. A tick that lands while the
// previous run still holds the gate is dropped, never queued.
func (e *entry) fire(ctx context.Context, logger *slog.Logger) {
	name := e.job.Name()
	if !e.gate.TryLock() {
		logger.Warn("cron: previous run still active, tick skipped", "job", name)
		return
	}
	defer e.gate.Unlock()

	logger.Debug("cron: job started", "job", name)
	if err := e.job.Run(ctx); err != nil {
		logger.Error("cron: job failed", "job", name, "error", err)
		return
	}
	logger.Debug("cron: job completed", "job", name)
}

// Scheduler runs registered jobs on their cron expressions, one tick of a
// given job at a time.
type Scheduler struct {
	mu     sync.Mutex
	runner *cron.Cron
	order  []*entry
	byName map[string]*entry
	logger *slog.Logger
	cancel context.CancelFunc
}

// NewScheduler returns an empty scheduler. Register jobs first, then call
// Start. A nil logger falls back to slog.Default().
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{byName: make(map[string]*entry), logger: logger}
}

// RegisterJob adds a job under its Name. Registration after Start has no
// effect on the running schedule, and duplicate names are rejected.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, dup := s.byName[name]; dup {
		return fmt.Errorf("cron: job %q already registered", name)
	}
	e := &entry{job: j}
	s.byName[name] = e
	s.order = append(s.order, e)
	return nil
}

// Start parses every schedule and begins firing jobs. A single malformed
// expression fails the whole call and nothing runs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	spec := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	runner := cron.New(cron.WithParser(spec))
	for _, e := range s.order {
		if _, err := runner.AddFunc(e.job.Schedule(), func() { e.fire(ctx, s.logger) }); err != nil {
			cancel()
			return fmt.Errorf("cron: job %q has a bad schedule %q: %w", e.job.Name(), e.job.Schedule(), err)
		}
	}

	s.runner = runner
	runner.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.order))
	return nil
}

// Stop cancels job contexts and waits for in-flight runs to drain, giving
// up when ctx expires first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.runner == nil {
		return nil
	}

	drained := s.runner.Stop()
	select {
	case <-drained.Done():
		s.logger.Info("cron: scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("cron: gave up waiting for running jobs", "error", ctx.Err())
		return ctx.Err()
	}
}
