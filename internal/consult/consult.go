// Package consult orchestrates a consultation end to end: ranked tool
// selection against the catalog, approval resolution, a supervised engine
// run, and the bookkeeping each run leaves behind in history, metrics, and
// the live event feed.
package consult

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wombat2006/techdev-sub003/internal/engine"
	"github.com/wombat2006/techdev-sub003/internal/engine/stream"
	"github.com/wombat2006/techdev-sub003/internal/store"
	"github.com/wombat2006/techdev-sub003/internal/tool"
)

// persistTimeout bounds the asynchronous history write that follows each
// invocation.
const persistTimeout = 5 * time.Second

// Engine is the launch configuration for one engine CLI, keyed by the
// engine id that tool descriptors reference.
type Engine struct {
	Command string
	Model   string

	// BypassApprovals forces the auto-approve flag on every run,
	// regardless of resolved approval decisions.
	BypassApprovals bool

	// DenseEstimation selects the token estimator tuned for dense
	// non-Latin scripts.
	DenseEstimation bool

	// FirstOutput and Inactivity bound engine silence. Zero disables the
	// corresponding bound.
	FirstOutput time.Duration
	Inactivity  time.Duration

	// Env entries are appended to the inherited environment.
	Env map[string]string
}

// Supervisor runs one engine invocation. *engine.Supervisor satisfies it.
type Supervisor interface {
	Supervise(ctx context.Context, req engine.Request) (engine.Result, error)
}

// Recorder persists invocation records. *store.Store satisfies it.
type Recorder interface {
	SaveBatch(ctx context.Context, records []store.Record) error
}

// Config assembles an Orchestrator's collaborators. Registry, Engines, and
// Supervisor are required; the rest degrade to no-ops when unset.
type Config struct {
	Registry   *tool.Registry
	Engines    map[string]Engine
	Supervisor Supervisor

	Recorder Recorder
	Events   Broadcaster
	Metrics  *Metrics
	Logger   *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Metrics == nil {
		c.Metrics = NewMetrics(prometheus.NewRegistry())
	}
	return c
}

// Request is one consultation.
type Request struct {
	// Prompt is the question delivered to the engine on stdin.
	Prompt string

	// Engine optionally forces a specific engine id. The selection must
	// still contain a tool backed by it.
	Engine string

	// Context carries the requester's criticality, budget, and security
	// tiers, which drive selection and approval resolution.
	Context tool.Context
}

// Response is a completed consultation.
type Response struct {
	Engine   string
	Tool     string
	Text     string
	Usage    stream.Usage
	Duration time.Duration

	// Selection is the full selection the request ranked, including tools
	// that were not invoked.
	Selection tool.Selection
}

// Orchestrator runs consultations. It is safe for concurrent use.
type Orchestrator struct {
	cfg    Config
	tracer trace.Tracer
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg.withDefaults(),
		tracer: otel.Tracer("github.com/wombat2006/techdev-sub003/internal/consult"),
	}
}

// Consult runs one consultation to completion.
//
// The catalog is ranked for the request context, the best tool backed by a
// configured engine is invoked under supervision, and the run is recorded
// to history, metrics, and the event feed whether it succeeded or not.
// Engine failures are returned as-is; callers see the same error the
// supervision produced.
func (o *Orchestrator) Consult(ctx context.Context, req Request) (Response, error) {
	ctx, span := o.tracer.Start(ctx, "consult.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("consult.criticality", string(req.Context.Criticality)),
		attribute.String("consult.budget", string(req.Context.Budget)),
		attribute.String("consult.security", string(req.Context.Security)),
	)

	sel := o.cfg.Registry.Select(req.Context)
	if sel.CostWarning != "" {
		o.cfg.Logger.Warn("selection crossed cost threshold",
			"estimated_cost", sel.EstimatedCost,
			"tools", len(sel.Tools),
		)
		o.cfg.Metrics.RecordCostWarning()
	}

	chosen, eng, err := o.pick(sel, req.Engine)
	if err != nil {
		span.RecordError(err)
		return Response{Selection: sel}, err
	}

	bypass := eng.BypassApprovals || unattended(chosen, req.Context)

	engReq := engine.Request{
		Engine:  chosen.Descriptor.Engine,
		Command: eng.Command,
		Args:    engine.BuildArgs(eng.Model, bypass, chosen.Operations),
		Prompt:  req.Prompt,
		Env:     eng.Env,
		Timeouts: engine.TimeoutPolicy{
			FirstOutput: eng.FirstOutput,
			Inactivity:  eng.Inactivity,
		},
		DenseEstimation: eng.DenseEstimation,
	}

	runCtx, runSpan := o.tracer.Start(ctx, "engine.invoke")
	runSpan.SetAttributes(
		attribute.String("engine.id", engReq.Engine),
		attribute.String("engine.tool", chosen.Descriptor.ID),
		attribute.Bool("engine.bypass_approvals", bypass),
	)
	res, runErr := o.cfg.Supervisor.Supervise(runCtx, engReq)
	if runErr != nil {
		runSpan.RecordError(runErr)
	}
	runSpan.End()

	outcome := outcomeFor(runErr)
	o.cfg.Metrics.RecordInvocation(engReq.Engine, outcome, res.Duration, res.Usage)
	o.record(engReq.Engine, req.Prompt, res, outcome)
	o.broadcast(Event{
		Type:        EventInvocation,
		Engine:      engReq.Engine,
		Tool:        chosen.Descriptor.ID,
		Outcome:     string(outcome),
		DurationMS:  res.Duration.Milliseconds(),
		TotalTokens: res.Usage.TotalTokens,
		ExactUsage:  res.Usage.Exact,
		TS:          time.Now().UTC().Format(time.RFC3339),
	})

	if runErr != nil {
		span.RecordError(runErr)
		o.cfg.Logger.Error("consultation failed",
			"engine", engReq.Engine,
			"tool", chosen.Descriptor.ID,
			"outcome", outcome,
			"error", runErr,
		)
		return Response{
			Engine:    engReq.Engine,
			Tool:      chosen.Descriptor.ID,
			Duration:  res.Duration,
			Selection: sel,
		}, runErr
	}

	span.SetAttributes(
		attribute.Int("consult.total_tokens", res.Usage.TotalTokens),
		attribute.Bool("consult.exact_usage", res.Usage.Exact),
	)
	o.cfg.Logger.Info("consultation complete",
		"engine", engReq.Engine,
		"tool", chosen.Descriptor.ID,
		"duration", res.Duration,
		"total_tokens", res.Usage.TotalTokens,
		"exact_usage", res.Usage.Exact,
	)

	return Response{
		Engine:    engReq.Engine,
		Tool:      chosen.Descriptor.ID,
		Text:      res.Text,
		Usage:     res.Usage,
		Duration:  res.Duration,
		Selection: sel,
	}, nil
}

// pick returns the tool to invoke and its engine configuration. Without a
// forced engine it walks the selection in priority order and takes the
// first tool whose engine is configured; with one it takes the first
// selected tool backed by that engine.
func (o *Orchestrator) pick(sel tool.Selection, forced string) (tool.Selected, Engine, error) {
	if forced != "" {
		if _, ok := o.cfg.Engines[forced]; !ok {
			return tool.Selected{}, Engine{}, fmt.Errorf("%w: %s", ErrUnknownEngine, forced)
		}
	}

	for _, cand := range sel.Tools {
		id := cand.Descriptor.Engine
		if id == "" {
			// Catalog entry with no runner behind it.
			continue
		}
		if forced != "" && id != forced {
			continue
		}
		eng, ok := o.cfg.Engines[id]
		if !ok {
			o.cfg.Logger.Warn("selected tool references unconfigured engine",
				"tool", cand.Descriptor.ID,
				"engine", id,
			)
			continue
		}
		return cand, eng, nil
	}

	if forced != "" {
		return tool.Selected{}, Engine{}, fmt.Errorf("%w: %s", ErrEngineNotEligible, forced)
	}
	return tool.Selected{}, Engine{}, ErrNoToolAvailable
}

// unattended reports whether every operation granted to the tool resolves
// to an unattended run, which is what lets the engine be launched with
// approvals bypassed.
func unattended(sel tool.Selected, rc tool.Context) bool {
	if len(sel.Operations) == 0 {
		return false
	}
	for _, op := range sel.Operations {
		if sel.Approval.Resolve(op, rc) != tool.DecisionNever {
			return false
		}
	}
	return true
}

// record hands the invocation to the recorder without blocking the
// response. Write failures are logged and dropped; history is a trail, not
// a transaction.
func (o *Orchestrator) record(engineID, prompt string, res engine.Result, outcome store.Outcome) {
	if o.cfg.Recorder == nil {
		return
	}
	rec := store.Record{
		Engine:       engineID,
		PromptSHA256: hashPrompt(prompt),
		TextLen:      len(res.Text),
		InputTokens:  res.Usage.InputTokens,
		OutputTokens: res.Usage.OutputTokens,
		TotalTokens:  res.Usage.TotalTokens,
		Exact:        res.Usage.Exact,
		Duration:     res.Duration,
		Outcome:      outcome,
		ExitCode:     res.ExitCode,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := o.cfg.Recorder.SaveBatch(ctx, []store.Record{rec}); err != nil {
			o.cfg.Logger.Error("recording invocation failed",
				"engine", engineID,
				"error", err,
			)
		}
	}()
}

func (o *Orchestrator) broadcast(ev Event) {
	if o.cfg.Events == nil {
		return
	}
	o.cfg.Events.Broadcast(ev)
}

// outcomeFor maps a supervision error to its history label.
func outcomeFor(err error) store.Outcome {
	if err == nil {
		return store.OutcomeOK
	}
	var perr *engine.ProcessError
	switch {
	case errors.Is(err, engine.ErrSpawn):
		return store.OutcomeSpawnError
	case errors.Is(err, engine.ErrInitialTimeout):
		return store.OutcomeInitialTimeout
	case errors.Is(err, engine.ErrInactivityTimeout):
		return store.OutcomeInactivityTimeout
	case errors.As(err, &perr):
		return store.OutcomeProcessError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return store.OutcomeCanceled
	default:
		return store.OutcomeProcessError
	}
}

// hashPrompt fingerprints a prompt for the history log. Raw prompt text is
// never persisted.
func hashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
