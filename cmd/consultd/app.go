package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wombat2006/techdev-sub003/internal/config"
	"github.com/wombat2006/techdev-sub003/internal/consult"
	"github.com/wombat2006/techdev-sub003/internal/cron"
	"github.com/wombat2006/techdev-sub003/internal/engine"
	"github.com/wombat2006/techdev-sub003/internal/gateway"
	"github.com/wombat2006/techdev-sub003/internal/mcpserver"
	"github.com/wombat2006/techdev-sub003/internal/store"
	"github.com/wombat2006/techdev-sub003/internal/telemetry"
	"github.com/wombat2006/techdev-sub003/internal/tool"
)

// telemetryFlushTimeout bounds the final trace export on shutdown.
const telemetryFlushTimeout = 5 * time.Second

// runDaemon assembles the full daemon and blocks until ctx is cancelled.
// Components start scheduler-first and stop gateway-first, so no surface
// accepts work after its collaborators are gone.
func runDaemon(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger := buildLogger(cfg.Logging)

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       cfg.Telemetry.Endpoint,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		ServiceName:    "consultd",
		ServiceVersion: version,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("store close failed", "error", err)
		}
	}()

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	hub := gateway.NewHub(logger)

	orch := consult.New(consult.Config{
		Registry:   registry,
		Engines:    buildEngines(cfg),
		Supervisor: engine.New(engine.Config{Logger: logger}),
		Recorder:   st,
		Events:     hub,
		Metrics:    consult.NewMetrics(promReg),
		Logger:     logger,
	})

	cronMetrics := cron.NewMetrics(promReg)
	sched := cron.NewScheduler(logger)
	if err := sched.RegisterJob(&cron.ToolReadinessJob{
		Registry:     registry,
		Metrics:      cronMetrics,
		Logger:       logger,
		ScheduleExpr: cfg.Cron.ReadinessInterval,
	}); err != nil {
		return err
	}
	if err := sched.RegisterJob(&cron.StorePruneJob{
		Store:        st,
		Retention:    time.Duration(cfg.Store.RetentionDays) * 24 * time.Hour,
		Metrics:      cronMetrics,
		Logger:       logger,
		ScheduleExpr: cfg.Cron.PruneSchedule,
	}); err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}

	gw := gateway.New(gateway.Config{
		Bind:            cfg.Server.Bind,
		AuthToken:       cfg.Server.AuthToken,
		ReadTimeout:     cfg.Server.ReadTimeoutDuration(),
		WriteTimeout:    cfg.Server.WriteTimeoutDuration(),
		ShutdownTimeout: cfg.Server.ShutdownTimeoutDuration(),
	}, gateway.Deps{
		Consulter:  orch,
		Tools:      registry,
		History:    st,
		Hub:        hub,
		Prometheus: promReg,
		Logger:     logger,
	})
	if err := gw.Start(); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutDuration())
		defer cancel()
		if stopErr := sched.Stop(stopCtx); stopErr != nil {
			logger.Warn("scheduler shutdown incomplete", "error", stopErr)
		}
		return err
	}

	logger.Info("consultd started",
		"version", version,
		"bind", cfg.Server.Bind,
		"engines", len(cfg.Engines),
		"tools", len(cfg.Tools))

	<-ctx.Done()
	logger.Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutDuration())
	defer cancel()

	if err := gw.Stop(stopCtx); err != nil {
		logger.Warn("gateway shutdown incomplete", "error", err)
	}
	if err := sched.Stop(stopCtx); err != nil {
		logger.Warn("scheduler shutdown incomplete", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// runMCP serves consultations over MCP stdio. No gateway, cron, or
// telemetry; logs go to stderr so stdout stays a clean JSON-RPC stream.
func runMCP(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger := buildLogger(cfg.Logging)

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("store close failed", "error", err)
		}
	}()

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	orch := consult.New(consult.Config{
		Registry:   registry,
		Engines:    buildEngines(cfg),
		Supervisor: engine.New(engine.Config{Logger: logger}),
		Recorder:   st,
		Logger:     logger,
	})

	srv := mcpserver.New(mcpserver.Config{
		Version:   version,
		Consulter: orch,
		Tools:     registry,
		Logger:    logger,
	})
	return srv.ServeStdio()
}

func buildLogger(lc config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func buildRegistry(cfg *config.Config) (*tool.Registry, error) {
	registry := tool.NewRegistry()
	for _, d := range cfg.Descriptors() {
		if err := registry.Register(d); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func buildEngines(cfg *config.Config) map[string]consult.Engine {
	engines := make(map[string]consult.Engine, len(cfg.Engines))
	for _, ec := range cfg.Engines {
		engines[ec.ID] = consult.Engine{
			Command:         ec.Command,
			Model:           ec.Model,
			BypassApprovals: ec.BypassApprovals,
			DenseEstimation: ec.DenseEstimation,
			FirstOutput:     ec.FirstOutput(),
			Inactivity:      ec.Inactivity(),
			Env:             ec.Env,
		}
	}
	return engines
}
