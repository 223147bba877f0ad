// Package wizard builds a starter configuration file interactively. It
// asks for the handful of settings that differ per host and seeds the
// engine and tool catalog for whichever engine CLIs are installed.
package wizard

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"

	"github.com/wombat2006/techdev-sub003/internal/config"
)

// ErrDeclined reports that the user chose to keep an existing config file.
var ErrDeclined = errors.New("wizard: existing config kept")

type answers struct {
	bind         string
	authToken    string
	logLevel     string
	logFormat    string
	storePath    string
	retention    string
	engines      []string
	otlpEndpoint string
}

func defaultAnswers() answers {
	return answers{
		bind:      "127.0.0.1:8787",
		logLevel:  "info",
		logFormat: "text",
		storePath: "consultd.db",
		retention: "30",
		engines:   []string{"claude", "codex"},
	}
}

// Run collects configuration interactively and writes it to path. An
// existing file is only replaced after an explicit confirmation.
func Run(path string) error {
	if _, err := os.Stat(path); err == nil {
		var overwrite bool
		confirm := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("%s already exists. Overwrite?", path)).
				Value(&overwrite),
		))
		if err := confirm.Run(); err != nil {
			return err
		}
		if !overwrite {
			return ErrDeclined
		}
	}

	a := defaultAnswers()
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Description("host:port the HTTP gateway binds.").
				Value(&a.bind).
				Validate(validateBind),
			huh.NewInput().
				Title("API auth token").
				Description("Bearer token for /v1. Empty leaves the API unauthenticated.").
				EchoMode(huh.EchoModePassword).
				Value(&a.authToken),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&a.logLevel),
			huh.NewSelect[string]().
				Title("Log format").
				Options(huh.NewOptions("text", "json")...).
				Value(&a.logFormat),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("History database path").
				Value(&a.storePath),
			huh.NewInput().
				Title("History retention (days)").
				Description("0 disables pruning.").
				Value(&a.retention).
				Validate(validateRetention),
		),
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Engines").
				Description("Engine CLIs installed on this host.").
				Options(
					huh.NewOption("Claude Code", "claude"),
					huh.NewOption("Codex CLI", "codex"),
					huh.NewOption("Gemini CLI", "gemini"),
				).
				Value(&a.engines),
			huh.NewInput().
				Title("OTLP trace endpoint").
				Description("Collector URL. Empty disables tracing.").
				Value(&a.otlpEndpoint),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	return writeConfig(path, build(a))
}

func validateBind(s string) error {
	if _, _, err := net.SplitHostPort(s); err != nil {
		return errors.New("must be host:port")
	}
	return nil
}

func validateRetention(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return errors.New("must be a non-negative integer")
	}
	return nil
}

// build turns the collected answers into a complete configuration. The
// output is explicit about defaults so the generated file documents
// itself.
func build(a answers) *config.Config {
	retention, _ := strconv.Atoi(a.retention)

	cfg := &config.Config{
		Version: "1",
		Logging: config.LoggingConfig{
			Level:  a.logLevel,
			Format: a.logFormat,
		},
		Server: config.ServerConfig{
			Bind:            a.bind,
			AuthToken:       a.authToken,
			ReadTimeout:     "15s",
			WriteTimeout:    "300s",
			ShutdownTimeout: "10s",
		},
		Store: config.StoreConfig{
			Path:          a.storePath,
			RetentionDays: retention,
		},
		Cron: config.CronConfig{
			ReadinessInterval: "*/5 * * * *",
			PruneSchedule:     "0 3 * * *",
		},
	}
	if a.otlpEndpoint != "" {
		cfg.Telemetry = config.TelemetryConfig{
			Endpoint:    a.otlpEndpoint,
			SampleRatio: 0.1,
		}
	}

	for _, id := range a.engines {
		seed, ok := engineSeeds[id]
		if !ok {
			continue
		}
		cfg.Engines = append(cfg.Engines, seed.engine)
		cfg.Tools = append(cfg.Tools, seed.tool)
	}
	return cfg
}

func writeConfig(path string, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("wizard: encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("wizard: write config: %w", err)
	}
	return nil
}

type engineSeed struct {
	engine config.EngineConfig
	tool   config.ToolConfig
}

// engineSeeds holds the starter catalog per engine CLI. Operations are
// listed in preference order; approval rules default to the conservative
// side for anything that mutates code.
var engineSeeds = map[string]engineSeed{
	"claude": {
		engine: config.EngineConfig{
			ID:                 "claude",
			Command:            "claude",
			FirstOutputTimeout: "60s",
			InactivityTimeout:  "300s",
		},
		tool: config.ToolConfig{
			ID:          "claude_code",
			Label:       "Claude Code",
			Engine:      "claude",
			Operations:  []string{"code_review", "debug", "refactor", "test_gen", "docs"},
			Cost:        "high",
			Security:    "internal",
			RequiresEnv: []string{"ANTHROPIC_API_KEY"},
			Approval:    config.ApprovalConfig{Mode: "never"},
		},
	},
	"codex": {
		engine: config.EngineConfig{
			ID:                 "codex",
			Command:            "codex",
			FirstOutputTimeout: "60s",
			InactivityTimeout:  "300s",
		},
		tool: config.ToolConfig{
			ID:          "codex",
			Label:       "Codex CLI",
			Engine:      "codex",
			Operations:  []string{"code_review", "debug", "refactor", "explain"},
			Cost:        "medium",
			Security:    "public",
			RequiresEnv: []string{"OPENAI_API_KEY"},
			Approval: config.ApprovalConfig{
				Never:       []string{"code_review", "explain"},
				Always:      []string{"refactor"},
				Conditional: []string{"debug"},
				When: &config.PredicateConfig{
					Field:  "security_tier",
					Op:     "at_least",
					Values: []string{"sensitive"},
				},
			},
		},
	},
	"gemini": {
		engine: config.EngineConfig{
			ID:                 "gemini",
			Command:            "gemini",
			FirstOutputTimeout: "60s",
			InactivityTimeout:  "300s",
		},
		tool: config.ToolConfig{
			ID:          "gemini_cli",
			Label:       "Gemini CLI",
			Engine:      "gemini",
			Operations:  []string{"explain", "summarize"},
			Cost:        "low",
			Security:    "public",
			RequiresEnv: []string{"GEMINI_API_KEY"},
			Approval:    config.ApprovalConfig{Mode: "never"},
		},
	},
}
