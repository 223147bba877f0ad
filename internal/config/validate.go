package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/wombat2006/techdev-sub003/internal/tool"
)

// Validate checks the structural validity of a Config. It verifies the
// version field, the server and logging settings, every engine entry, and
// the tool seeds, including their approval rules and engine references.
// All problems are reported at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	errs = append(errs, validateLogging(cfg.Logging)...)
	errs = append(errs, validateServer(cfg.Server)...)
	errs = append(errs, validateStore(cfg.Store)...)
	errs = append(errs, validateCron(cfg.Cron)...)
	errs = append(errs, validateTelemetry(cfg.Telemetry)...)
	errs = append(errs, validateEngines(cfg.Engines)...)
	errs = append(errs, validateTools(cfg)...)

	return errors.Join(errs...)
}

func validateLogging(l LoggingConfig) []error {
	var errs []error
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("config: logging.level: unknown level %q", l.Level))
	}
	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: logging.format: unknown format %q", l.Format))
	}
	return errs
}

func validateServer(s ServerConfig) []error {
	var errs []error
	if s.Bind == "" {
		errs = append(errs, errors.New("config: server.bind is required"))
	}
	for _, d := range []struct {
		field string
		value string
	}{
		{"server.read_timeout", s.ReadTimeout},
		{"server.write_timeout", s.WriteTimeout},
		{"server.shutdown_timeout", s.ShutdownTimeout},
	} {
		if err := checkDuration(d.field, d.value); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func validateStore(s StoreConfig) []error {
	var errs []error
	if s.Path == "" {
		errs = append(errs, errors.New("config: store.path is required"))
	}
	if s.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("config: store.retention_days: must not be negative, got %d", s.RetentionDays))
	}
	return errs
}

func validateCron(c CronConfig) []error {
	var errs []error
	if c.ReadinessInterval == "" {
		errs = append(errs, errors.New("config: cron.readiness_interval is required"))
	}
	if c.PruneSchedule == "" {
		errs = append(errs, errors.New("config: cron.prune_schedule is required"))
	}
	return errs
}

func validateTelemetry(t TelemetryConfig) []error {
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		return []error{fmt.Errorf("config: telemetry.sample_ratio: must be within [0, 1], got %v", t.SampleRatio)}
	}
	return nil
}

func validateEngines(engines []EngineConfig) []error {
	var errs []error
	seen := make(map[string]bool, len(engines))
	for i, e := range engines {
		if e.ID == "" {
			errs = append(errs, fmt.Errorf("config: engines[%d]: id is required", i))
		} else if seen[e.ID] {
			errs = append(errs, fmt.Errorf("config: engines[%d]: duplicate id %q", i, e.ID))
		}
		seen[e.ID] = true

		if e.Command == "" {
			errs = append(errs, fmt.Errorf("config: engines[%d]: command is required", i))
		}
		for _, d := range []struct {
			field string
			value string
		}{
			{fmt.Sprintf("engines[%d].first_output_timeout", i), e.FirstOutputTimeout},
			{fmt.Sprintf("engines[%d].inactivity_timeout", i), e.InactivityTimeout},
		} {
			// Empty means unbounded, which is always valid.
			if d.value == "" {
				continue
			}
			if err := checkDuration(d.field, d.value); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}

// validateTools registers every seed into a throwaway registry so the tool
// package's own validation (tiers, approval rules, predicates, duplicate
// ids) applies to configuration verbatim.
func validateTools(cfg *Config) []error {
	var errs []error

	probe := tool.NewRegistry()
	for i, d := range cfg.Descriptors() {
		if err := probe.Register(d); err != nil {
			errs = append(errs, fmt.Errorf("config: tools[%d]: %w", i, err))
		}
	}

	for i, t := range cfg.Tools {
		if t.Engine == "" {
			continue
		}
		if _, ok := cfg.EngineFor(t.Engine); !ok {
			errs = append(errs, fmt.Errorf("config: tools[%d]: unknown engine %q", i, t.Engine))
		}
	}
	return errs
}

func checkDuration(field, value string) error {
	if value == "" {
		return fmt.Errorf("config: %s is required", field)
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("config: %s: invalid duration %q: %w", field, value, err)
	}
	if d < 0 {
		return fmt.Errorf("config: %s: must not be negative", field)
	}
	return nil
}
