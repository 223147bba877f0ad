// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for consultd.
package config

import "time"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Logging   LoggingConfig   `yaml:"logging"`
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Cron      CronConfig      `yaml:"cron"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Engines lists the external CLIs consultations may run.
	Engines []EngineConfig `yaml:"engines"`

	// Tools seeds the tool catalog.
	Tools []ToolConfig `yaml:"tools"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	// Bind is the listen address.
	Bind string `yaml:"bind"`

	// AuthToken protects the /v1 API. Empty disables authentication,
	// which is only sane on a loopback bind.
	AuthToken string `yaml:"auth_token"`

	// Timeouts are Go duration strings.
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// StoreConfig configures invocation history persistence.
type StoreConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path"`

	// RetentionDays bounds how long invocation records are kept.
	// Zero disables pruning.
	RetentionDays int `yaml:"retention_days"`
}

// CronConfig holds the background job schedules, in standard five-field
// cron syntax.
type CronConfig struct {
	// ReadinessInterval schedules the tool readiness probe.
	ReadinessInterval string `yaml:"readiness_interval"`

	// PruneSchedule schedules invocation history pruning.
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig configures OTLP trace export. An empty endpoint disables
// export entirely.
type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// EngineConfig describes one external engine CLI.
type EngineConfig struct {
	// ID is the engine's name, referenced by tool seeds.
	ID string `yaml:"id"`

	// Command is the executable to run.
	Command string `yaml:"command"`

	// Model is passed to the CLI's model selector flag, when set.
	Model string `yaml:"model"`

	// BypassApprovals always passes the CLI's auto-approve flag,
	// regardless of resolved approval decisions.
	BypassApprovals bool `yaml:"bypass_approvals"`

	// DenseEstimation switches token estimation to the heuristic tuned
	// for dense non-Latin scripts.
	DenseEstimation bool `yaml:"dense_estimation"`

	// Timeouts are Go duration strings. Empty means unbounded.
	FirstOutputTimeout string `yaml:"first_output_timeout"`
	InactivityTimeout  string `yaml:"inactivity_timeout"`

	// Env is merged over the inherited environment for each run.
	Env map[string]string `yaml:"env"`
}

// ToolConfig seeds one catalog entry.
type ToolConfig struct {
	ID         string   `yaml:"id"`
	Label      string   `yaml:"label"`
	Engine     string   `yaml:"engine"`
	Operations []string `yaml:"operations"`
	Cost       string   `yaml:"cost"`
	Security   string   `yaml:"security"`

	// RequiresEnv lists environment variables that must be non-empty for
	// the tool to count as ready.
	RequiresEnv []string `yaml:"requires_env"`

	Approval ApprovalConfig `yaml:"approval"`
}

// ApprovalConfig is the YAML shape of an approval rule.
type ApprovalConfig struct {
	Mode        string           `yaml:"mode"`
	Never       []string         `yaml:"never"`
	Always      []string         `yaml:"always"`
	Conditional []string         `yaml:"conditional"`
	When        *PredicateConfig `yaml:"when"`
}

// PredicateConfig is the YAML shape of an approval predicate.
type PredicateConfig struct {
	Field  string   `yaml:"field"`
	Op     string   `yaml:"op"`
	Values []string `yaml:"values"`
}

// applyDefaults fills unset fields with production defaults.
func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Server.Bind == "" {
		c.Server.Bind = "127.0.0.1:8787"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "15s"
	}
	if c.Server.WriteTimeout == "" {
		// Consultations run synchronously over this connection, so the
		// write window must cover a full engine run.
		c.Server.WriteTimeout = "300s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Store.Path == "" {
		c.Store.Path = "consultd.db"
	}
	if c.Store.RetentionDays == 0 {
		c.Store.RetentionDays = 30
	}
	if c.Cron.ReadinessInterval == "" {
		c.Cron.ReadinessInterval = "*/5 * * * *"
	}
	if c.Cron.PruneSchedule == "" {
		c.Cron.PruneSchedule = "0 3 * * *"
	}
	if c.Telemetry.SampleRatio == 0 {
		c.Telemetry.SampleRatio = 0.1
	}
}

// EngineFor returns the engine with the given id.
func (c *Config) EngineFor(id string) (EngineConfig, bool) {
	for _, e := range c.Engines {
		if e.ID == id {
			return e, true
		}
	}
	return EngineConfig{}, false
}

// ReadTimeoutDuration returns the parsed read timeout.
// Assumes the value has been validated.
func (s ServerConfig) ReadTimeoutDuration() time.Duration {
	return parseOrZero(s.ReadTimeout)
}

// WriteTimeoutDuration returns the parsed write timeout.
// Assumes the value has been validated.
func (s ServerConfig) WriteTimeoutDuration() time.Duration {
	return parseOrZero(s.WriteTimeout)
}

// ShutdownTimeoutDuration returns the parsed shutdown timeout.
// Assumes the value has been validated.
func (s ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return parseOrZero(s.ShutdownTimeout)
}

// FirstOutput returns the parsed first-output timeout. Zero means unbounded.
// Assumes the value has been validated.
func (e EngineConfig) FirstOutput() time.Duration {
	return parseOrZero(e.FirstOutputTimeout)
}

// Inactivity returns the parsed inactivity timeout. Zero means unbounded.
// Assumes the value has been validated.
func (e EngineConfig) Inactivity() time.Duration {
	return parseOrZero(e.InactivityTimeout)
}

func parseOrZero(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
