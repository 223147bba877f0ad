package wizard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wombat2006/techdev-sub003/internal/config"
)

func TestBuild_ProducesValidConfig(t *testing.T) {
	t.Parallel()

	a := defaultAnswers()
	a.engines = []string{"claude", "codex", "gemini"}
	a.authToken = "s3cret"
	a.otlpEndpoint = "http://127.0.0.1:4318"

	cfg := build(a)
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("generated config invalid: %v", err)
	}

	if len(cfg.Engines) != 3 {
		t.Errorf("engines = %d, want 3", len(cfg.Engines))
	}
	if len(cfg.Tools) != 3 {
		t.Errorf("tools = %d, want 3", len(cfg.Tools))
	}
	if cfg.Telemetry.Endpoint != "http://127.0.0.1:4318" {
		t.Errorf("telemetry endpoint = %q", cfg.Telemetry.Endpoint)
	}
	if cfg.Telemetry.SampleRatio != 0.1 {
		t.Errorf("sample ratio = %v, want 0.1", cfg.Telemetry.SampleRatio)
	}

	for _, tc := range cfg.Tools {
		if _, ok := cfg.EngineFor(tc.Engine); !ok {
			t.Errorf("tool %s references missing engine %q", tc.ID, tc.Engine)
		}
	}
}

func TestBuild_NoTelemetryWithoutEndpoint(t *testing.T) {
	t.Parallel()

	cfg := build(defaultAnswers())
	if cfg.Telemetry.Endpoint != "" || cfg.Telemetry.SampleRatio != 0 {
		t.Errorf("telemetry should stay zero, got %+v", cfg.Telemetry)
	}
}

func TestBuild_UnknownEngineIgnored(t *testing.T) {
	t.Parallel()

	a := defaultAnswers()
	a.engines = []string{"claude", "cursor"}

	cfg := build(a)
	if len(cfg.Engines) != 1 || cfg.Engines[0].ID != "claude" {
		t.Errorf("engines = %+v, want claude only", cfg.Engines)
	}
}

func TestWriteConfig_RoundTrip(t *testing.T) {
	t.Parallel()

	a := defaultAnswers()
	a.bind = "0.0.0.0:9090"
	a.retention = "7"
	path := filepath.Join(t.TempDir(), "consultd.yaml")

	if err := writeConfig(path, build(a)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Errorf("file mode = %v, want 0600", fi.Mode().Perm())
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if err := config.Validate(loaded); err != nil {
		t.Fatalf("loaded config invalid: %v", err)
	}
	if loaded.Server.Bind != "0.0.0.0:9090" {
		t.Errorf("bind = %q, want 0.0.0.0:9090", loaded.Server.Bind)
	}
	if loaded.Store.RetentionDays != 7 {
		t.Errorf("retention = %d, want 7", loaded.Store.RetentionDays)
	}
}

func TestValidateBind(t *testing.T) {
	t.Parallel()

	for input, wantErr := range map[string]bool{
		"127.0.0.1:8787": false,
		":8787":          false,
		"localhost":      true,
		"":               true,
	} {
		err := validateBind(input)
		if (err != nil) != wantErr {
			t.Errorf("validateBind(%q) = %v, wantErr %v", input, err, wantErr)
		}
	}
}

func TestValidateRetention(t *testing.T) {
	t.Parallel()

	for input, wantErr := range map[string]bool{
		"0":   false,
		"30":  false,
		"-1":  true,
		"ten": true,
		"":    true,
	} {
		err := validateRetention(input)
		if (err != nil) != wantErr {
			t.Errorf("validateRetention(%q) = %v, wantErr %v", input, err, wantErr)
		}
	}
}
