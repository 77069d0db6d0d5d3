package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "openmast.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Store.Backend != "sqlite" {
		t.Errorf("expected sqlite backend, got %q", cfg.Store.Backend)
	}
	if cfg.Rebind.MaxParallel != 8 {
		t.Errorf("expected 8 decoders, got %d", cfg.Rebind.MaxParallel)
	}
	if cfg.Rebind.MasterDeadline != 2*time.Minute {
		t.Errorf("expected 2m master deadline, got %s", cfg.Rebind.MasterDeadline)
	}
	if !cfg.Policy.Enabled {
		t.Error("expected admission gating on by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate: %v", err)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Telemetry.LogLevel != "info" {
		t.Error("expected defaults for an empty path")
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: file
  path: /var/lib/openmast/snapshots
rebind:
  strict: true
  max_parallel: 16
telemetry:
  log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Store.Backend != "file" {
		t.Errorf("expected file backend, got %q", cfg.Store.Backend)
	}
	if !cfg.Rebind.Strict || cfg.Rebind.MaxParallel != 16 {
		t.Errorf("expected rebind overrides applied, got %+v", cfg.Rebind)
	}
	if cfg.Telemetry.LogLevel != "debug" {
		t.Errorf("expected debug log level, got %q", cfg.Telemetry.LogLevel)
	}

	// Unset fields keep their defaults
	if cfg.Rebind.MasterDeadline != 2*time.Minute {
		t.Errorf("expected default master deadline, got %s", cfg.Rebind.MasterDeadline)
	}
	if cfg.Telemetry.LogFormat != "console" {
		t.Errorf("expected default log format, got %q", cfg.Telemetry.LogFormat)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for a missing config file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "store: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Store.Backend = "postgres" }},
		{"sqlite without path", func(c *Config) { c.Store.Path = "" }},
		{"too many decoders", func(c *Config) { c.Rebind.MaxParallel = 300 }},
		{"negative deadline", func(c *Config) { c.Rebind.MasterDeadline = -time.Second }},
		{"unknown log level", func(c *Config) { c.Telemetry.LogLevel = "verbose" }},
		{"unknown tracing exporter", func(c *Config) { c.Telemetry.TracingExporter = "jaeger" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation failure")
			}
		})
	}
}

func TestValidateMemoryBackendNeedsNoPath(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "memory"
	cfg.Store.Path = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected memory backend to validate without a path: %v", err)
	}
}
