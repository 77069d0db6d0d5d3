package telemetry

import (
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("expected default config to validate: %v", err)
	}
	if err := ProductionConfig().Validate(); err != nil {
		t.Errorf("expected production config to validate: %v", err)
	}
	if err := DevelopmentConfig().Validate(); err != nil {
		t.Errorf("expected development config to validate: %v", err)
	}
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty service name", func(c *Config) { c.ServiceName = "" }},
		{"empty service version", func(c *Config) { c.ServiceVersion = "" }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "logfmt" }},
		{"unknown trace exporter", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "jaeger"
		}},
		{"sampling rate above one", func(c *Config) { c.Tracing.SamplingRate = 1.5 }},
		{"negative sampling rate", func(c *Config) { c.Tracing.SamplingRate = -0.1 }},
		{"metrics without listen address", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.ListenAddress = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation failure")
			}
		})
	}
}

func TestDisabledTracingSkipsExporterCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tracing.Enabled = false
	cfg.Tracing.Exporter = "none"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected disabled tracing to validate: %v", err)
	}
}
