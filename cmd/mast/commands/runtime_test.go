package commands

import (
	"context"
	"testing"

	"github.com/openmast/openmast/pkg/config"
	"github.com/openmast/openmast/pkg/telemetry"
)

func TestTelemetryConfigMapping(t *testing.T) {
	cfg := config.Default()
	cfg.Telemetry.LogLevel = "debug"
	cfg.Telemetry.LogFormat = "json"
	cfg.Telemetry.TracingEnabled = true
	cfg.Telemetry.TracingExporter = "otlp"
	cfg.Telemetry.TracingEndpoint = "collector:4317"
	cfg.Telemetry.MetricsEnabled = true
	cfg.Telemetry.MetricsListen = ":9191"

	tcfg := telemetryConfig(cfg)
	if tcfg.Logging.Level != "debug" || tcfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config: %+v", tcfg.Logging)
	}
	if !tcfg.Tracing.Enabled || tcfg.Tracing.Exporter != "otlp" || tcfg.Tracing.Endpoint != "collector:4317" {
		t.Errorf("unexpected tracing config: %+v", tcfg.Tracing)
	}
	if !tcfg.Metrics.Enabled || tcfg.Metrics.ListenAddress != ":9191" {
		t.Errorf("unexpected metrics config: %+v", tcfg.Metrics)
	}
	if err := tcfg.Validate(); err != nil {
		t.Errorf("expected mapped config to validate: %v", err)
	}
}

func TestNewRuntimeInstrumentsContext(t *testing.T) {
	rt, ctx, err := newRuntime(context.Background(), func(cfg *config.Config) {
		cfg.Store.Backend = "memory"
		cfg.Store.Path = ""
		cfg.Telemetry.LogLevel = "error"
	})
	if err != nil {
		t.Fatalf("failed to build runtime: %v", err)
	}
	defer rt.close()

	// Driver calls made with the returned context reach the assembled
	// telemetry stack
	tel := telemetry.FromTelemetryContext(ctx)
	if tel == nil {
		t.Fatal("expected the returned context to carry the telemetry stack")
	}
	if tel != rt.tel {
		t.Error("expected the context to carry the runtime's own telemetry")
	}

	// The stack is usable end to end
	if _, err := rt.driver.Restore(ctx); err != nil {
		t.Fatalf("restore through the runtime failed: %v", err)
	}
}
