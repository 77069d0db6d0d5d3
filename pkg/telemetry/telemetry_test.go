package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// newTestTelemetry builds a quiet telemetry stack with live metrics and no
// trace export or metrics server.
func newTestTelemetry(t *testing.T) *Telemetry {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Logging.Level = "error"
	cfg.Logging.Format = "json"
	cfg.Logging.Output = "stderr"
	cfg.Tracing.Enabled = false
	cfg.Metrics.Enabled = true
	cfg.Metrics.ListenAddress = ":0"

	tel, err := NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("failed to create telemetry: %v", err)
	}
	return tel
}

func TestNewTelemetryRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceName = ""
	if _, err := NewTelemetry(cfg); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestWithContextRoundTrip(t *testing.T) {
	tel := newTestTelemetry(t)

	ctx := tel.WithContext(context.Background())
	if got := FromTelemetryContext(ctx); got != tel {
		t.Error("expected the same telemetry instance from the context")
	}
	if got := FromTelemetryContext(context.Background()); got != nil {
		t.Error("expected nil from an unenriched context")
	}
}

func TestRestoreContextRecordsMetrics(t *testing.T) {
	tel := newTestTelemetry(t)
	ctx := tel.WithContext(context.Background())

	ctx = WithRestoreContext(ctx, "r-1", "lenient")
	if got := testutil.ToFloat64(tel.Metrics.restoresStarted.WithLabelValues("lenient")); got != 1 {
		t.Errorf("expected 1 started restore, got %v", got)
	}
	if got := testutil.ToFloat64(tel.Metrics.activeRestores); got != 1 {
		t.Errorf("expected 1 active restore, got %v", got)
	}

	EndRestoreContext(ctx, "ok", nil)
	if got := testutil.ToFloat64(tel.Metrics.restoresCompleted.WithLabelValues("ok")); got != 1 {
		t.Errorf("expected 1 completed restore, got %v", got)
	}
	if got := testutil.ToFloat64(tel.Metrics.activeRestores); got != 0 {
		t.Errorf("expected 0 active restores, got %v", got)
	}
}

func TestRecordDocumentDecodeCountsOutcomes(t *testing.T) {
	tel := newTestTelemetry(t)
	ctx := tel.WithContext(context.Background())

	if err := RecordDocumentDecode(ctx, "e-1", "entity", func(ctx context.Context) error {
		return nil
	}); err != nil {
		t.Fatalf("decode callback failed: %v", err)
	}

	boom := errors.New("bad document")
	if err := RecordDocumentDecode(ctx, "e-2", "entity", func(ctx context.Context) error {
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected the callback error back, got %v", err)
	}

	restored := testutil.ToFloat64(tel.Metrics.documentsProcessed.WithLabelValues("entity", "restored"))
	excluded := testutil.ToFloat64(tel.Metrics.documentsProcessed.WithLabelValues("entity", "excluded"))
	if restored != 1 || excluded != 1 {
		t.Errorf("expected 1 restored and 1 excluded, got %v and %v", restored, excluded)
	}
}

func TestRecordSnapshotPass(t *testing.T) {
	tel := newTestTelemetry(t)
	ctx := tel.WithContext(context.Background())

	if err := RecordSnapshotPass(ctx, "test", func(ctx context.Context) (int, error) {
		return 3, nil
	}); err != nil {
		t.Fatalf("snapshot callback failed: %v", err)
	}

	if got := testutil.ToFloat64(tel.Metrics.snapshotsWritten.WithLabelValues("ok")); got != 1 {
		t.Errorf("expected 1 snapshot pass, got %v", got)
	}
	if got := testutil.ToFloat64(tel.Metrics.snapshotDocuments); got != 3 {
		t.Errorf("expected 3 documents recorded, got %v", got)
	}
}

func TestRecordFacadeRejection(t *testing.T) {
	tel := newTestTelemetry(t)

	tel.Metrics.RecordFacadeRejection("SubmitTask")
	tel.Metrics.RecordFacadeRejection("SubmitTask")
	if got := testutil.ToFloat64(tel.Metrics.facadeRejections.WithLabelValues("SubmitTask")); got != 2 {
		t.Errorf("expected 2 rejections, got %v", got)
	}
}

func TestDisabledMetricsAreNoOps(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("failed to create disabled metrics: %v", err)
	}

	// None of these may panic without a registry
	m.RecordRestoreStarted("lenient")
	m.RecordRestoreCompleted("ok", 0)
	m.RecordDocumentProcessed("entity", "restored")
	m.RecordFacadeRejection("Lookup")
	m.RecordSnapshot("ok", 0, 0)
	m.RecordError("internal")
}

func TestTelemetryShutdown(t *testing.T) {
	tel := newTestTelemetry(t)
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}
