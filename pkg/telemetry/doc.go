// Package telemetry provides observability instrumentation for the
// OpenMast management plane.
//
// The telemetry package integrates structured logging (zerolog),
// distributed tracing (OpenTelemetry), and metrics (Prometheus) into a
// unified system for monitoring restore and snapshot operations.
//
// # Architecture
//
// The telemetry system is built on three pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with OTLP and stdout exporters
//  3. Metrics Collection - Prometheus metrics for restores, snapshots, and the live graph
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "openmast"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Restore Instrumentation
//
// Restore operations use the context helpers, which start a span, attach
// restore fields to the logger, and record the restore metrics:
//
//	ctx = telemetry.WithRestoreContext(ctx, restoreID, "strict")
//	defer telemetry.EndRestoreContext(ctx, status, err)
//
// Per-document decoding is wrapped with RecordDocumentDecode, which times
// the decode and counts the restored/excluded outcome per kind.
//
// # Metrics
//
// All metrics live under the configured namespace (default "openmast"):
// restore counters and durations, per-document decode histograms, live
// graph gauges by kind and lifecycle state, facade rejection counters,
// and snapshot pass counters.
package telemetry
