package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging,
// tracing, and metrics.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Initialize logger
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	// Initialize tracer
	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	// Initialize metrics
	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}

	// Metrics server is not explicitly shut down here as it may need to
	// continue serving metrics until the very end of the application
	// lifecycle

	return nil
}

// Flush forces all pending telemetry data to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// Context Helpers for common instrumentation patterns

// InstrumentedContext creates a context with telemetry, logger fields, and
// a trace span.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing,
// and timing.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:    ctx,
			Logger: FromContext(ctx),
			Timer:  NewTimer(),
		}
	}

	// Start trace span
	spanCtx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)

	// Create logger with operation field
	logger := tel.Logger.WithField("operation", operation)

	// Add trace context to logger if available
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:    spanCtx,
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End finishes the instrumented operation, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span != nil {
		if err != nil {
			RecordError(ic.Span, err)
		} else {
			RecordSuccess(ic.Span)
		}
		ic.Span.End()
	}
}

// WithRestoreContext creates a context enriched with restore-specific
// telemetry.
func WithRestoreContext(ctx context.Context, restoreID, mode string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	// Start restore span
	spanCtx, span := tel.Tracer.StartRestoreSpan(ctx, restoreID)
	span.SetAttributes(AttrRestoreMode.String(mode))

	// Create restore-specific logger
	logger := tel.Logger.WithRestoreID(restoreID).WithField("mode", mode)
	spanCtx = logger.WithContext(spanCtx)

	// Record restore started metric
	tel.Metrics.RecordRestoreStarted(mode)

	// Store the span in context for later retrieval
	spanCtx = context.WithValue(spanCtx, restoreSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, restoreTimerKey{}, NewTimer())

	return spanCtx
}

// restoreSpanKey is the context key for restore spans.
type restoreSpanKey struct{}

// restoreTimerKey is the context key for restore timers.
type restoreTimerKey struct{}

// EndRestoreContext completes the restore context, recording metrics.
func EndRestoreContext(ctx context.Context, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	// Get the restore span from context
	if span, ok := ctx.Value(restoreSpanKey{}).(trace.Span); ok {
		span.SetAttributes(AttrRestoreStatus.String(status))
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	var duration time.Duration
	if timer, ok := ctx.Value(restoreTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	tel.Metrics.RecordRestoreCompleted(status, duration)
}

// RecordDocumentDecode runs one document's decode with span, timer, and
// metrics around it.
func RecordDocumentDecode(ctx context.Context, objectID, kind string, fn func(context.Context) error) error {
	tel := FromTelemetryContext(ctx)

	var span trace.Span
	if tel != nil {
		ctx, span = tel.Tracer.StartDocumentSpan(ctx, objectID, kind)
		defer span.End()
	}

	timer := NewTimer()

	err := fn(ctx)

	if tel != nil {
		duration := timer.Duration()
		tel.Metrics.ObserveDocumentDecode(kind, duration)
		status := "restored"
		if err != nil {
			status = "excluded"
			tel.Metrics.RecordDocumentProcessed(kind, status)
			RecordError(span, err)
		} else {
			tel.Metrics.RecordDocumentProcessed(kind, status)
			RecordSuccess(span)
		}
	}

	return err
}

// RecordSnapshotPass runs a snapshot pass with span, timer, and metrics
// around it. The callback returns the number of documents written.
func RecordSnapshotPass(ctx context.Context, reason string, fn func(context.Context) (int, error)) error {
	tel := FromTelemetryContext(ctx)

	var span trace.Span
	if tel != nil {
		ctx, span = tel.Tracer.StartSnapshotSpan(ctx, reason)
		defer span.End()
	}

	timer := NewTimer()

	docs, err := fn(ctx)

	if tel != nil {
		duration := timer.Duration()
		status := "ok"
		if err != nil {
			status = "failed"
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		tel.Metrics.RecordSnapshot(status, duration, docs)
	}

	return err
}
