package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the OpenMast management plane.
type Metrics struct {
	config MetricsConfig

	// Restore metrics
	restoresStarted   *prometheus.CounterVec
	restoresCompleted *prometheus.CounterVec
	restoreDuration   *prometheus.HistogramVec

	// Per-document metrics
	documentsProcessed *prometheus.CounterVec
	documentDecodeTime *prometheus.HistogramVec

	// Graph metrics
	objectsManaged *prometheus.GaugeVec

	// Facade metrics
	facadeRejections *prometheus.CounterVec

	// Snapshot metrics
	snapshotsWritten  *prometheus.CounterVec
	snapshotDuration  *prometheus.HistogramVec
	snapshotDocuments prometheus.Gauge

	// Error metrics
	errorsByClass *prometheus.CounterVec

	// System metrics
	activeRestores prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		restoresStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "restores_started_total",
				Help:      "Total number of restore operations started",
			},
			[]string{"mode"},
		),
		restoresCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "restores_completed_total",
				Help:      "Total number of restore operations completed",
			},
			[]string{"status"},
		),
		restoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "restore_duration_seconds",
				Help:      "Duration of restore operations in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		documentsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_processed_total",
				Help:      "Total number of snapshot documents processed during restores",
			},
			[]string{"kind", "status"},
		),
		documentDecodeTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "document_decode_duration_seconds",
				Help:      "Duration of per-document memento decoding in seconds",
				Buckets:   buckets,
			},
			[]string{"kind"},
		),

		objectsManaged: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "objects_managed",
				Help:      "Current number of managed objects in the live graph",
			},
			[]string{"kind", "state"},
		),

		facadeRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "facade_rejections_total",
				Help:      "Total number of operations rejected by lifecycle facades",
			},
			[]string{"operation"},
		),

		snapshotsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshots_written_total",
				Help:      "Total number of snapshot passes written",
			},
			[]string{"status"},
		),
		snapshotDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_duration_seconds",
				Help:      "Duration of snapshot passes in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		snapshotDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "snapshot_documents",
				Help:      "Number of documents written by the most recent snapshot pass",
			},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),

		activeRestores: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_restores",
				Help:      "Current number of restore operations in flight",
			},
		),
	}

	registry.MustRegister(
		m.restoresStarted,
		m.restoresCompleted,
		m.restoreDuration,
		m.documentsProcessed,
		m.documentDecodeTime,
		m.objectsManaged,
		m.facadeRejections,
		m.snapshotsWritten,
		m.snapshotDuration,
		m.snapshotDocuments,
		m.errorsByClass,
		m.activeRestores,
	)

	return m, nil
}

// Restore Metrics

// RecordRestoreStarted increments the counter for started restores.
func (m *Metrics) RecordRestoreStarted(mode string) {
	if m.restoresStarted == nil {
		return
	}
	m.restoresStarted.WithLabelValues(mode).Inc()
	m.activeRestores.Inc()
}

// RecordRestoreCompleted records a completed restore with its status and
// duration.
func (m *Metrics) RecordRestoreCompleted(status string, duration time.Duration) {
	if m.restoresCompleted == nil {
		return
	}
	m.restoresCompleted.WithLabelValues(status).Inc()
	m.restoreDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeRestores.Dec()
}

// Document Metrics

// RecordDocumentProcessed records one document's restore outcome.
func (m *Metrics) RecordDocumentProcessed(kind, status string) {
	if m.documentsProcessed == nil {
		return
	}
	m.documentsProcessed.WithLabelValues(kind, status).Inc()
}

// ObserveDocumentDecode records the decode duration for one document.
func (m *Metrics) ObserveDocumentDecode(kind string, duration time.Duration) {
	if m.documentDecodeTime == nil {
		return
	}
	m.documentDecodeTime.WithLabelValues(kind).Observe(duration.Seconds())
}

// Graph Metrics

// SetObjectCount sets the current count of managed objects.
func (m *Metrics) SetObjectCount(kind, state string, count float64) {
	if m.objectsManaged == nil {
		return
	}
	m.objectsManaged.WithLabelValues(kind, state).Set(count)
}

// Facade Metrics

// RecordFacadeRejection records an operation rejected by a lifecycle
// facade.
func (m *Metrics) RecordFacadeRejection(operation string) {
	if m.facadeRejections == nil {
		return
	}
	m.facadeRejections.WithLabelValues(operation).Inc()
}

// Snapshot Metrics

// RecordSnapshot records one snapshot pass.
func (m *Metrics) RecordSnapshot(status string, duration time.Duration, documents int) {
	if m.snapshotsWritten == nil {
		return
	}
	m.snapshotsWritten.WithLabelValues(status).Inc()
	m.snapshotDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.snapshotDocuments.Set(float64(documents))
}

// Error Metrics

// RecordError records an error by class.
func (m *Metrics) RecordError(errorClass string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
