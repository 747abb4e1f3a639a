// Package metrics provides Prometheus metrics for the EcoTogether submission service.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Submission pipeline
	submissionsEvaluated prometheus.Counter
	evaluationLatency    prometheus.Histogram
	decisions            *prometheus.CounterVec
	pendingEvaluations   prometheus.Gauge

	// Photo checks
	classificationLatency    prometheus.Histogram
	classificationConfidence prometheus.Histogram
	classificationErrors     prometheus.Counter
	captureChecks            *prometheus.CounterVec

	// Video checks
	motionChecks  *prometheus.CounterVec
	motionScore   prometheus.Histogram
	motionLatency prometheus.Histogram

	// Ledger
	awards            prometheus.Counter
	awardedPoints     prometheus.Counter
	confirmDuplicates prometheus.Counter
	ledgerLatency     *prometheus.HistogramVec
	ledgerErrors      *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewMetricsManager(WithPrometheusRegistry(customRegistry))
}

// NewMetricsManager creates a new metrics manager with default configuration.
func NewMetricsManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ecotogether",
		subsystem:        "submissions",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.submissionsEvaluated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("evaluated_total"),
		Help: "Total number of submissions evaluated",
	})

	m.evaluationLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("evaluation_latency_milliseconds"),
		Help:    "End-to-end evaluation latency in milliseconds",
		Buckets: m.histogramBuckets,
	})

	m.decisions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("decisions_total"),
		Help: "Score decisions by total points awarded",
	}, []string{"total"})

	m.pendingEvaluations = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("pending_evaluations"),
		Help: "Evaluations waiting for confirmation",
	})

	m.classificationLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("classification_latency_milliseconds"),
		Help:    "Classifier inference latency in milliseconds",
		Buckets: m.histogramBuckets,
	})

	m.classificationConfidence = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("classification_confidence_percent"),
		Help:    "Confidence of the predicted class, 0-100",
		Buckets: prometheus.LinearBuckets(10, 10, 10),
	})

	m.classificationErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("classification_errors_total"),
		Help: "Photos that could not be decoded or classified",
	})

	m.captureChecks = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("capture_checks_total"),
		Help: "Capture authenticity checks by result",
	}, []string{"result"})

	m.motionChecks = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("motion_checks_total"),
		Help: "Motion verifications by result",
	}, []string{"result"})

	m.motionScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("motion_score"),
		Help:    "Accumulated luminance difference per verified video",
		Buckets: prometheus.ExponentialBuckets(1e4, 4, 10),
	})

	m.motionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("motion_latency_milliseconds"),
		Help:    "Video decode and motion scoring latency in milliseconds",
		Buckets: m.histogramBuckets,
	})

	m.awards = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("awards_total"),
		Help: "Awards written to the ledger",
	})

	m.awardedPoints = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("awarded_points_total"),
		Help: "Points written to the ledger",
	})

	m.confirmDuplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("confirm_duplicates_total"),
		Help: "Confirm requests rejected because the evaluation was already confirmed",
	})

	m.ledgerLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("ledger_latency_milliseconds"),
		Help:    "Ledger operation latency in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"op"})

	m.ledgerErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("ledger_errors_total"),
		Help: "Ledger operation failures",
	}, []string{"op"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("http_requests_total"),
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("http_request_duration_milliseconds"),
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("errors_by_component_total"),
		Help: "Total number of errors by component",
	}, []string{"component", "error_type"})

	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("errors_by_type_total"),
		Help: "Total number of errors by type and severity",
	}, []string{"error_type", "severity"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("errors_by_endpoint_total"),
		Help: "Total number of errors by endpoint",
	}, []string{"endpoint", "method", "error_type"})

	m.errorLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("error_latency_milliseconds"),
		Help:    "Latency of operations that ended in an error",
		Buckets: m.histogramBuckets,
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("system_memory_bytes"),
		Help: "Heap bytes allocated",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("system_goroutines"),
		Help: "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("system_gc_pause_milliseconds"),
		Help:    "Average GC pause in milliseconds",
		Buckets: m.histogramBuckets,
	})
}

// Submission pipeline.

// RecordSubmissionEvaluated counts an evaluation and its latency.
func RecordSubmissionEvaluated(latencyMs float64) {
	globalManager.submissionsEvaluated.Inc()
	globalManager.evaluationLatency.Observe(latencyMs)
}

// RecordDecision counts a score decision by its total.
func RecordDecision(totalPoints int) {
	globalManager.decisions.WithLabelValues(strconv.Itoa(totalPoints)).Inc()
}

// UpdatePendingEvaluations sets the number of unconfirmed evaluations.
func UpdatePendingEvaluations(n int) {
	globalManager.pendingEvaluations.Set(float64(n))
}

// Photo checks.

// RecordClassification records inference latency and the winning confidence.
func RecordClassification(latencyMs, confidence float64) {
	globalManager.classificationLatency.Observe(latencyMs)
	globalManager.classificationConfidence.Observe(confidence)
}

// RecordClassificationError increments the classification error counter.
func RecordClassificationError() {
	globalManager.classificationErrors.Inc()
}

// RecordCaptureCheck counts a capture authenticity verdict.
func RecordCaptureCheck(fromCamera bool) {
	result := "not_camera"
	if fromCamera {
		result = "camera"
	}
	globalManager.captureChecks.WithLabelValues(result).Inc()
}

// Video checks.

// RecordMotionCheck records a motion verdict. result is one of
// "valid", "invalid" or "undecodable".
func RecordMotionCheck(result string, score int64, latencyMs float64) {
	globalManager.motionChecks.WithLabelValues(result).Inc()
	globalManager.motionScore.Observe(float64(score))
	globalManager.motionLatency.Observe(latencyMs)
}

// Ledger.

// RecordAward counts a successful award.
func RecordAward(points int) {
	globalManager.awards.Inc()
	globalManager.awardedPoints.Add(float64(points))
}

// RecordConfirmDuplicate counts a rejected second confirm.
func RecordConfirmDuplicate() {
	globalManager.confirmDuplicates.Inc()
}

// RecordLedgerLatency records ledger operation latency.
func RecordLedgerLatency(op string, latencyMs float64) {
	globalManager.ledgerLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordLedgerError counts a failed ledger operation.
func RecordLedgerError(op string) {
	globalManager.ledgerErrors.WithLabelValues(op).Inc()
}

// HTTP.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
