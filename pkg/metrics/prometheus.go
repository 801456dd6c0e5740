// Package metrics provides Prometheus metrics for the stillcap capture service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// scoreBuckets spread resolution toward 1.0 where the capture threshold lives.
var scoreBuckets = []float64{0.1, 0.25, 0.5, 0.75, 0.85, 0.9, 0.93, 0.95, 0.97, 0.99, 1}

// Manager manages all Prometheus metrics for the capture service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Session loop
	ticks           prometheus.Counter
	stabilityScore  prometheus.Gauge
	scoreHistogram  prometheus.Histogram
	captures        prometheus.Counter
	captureFailures prometheus.Counter
	sessionState    prometheus.Gauge
	sessionStarts   prometheus.Counter
	sessionStops    *prometheus.CounterVec
	startupFailures *prometheus.CounterVec
	startupDuration prometheus.Histogram

	// Feeds
	samplesRecorded  *prometheus.CounterVec
	samplesDuplicate *prometheus.CounterVec
	samplesInvalid   *prometheus.CounterVec
	samplesForeign   *prometheus.CounterVec
	feedConnections  *prometheus.GaugeVec
	framesReceived   prometheus.Counter
	storedFrames     prometheus.Gauge
	storedBytes      prometheus.Gauge

	// Display pipeline
	observationQueueSize prometheus.Gauge
	observationsDropped  prometheus.Counter
	observationsSent     prometheus.Counter
	subscribers          prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "stillcap",
		subsystem:        "session",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.ticks = m.counter("ticks_total", "Frame ticks evaluated while capturing")
	m.stabilityScore = m.gauge("stability_score", "Most recent stability score in (0, 1]")
	m.scoreHistogram = m.histogram("stability_score_distribution", "Distribution of per-frame stability scores", scoreBuckets)
	m.captures = m.counter("captures_total", "Still frames captured")
	m.captureFailures = m.counter("capture_failures_total", "Capture attempts where no camera frame could be read")
	m.sessionState = m.gauge("state", "Current session state (0 idle, 1 priming, 2 capturing, 3 stopped)")
	m.sessionStarts = m.counter("starts_total", "Sessions that reached the capturing state")
	m.sessionStops = m.counterVec("stops_total", "Sessions stopped, by cause", "cause")
	m.startupFailures = m.counterVec("startup_failures_total", "Failed session starts, by reason", "reason")
	m.startupDuration = m.histogram("startup_duration_milliseconds", "Time spent in startup checks", m.histogramBuckets)

	m.samplesRecorded = m.counterVec("samples_recorded_total", "Motion samples recorded into the buffer", "feed")
	m.samplesDuplicate = m.counterVec("samples_duplicate_total", "Redelivered motion samples dropped", "feed")
	m.samplesInvalid = m.counterVec("samples_invalid_total", "Motion samples that failed to decode", "feed")
	m.samplesForeign = m.counterVec("samples_foreign_total", "Motion samples dropped because another source holds the buffer", "feed")
	m.feedConnections = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "feed_connections",
		Help: "Connected sensor and camera feeds", ConstLabels: m.constLabels,
	}, []string{"feed"})
	m.framesReceived = m.counter("camera_frames_received_total", "Camera frames received from the camera feed")
	m.storedFrames = m.gauge("stored_frames", "Captured frames held in the frame store")
	m.storedBytes = m.gauge("stored_frame_bytes", "Bytes of captured frames held in the frame store")

	m.observationQueueSize = m.gauge("observation_queue_size", "Observations waiting for the display dispatcher")
	m.observationsDropped = m.counter("observations_dropped_total", "Observations dropped because the display queue was full")
	m.observationsSent = m.counter("observations_sent_total", "Observations delivered to display subscribers")
	m.subscribers = m.gauge("display_subscribers", "Connected display subscribers")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_request_duration_milliseconds",
		Help: "HTTP request duration in milliseconds", ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordTick records one evaluated frame and its score.
func RecordTick(score float64) {
	globalManager.ticks.Inc()
	globalManager.stabilityScore.Set(score)
	globalManager.scoreHistogram.Observe(score)
}

// RecordCapture increments the captures counter.
func RecordCapture() { globalManager.captures.Inc() }

// RecordCaptureFailure increments the capture failure counter.
func RecordCaptureFailure() { globalManager.captureFailures.Inc() }

// UpdateSessionState publishes the numeric session state.
func UpdateSessionState(state int) { globalManager.sessionState.Set(float64(state)) }

// RecordSessionStart counts a session that reached capturing.
func RecordSessionStart() { globalManager.sessionStarts.Inc() }

// RecordSessionStop counts a stopped session; cause is "operator" or "target".
func RecordSessionStop(cause string) { globalManager.sessionStops.WithLabelValues(cause).Inc() }

// RecordStartupFailure counts a failed start by reason code.
func RecordStartupFailure(reason string) {
	globalManager.startupFailures.WithLabelValues(reason).Inc()
}

// RecordStartupDuration observes how long the startup checks took.
func RecordStartupDuration(ms float64) { globalManager.startupDuration.Observe(ms) }

// RecordSampleRecorded counts a sample written into the buffer.
func RecordSampleRecorded(feed string) { globalManager.samplesRecorded.WithLabelValues(feed).Inc() }

// RecordSampleDuplicate counts a redelivered sample.
func RecordSampleDuplicate(feed string) { globalManager.samplesDuplicate.WithLabelValues(feed).Inc() }

// RecordSampleInvalid counts a sample that could not be decoded.
func RecordSampleInvalid(feed string) { globalManager.samplesInvalid.WithLabelValues(feed).Inc() }

// RecordSampleForeign counts a sample from a source that does not hold the buffer.
func RecordSampleForeign(feed string) { globalManager.samplesForeign.WithLabelValues(feed).Inc() }

// UpdateFeedConnections sets the number of connected clients for a feed.
func UpdateFeedConnections(feed string, count int) {
	globalManager.feedConnections.WithLabelValues(feed).Set(float64(count))
}

// RecordFrameReceived counts a camera frame.
func RecordFrameReceived() { globalManager.framesReceived.Inc() }

// UpdateStoredFrames sets the frame store size.
func UpdateStoredFrames(count int, bytes int64) {
	globalManager.storedFrames.Set(float64(count))
	globalManager.storedBytes.Set(float64(bytes))
}

// UpdateObservationQueueSize sets the display queue backlog.
func UpdateObservationQueueSize(size int) { globalManager.observationQueueSize.Set(float64(size)) }

// RecordObservationDropped counts an observation lost to backpressure.
func RecordObservationDropped() { globalManager.observationsDropped.Inc() }

// RecordObservationSent counts an observation delivered to subscribers.
func RecordObservationSent() { globalManager.observationsSent.Inc() }

// UpdateSubscribers sets the number of display subscribers.
func UpdateSubscribers(count int) { globalManager.subscribers.Set(float64(count)) }

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error for a specific component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage updates the system memory usage metric.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount updates the goroutine count metric.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
