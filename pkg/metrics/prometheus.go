// Package metrics provides Prometheus metrics for the raidtrack service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan outcomes reported per bib.
const (
	OutcomeCached    = "cached"
	OutcomeFetched   = "fetched"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Acquisition
	scanOutcomes   *prometheus.CounterVec
	fetchLatency   prometheus.Histogram
	batchesStarted prometheus.Counter
	activeBatches  prometheus.Gauge

	// Runner cache
	runnersStored  prometheus.Gauge
	persistLatency prometheus.Histogram
	persistErrors  prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Analytics
	analyticsLatency *prometheus.HistogramVec
	viewCacheHits    *prometheus.CounterVec
	viewCacheMisses  *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "raidtrack",
		subsystem:        "tracker",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.scanOutcomes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scans_total",
		Help:      "Bibs processed by the acquisition worker, by outcome",
	}, []string{"outcome"})

	m.fetchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fetch_latency_milliseconds",
		Help:      "Latency of page-extraction fetches in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.batchesStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batches_started_total",
		Help:      "Scan batches submitted",
	})

	m.activeBatches = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batches_active",
		Help:      "Scan batches not yet finished",
	})

	m.runnersStored = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runners_stored",
		Help:      "Runner records held by the cache",
	})

	m.persistLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_latency_milliseconds",
		Help:      "Duration of runner cache persistence in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.persistErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_errors_total",
		Help:      "Failed runner cache writes",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Scan jobs waiting for the worker",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum number of pending scan jobs",
	})

	m.queueEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueued_total",
		Help:      "Scan jobs accepted by the queue",
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Scan jobs rejected by the queue",
	})

	m.analyticsLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "analytics_latency_milliseconds",
		Help:      "Analytics view computation time in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"view"})

	m.viewCacheHits = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "view_cache_hits_total",
		Help:      "Analytics views served from the view cache",
	}, []string{"view"})

	m.viewCacheMisses = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "view_cache_misses_total",
		Help:      "Analytics views computed from a snapshot",
	}, []string{"view"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_total",
		Help:      "Errors by component and type",
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_usage_bytes",
		Help:      "Heap bytes allocated",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutines",
		Help:      "Number of goroutines",
	})
}

// GetRegistry returns the registry the global manager reports to.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

func on() bool { return globalManager != nil && globalManager.enabled }

// RecordScanOutcome counts one processed bib.
func RecordScanOutcome(outcome string) {
	if on() {
		globalManager.scanOutcomes.WithLabelValues(outcome).Inc()
	}
}

// RecordFetchLatency observes a page-extraction fetch.
func RecordFetchLatency(ms float64) {
	if on() {
		globalManager.fetchLatency.Observe(ms)
	}
}

// RecordBatchStarted counts a submitted scan batch.
func RecordBatchStarted() {
	if on() {
		globalManager.batchesStarted.Inc()
		globalManager.activeBatches.Inc()
	}
}

// RecordBatchFinished marks a scan batch as done.
func RecordBatchFinished() {
	if on() {
		globalManager.activeBatches.Dec()
	}
}

// UpdateRunnersStored sets the number of cached runner records.
func UpdateRunnersStored(n int) {
	if on() {
		globalManager.runnersStored.Set(float64(n))
	}
}

// RecordPersistLatency observes a cache write.
func RecordPersistLatency(ms float64) {
	if on() {
		globalManager.persistLatency.Observe(ms)
	}
}

// RecordPersistError counts a failed cache write.
func RecordPersistError() {
	if on() {
		globalManager.persistErrors.Inc()
		globalManager.errorsByComponent.WithLabelValues("repository", "persist").Inc()
	}
}

// UpdateQueueSize sets the number of pending scan jobs.
func UpdateQueueSize(n int) {
	if on() {
		globalManager.queueSize.Set(float64(n))
	}
}

// UpdateQueueCapacity sets the queue bound.
func UpdateQueueCapacity(n int) {
	if on() {
		globalManager.queueCapacity.Set(float64(n))
	}
}

// RecordQueueEnqueue counts an accepted scan job.
func RecordQueueEnqueue() {
	if on() {
		globalManager.queueEnqueued.Inc()
	}
}

// RecordQueueEnqueueError counts a rejected scan job.
func RecordQueueEnqueueError(reason string) {
	if on() {
		globalManager.queueEnqueueErrors.Inc()
		globalManager.errorsByComponent.WithLabelValues("queue", reason).Inc()
	}
}

// RecordAnalyticsLatency observes the computation of one analytics view.
func RecordAnalyticsLatency(view string, ms float64) {
	if on() {
		globalManager.analyticsLatency.WithLabelValues(view).Observe(ms)
	}
}

// RecordViewCacheHit counts a view served from cache.
func RecordViewCacheHit(view string) {
	if on() {
		globalManager.viewCacheHits.WithLabelValues(view).Inc()
	}
}

// RecordViewCacheMiss counts a view computed from a fresh snapshot.
func RecordViewCacheMiss(view string) {
	if on() {
		globalManager.viewCacheMisses.WithLabelValues(view).Inc()
	}
}

// RecordHTTPRequest counts one HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if on() {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration observes one HTTP request.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	if on() {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
	}
}

// RecordErrorByComponent counts an error raised by a component.
func RecordErrorByComponent(component, errorType string) {
	if on() {
		globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// UpdateSystemMemoryUsage sets the heap allocation gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	if on() {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(n int) {
	if on() {
		globalManager.systemGoroutineCount.Set(float64(n))
	}
}
