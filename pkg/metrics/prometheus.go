// Package metrics provides Prometheus metrics for the matchpulse service.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultNamespace = "matchpulse"

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ingest pipeline
	ingestAccepted     prometheus.Counter
	ingestDuplicate    prometheus.Counter
	ingestUnknownMatch prometheus.Counter
	ingestFailed       prometheus.Counter
	ingestRetries      prometheus.Counter
	ingestLatency      prometheus.Histogram
	analyticsLatency   prometheus.Histogram
	snapshotsCreated   prometheus.Counter
	matchesCreated     prometheus.Counter

	// Live stream
	streamSubscribers  prometheus.Gauge
	streamMatches      prometheus.Gauge
	subscribeRejected  *prometheus.CounterVec
	broadcastDelivered prometheus.Counter
	broadcastFailed    prometheus.Counter
	broadcastDropped   prometheus.Counter
	broadcastLatency   prometheus.Histogram

	// Store
	storeUpdateLatency *prometheus.HistogramVec
	storeQueryLatency  *prometheus.HistogramVec
	storeTxRetries     *prometheus.CounterVec
	storeRecords       *prometheus.GaugeVec

	// Broadcast queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Broadcast workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

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
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        defaultNamespace,
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(subsystem, name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(subsystem, name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(subsystem, name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.ingestAccepted = m.counter("ingest", "events_accepted_total", "Events accepted and applied to a match")
	m.ingestDuplicate = m.counter("ingest", "events_duplicate_total", "Events rejected as duplicates of an earlier event_id")
	m.ingestUnknownMatch = m.counter("ingest", "events_unknown_match_total", "Events referencing a match that does not exist")
	m.ingestFailed = m.counter("ingest", "events_failed_total", "Events that failed with an infrastructure error")
	m.ingestRetries = m.counter("ingest", "retries_total", "Ingest units of work retried after a version conflict")
	m.ingestLatency = m.histogram("ingest", "latency_milliseconds", "End to end ingest latency in milliseconds")
	m.analyticsLatency = m.histogram("analytics", "compute_latency_milliseconds", "Analytics snapshot computation latency in milliseconds")
	m.snapshotsCreated = m.counter("analytics", "snapshots_total", "Analytics snapshots created")
	m.matchesCreated = m.counter("ingest", "matches_created_total", "Matches created")

	m.streamSubscribers = m.gauge("stream", "subscribers", "Currently connected live stream subscribers")
	m.streamMatches = m.gauge("stream", "matches", "Matches with at least one live stream subscriber")
	m.subscribeRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "stream", Name: "subscribe_rejected_total",
		Help: "Subscriptions rejected by capacity limits", ConstLabels: m.constLabels,
	}, []string{"reason"})
	m.broadcastDelivered = m.counter("stream", "deliveries_total", "Updates delivered to subscribers")
	m.broadcastFailed = m.counter("stream", "delivery_failures_total", "Updates that failed to reach a subscriber")
	m.broadcastDropped = m.counter("stream", "broadcasts_dropped_total", "Broadcast jobs dropped because the queue was full")
	m.broadcastLatency = m.histogram("stream", "broadcast_latency_milliseconds", "Time to fan one update out to all subscribers")

	m.storeUpdateLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "store", Name: "update_latency_milliseconds",
		Help: "Store write latency in milliseconds", ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, []string{"store"})
	m.storeQueryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "store", Name: "query_latency_milliseconds",
		Help: "Store read latency in milliseconds", ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, []string{"store"})
	m.storeTxRetries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "store", Name: "tx_retries_total",
		Help: "Transactions retried after a storage conflict", ConstLabels: m.constLabels,
	}, []string{"store"})
	m.storeRecords = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "store", Name: "records",
		Help: "Records held by the in-memory store", ConstLabels: m.constLabels,
	}, []string{"kind"})

	m.queueSize = m.gauge("queue", "size", "Broadcast jobs waiting in the queue")
	m.queueCapacity = m.gauge("queue", "capacity", "Broadcast queue capacity")
	m.queueUtilization = m.gauge("queue", "utilization_percent", "Broadcast queue utilization percentage")
	m.queueEnqueued = m.counter("queue", "enqueued_total", "Broadcast jobs enqueued")
	m.queueDequeued = m.counter("queue", "dequeued_total", "Broadcast jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue", "enqueue_errors_total", "Failed enqueue attempts")
	m.queueProcessingLatency = m.histogram("queue", "wait_milliseconds", "Time a broadcast job spent queued")

	m.workerCount = m.gauge("worker", "count", "Configured broadcast workers")
	m.workerActiveCount = m.gauge("worker", "active", "Workers currently delivering a job")
	m.workerIdleCount = m.gauge("worker", "idle", "Workers waiting for a job")
	m.workerProcessingLatency = m.histogram("worker", "processing_latency_milliseconds", "Time spent delivering one job")
	m.workerErrors = m.counter("worker", "errors_total", "Jobs that failed inside a worker")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http", Name: "requests_total",
		Help: "HTTP requests by endpoint, method and status", ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "http", Name: "request_duration_milliseconds",
		Help: "HTTP request duration in milliseconds", ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "errors", Name: "by_component_total",
		Help: "Errors by component and type", ConstLabels: m.constLabels,
	}, []string{"component", "error_type"})
	m.errorsByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "errors", Name: "by_type_total",
		Help: "Errors by type and severity", ConstLabels: m.constLabels,
	}, []string{"error_type", "severity"})
	m.errorsByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "errors", Name: "by_endpoint_total",
		Help: "Errors by HTTP endpoint", ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = m.gauge("system", "memory_usage_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge("system", "goroutines", "Number of goroutines")
	m.systemGCPauseTime = promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "system", Name: "gc_pause_milliseconds",
		Help: "Most recent GC pause in milliseconds", ConstLabels: m.constLabels,
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// Ingest metrics.

func RecordIngestAccepted()             { globalManager.ingestAccepted.Inc() }
func RecordIngestDuplicate()            { globalManager.ingestDuplicate.Inc() }
func RecordIngestUnknownMatch()         { globalManager.ingestUnknownMatch.Inc() }
func RecordIngestFailed()               { globalManager.ingestFailed.Inc() }
func RecordIngestRetry()                { globalManager.ingestRetries.Inc() }
func RecordIngestLatency(ms float64)    { globalManager.ingestLatency.Observe(ms) }
func RecordAnalyticsLatency(ms float64) { globalManager.analyticsLatency.Observe(ms) }
func RecordSnapshotCreated()            { globalManager.snapshotsCreated.Inc() }
func RecordMatchCreated()               { globalManager.matchesCreated.Inc() }

// Stream metrics.

// UpdateStreamSubscribers sets the subscriber and active match gauges.
func UpdateStreamSubscribers(subscribers, matches int) {
	globalManager.streamSubscribers.Set(float64(subscribers))
	globalManager.streamMatches.Set(float64(matches))
}

// RecordSubscribeRejected counts a refused subscription; reason is
// "total" or "per_match".
func RecordSubscribeRejected(reason string) {
	globalManager.subscribeRejected.WithLabelValues(reason).Inc()
}

func RecordBroadcastDelivered()         { globalManager.broadcastDelivered.Inc() }
func RecordBroadcastFailed()            { globalManager.broadcastFailed.Inc() }
func RecordBroadcastDropped()           { globalManager.broadcastDropped.Inc() }
func RecordBroadcastLatency(ms float64) { globalManager.broadcastLatency.Observe(ms) }

// Store metrics.

// RecordStoreUpdateLatency records a write against store ("memory", "badger", "postgres").
func RecordStoreUpdateLatency(store string, ms float64) {
	globalManager.storeUpdateLatency.WithLabelValues(store).Observe(ms)
}

// RecordStoreQueryLatency records a read against store.
func RecordStoreQueryLatency(store string, ms float64) {
	globalManager.storeQueryLatency.WithLabelValues(store).Observe(ms)
}

// RecordStoreTxRetry counts a retried transaction.
func RecordStoreTxRetry(store string) {
	globalManager.storeTxRetries.WithLabelValues(store).Inc()
}

// UpdateStoreRecords sets the record gauge for kind ("matches", "events", "snapshots").
func UpdateStoreRecords(kind string, count int) {
	globalManager.storeRecords.WithLabelValues(kind).Set(float64(count))
}

// Queue metrics.

func UpdateQueueSize(size int)                { globalManager.queueSize.Set(float64(size)) }
func UpdateQueueCapacity(capacity int)        { globalManager.queueCapacity.Set(float64(capacity)) }
func UpdateQueueUtilization(percent float64)  { globalManager.queueUtilization.Set(percent) }
func RecordQueueEnqueue()                     { globalManager.queueEnqueued.Inc() }
func RecordQueueDequeue()                     { globalManager.queueDequeued.Inc() }
func RecordQueueEnqueueError()                { globalManager.queueEnqueueErrors.Inc() }
func RecordQueueProcessingLatency(ms float64) { globalManager.queueProcessingLatency.Observe(ms) }

// Worker metrics.

func UpdateWorkerCount(count int)              { globalManager.workerCount.Set(float64(count)) }
func UpdateWorkerActiveCount(count int)        { globalManager.workerActiveCount.Set(float64(count)) }
func UpdateWorkerIdleCount(count int)          { globalManager.workerIdleCount.Set(float64(count)) }
func RecordWorkerProcessingLatency(ms float64) { globalManager.workerProcessingLatency.Observe(ms) }
func RecordWorkerError()                       { globalManager.workerErrors.Inc() }

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error metrics.

// RecordErrorByComponent records an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error by HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System metrics.

func UpdateSystemMemoryUsage(bytes uint64)    { globalManager.systemMemoryUsage.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(count int)    { globalManager.systemGoroutineCount.Set(float64(count)) }
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// CounterValue returns the current value of the named counter family summed
// over all label sets. It is used by /stats and by tests.
func CounterValue(name string) (float64, error) {
	families, err := customRegistry.Gather()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrGatherFailed, err)
	}
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				total += c.GetValue()
			}
		}
	}
	return total, nil
}
