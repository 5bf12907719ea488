// Package metrics provides Prometheus metrics for the irwin deep-queue worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Histogram bucket layouts.
var (
	// ActivationBuckets covers report activation scores (0-100).
	ActivationBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 85, 90, 95, 100}

	// QueueWaitBuckets spans five minutes to a month, in seconds.
	QueueWaitBuckets = []float64{
		300, 600, 1800, // 5min, 10min, 30min
		3600, 7200, 14400, // 1hr, 2hr, 4hr
		28800, 43200, 86400, // 8hr, 12hr, 1day
		172800, 345600, 604800, // 2days, 4days, 1week
		1209600, 2592000, // 2weeks, 1month
	}

	// ProcessingBuckets spans thirty seconds to two hours, in seconds.
	ProcessingBuckets = []float64{
		30, 60, 120, 300, // 30s, 1min, 2min, 5min
		600, 900, 1200, 1800, // 10min, 15min, 20min, 30min
		2700, 3600, 5400, 7200, // 45min, 1hr, 1.5hr, 2hr
	}

	// LatencyBuckets is used for millisecond latencies of single calls.
	LatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000}
)

// Manager manages all Prometheus metrics for the worker.
type Manager struct {
	namespace   string
	subsystem   string
	constLabels prometheus.Labels
	registry    prometheus.Registerer

	// Report metrics
	playerReportActivation prometheus.Histogram
	reportsPublished       prometheus.Counter
	publishErrors          prometheus.Counter
	buildErrors            prometheus.Counter

	// Queue timing
	queueWait  prometheus.Histogram
	processing prometheus.Histogram

	// Iteration outcomes and ingestion
	iterations       *prometheus.CounterVec
	gamesAdmitted    prometheus.Counter
	gamesRejected    prometheus.Counter
	analysesProduced prometheus.Counter

	// Scoring
	scoringErrors  prometheus.Counter
	scoringLatency prometheus.Histogram

	// Boundaries
	repositoryErrors  *prometheus.CounterVec
	repositoryLatency *prometheus.HistogramVec
	remoteRequests    *prometheus.CounterVec
	retries           *prometheus.CounterVec

	// Operational
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	inFlight      prometheus.Gauge
	workerCount   prometheus.Gauge

	// HTTP (operational endpoints)
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:   "irwin",
		constLabels: prometheus.Labels{},
		registry:    prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// Default returns the global manager backing the package-level helpers.
func Default() *Manager {
	return globalManager
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.playerReportActivation = m.histogram("player_report_activation",
		"Distribution of player report activation scores", ActivationBuckets)
	m.reportsPublished = m.counter("reports_published_total", "Total number of reports published")
	m.publishErrors = m.counter("report_publish_errors_total", "Total number of reports the sink failed to accept")
	m.buildErrors = m.counter("report_build_errors_total", "Total number of reports that failed to build")

	m.queueWait = m.histogram("queue_wait_seconds",
		"Time players spend waiting in the engine analysis queue", QueueWaitBuckets)
	m.processing = m.histogram("processing_seconds",
		"Time spent processing player analysis in deep-queue", ProcessingBuckets)

	m.iterations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "iterations_total",
		Help:        "Worker iterations by outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})
	m.gamesAdmitted = m.counter("games_admitted_total", "Fetched games admitted for analysis")
	m.gamesRejected = m.counter("games_rejected_total", "Fetched games rejected as non-standard")
	m.analysesProduced = m.counter("analyses_produced_total", "Game analyses produced by the engine")

	m.scoringErrors = m.counter("scoring_errors_total", "Engine evaluations that failed")
	m.scoringLatency = m.histogram("scoring_latency_milliseconds",
		"Engine evaluation latency per game in milliseconds", LatencyBuckets)

	m.repositoryErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "repository_errors_total",
		Help:        "Repository failures by operation",
		ConstLabels: m.constLabels,
	}, []string{"operation"})
	m.repositoryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "repository_latency_milliseconds",
		Help:        "Repository call latency in milliseconds",
		Buckets:     LatencyBuckets,
		ConstLabels: m.constLabels,
	}, []string{"operation"})
	m.remoteRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "remote_requests_total",
		Help:        "Requests to the remote API by operation and status",
		ConstLabels: m.constLabels,
	}, []string{"operation", "status"})
	m.retries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "retries_total",
		Help:        "Retried attempts by operation",
		ConstLabels: m.constLabels,
	}, []string{"operation"})

	m.queueSize = m.gauge("queue_size", "Players waiting in the in-memory feed")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the in-memory feed")
	m.inFlight = m.gauge("players_in_flight", "Players currently being processed")
	m.workerCount = m.gauge("worker_count", "Number of running workers")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     LatencyBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordActivation observes a report activation score.
func (m *Manager) RecordActivation(activation int) {
	m.playerReportActivation.Observe(float64(activation))
}

// RecordQueueWait observes the seconds a player waited before processing.
func (m *Manager) RecordQueueWait(seconds float64) {
	m.queueWait.Observe(seconds)
}

// RecordProcessing observes the seconds spent processing a player.
func (m *Manager) RecordProcessing(seconds float64) {
	m.processing.Observe(seconds)
}

// UpdateInFlight sets the number of players being processed.
func (m *Manager) UpdateInFlight(n int) {
	m.inFlight.Set(float64(n))
}

// RecordActivation observes a report activation score on the global manager.
func RecordActivation(activation int) {
	globalManager.RecordActivation(activation)
}

// RecordReportPublished increments the published reports counter.
func RecordReportPublished() {
	globalManager.reportsPublished.Inc()
}

// RecordPublishError increments the publish failure counter.
func RecordPublishError() {
	globalManager.publishErrors.Inc()
}

// RecordBuildError increments the report build failure counter.
func RecordBuildError() {
	globalManager.buildErrors.Inc()
}

// RecordIteration counts a finished worker iteration by outcome.
func RecordIteration(outcome string) {
	globalManager.iterations.WithLabelValues(outcome).Inc()
}

// RecordGamesAdmitted adds admitted games.
func RecordGamesAdmitted(n int) {
	globalManager.gamesAdmitted.Add(float64(n))
}

// RecordGamesRejected adds rejected games.
func RecordGamesRejected(n int) {
	globalManager.gamesRejected.Add(float64(n))
}

// RecordAnalysisProduced increments the produced analyses counter.
func RecordAnalysisProduced() {
	globalManager.analysesProduced.Inc()
}

// RecordScoringError increments the scoring errors counter.
func RecordScoringError() {
	globalManager.scoringErrors.Inc()
}

// RecordScoringLatency records engine latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordRepositoryError counts a failed repository operation.
func RecordRepositoryError(operation string) {
	globalManager.repositoryErrors.WithLabelValues(operation).Inc()
}

// RecordRepositoryLatency records repository latency in milliseconds.
func RecordRepositoryLatency(operation string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordRemoteRequest counts a request to the remote API.
func RecordRemoteRequest(operation, status string) {
	globalManager.remoteRequests.WithLabelValues(operation, status).Inc()
}

// RecordRetry counts a retried attempt.
func RecordRetry(operation string) {
	globalManager.retries.WithLabelValues(operation).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
