package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// Validation outcome labels.
const (
	OutcomeClean     = "clean"
	OutcomeConflicts = "conflicts"
	OutcomeError     = "error"
)

// Span outcome labels.
const (
	SpanCommitted      = "committed"
	SpanRejected       = "rejected"
	SpanRolledBack     = "rolled_back"
	SpanPartialFailure = "partial_failure"
	// Cleanup outcomes of orphaned members left by a partial failure.
	SpanCleanedUp        = "cleaned_up"
	SpanCleanupAbandoned = "cleanup_abandoned"
)

// MetricsService encapsulates Prometheus instrumentation for the scheduling engine.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	validations        *prometheus.CounterVec
	validationDuration *prometheus.HistogramVec
	conflicts          *prometheus.CounterVec
	spans              *prometheus.CounterVec
	availabilityRuns   prometheus.Histogram
	cacheLatency       prometheus.Observer
	cacheWrite         prometheus.Observer
	cacheHitRatio      prometheus.Gauge
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	validations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_validations_total",
		Help: "Validation runs by operation and outcome",
	}, []string{"operation", "outcome"})

	validationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduling_validation_duration_seconds",
		Help:    "Duration of validation runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_conflicts_total",
		Help: "Conflict records reported, by type",
	}, []string{"type"})

	spans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_span_commits_total",
		Help: "Span commit attempts by outcome",
	}, []string{"outcome"})

	availabilityRuns := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduling_availability_duration_seconds",
		Help:    "Duration of common free slot searches",
		Buckets: prometheus.DefBuckets,
	})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, validations, validationDuration, conflicts, spans,
		availabilityRuns, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		validations:        validations,
		validationDuration: validationDuration,
		conflicts:          conflicts,
		spans:              spans,
		availabilityRuns:   availabilityRuns,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveValidation records one validator run and the conflict types it produced.
func (m *MetricsService) ObserveValidation(operation string, report *models.ConflictReport, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeClean
	switch {
	case err != nil:
		outcome = OutcomeError
	case report != nil && report.HasConflicts:
		outcome = OutcomeConflicts
	}
	m.validations.WithLabelValues(operation, outcome).Inc()
	m.validationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	for conflictType, count := range report.CountByType() {
		m.conflicts.WithLabelValues(string(conflictType)).Add(float64(count))
	}
}

// ObserveSpan records the outcome of a span commit.
func (m *MetricsService) ObserveSpan(outcome string) {
	if m == nil {
		return
	}
	m.spans.WithLabelValues(outcome).Inc()
}

// ObserveAvailability records the duration of a free slot search.
func (m *MetricsService) ObserveAvailability(duration time.Duration) {
	if m == nil {
		return
	}
	m.availabilityRuns.Observe(duration.Seconds())
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}
