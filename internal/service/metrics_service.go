package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/elective-seat-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	admissions      *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	releases        *prometheus.CounterVec
	promotions      prometheus.Counter
	sweepOutcomes   *prometheus.CounterVec
	notifyFailures  *prometheus.CounterVec
	ledgerDuration  *prometheus.HistogramVec

	requestCount         uint64
	requestDurationTotal uint64
	cacheHitCount        uint64
	cacheMissCount       uint64
	admittedCount        uint64
	waitlistedCount      uint64
	rejectedCount        uint64
	promotedCount        uint64
	expiredCount         uint64
	notifyFailureCount   uint64
	ledgerTxCount        uint64
	ledgerTxDuration     uint64
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	admissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registration_admissions_total",
		Help: "Registration attempts that committed, by outcome",
	}, []string{"outcome"})

	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registration_rejections_total",
		Help: "Registration attempts refused before mutation, by error code",
	}, []string{"code"})

	releases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registration_releases_total",
		Help: "Registrations removed from the ledger, by prior status and cause",
	}, []string{"status", "cause"})

	promotions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "waitlist_promotions_total",
		Help: "Waitlisted registrations promoted to a pending offer",
	})

	sweepOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "offer_sweep_results_total",
		Help: "Per-registration outcomes of the expiry sweep",
	}, []string{"outcome"})

	notifyFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_failures_total",
		Help: "Notifications that could not be delivered",
	}, []string{"event"})

	ledgerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_transaction_duration_seconds",
		Help:    "Duration of course-locked ledger transactions",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHitRatio, admissions, rejections,
		releases, promotions, sweepOutcomes, notifyFailures, ledgerDuration, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHitRatio:   cacheHitRatio,
		admissions:      admissions,
		rejections:      rejections,
		releases:        releases,
		promotions:      promotions,
		sweepOutcomes:   sweepOutcomes,
		notifyFailures:  notifyFailures,
		ledgerDuration:  ledgerDuration,
	}
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// RecordAdmission counts a committed registration attempt.
func (m *MetricsService) RecordAdmission(outcome models.AdmissionOutcome) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(string(outcome)).Inc()
	if outcome == models.AdmissionAdmitted {
		atomic.AddUint64(&m.admittedCount, 1)
	} else {
		atomic.AddUint64(&m.waitlistedCount, 1)
	}
}

// RecordRejection counts a refused registration attempt by error code.
func (m *MetricsService) RecordRejection(code string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(code).Inc()
	atomic.AddUint64(&m.rejectedCount, 1)
}

// RecordRelease counts a registration leaving the ledger. A promotion, if any, is counted too.
func (m *MetricsService) RecordRelease(status models.RegistrationStatus, cause string, promoted bool) {
	if m == nil {
		return
	}
	m.releases.WithLabelValues(string(status), cause).Inc()
	if promoted {
		m.promotions.Inc()
		atomic.AddUint64(&m.promotedCount, 1)
	}
}

// RecordPromotions counts offers created outside a release, such as a capacity increase.
func (m *MetricsService) RecordPromotions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.promotions.Add(float64(n))
	atomic.AddUint64(&m.promotedCount, uint64(n))
}

// RecordSweepOutcome counts one result of the expiry sweep.
func (m *MetricsService) RecordSweepOutcome(outcome models.SweepOutcome) {
	if m == nil {
		return
	}
	m.sweepOutcomes.WithLabelValues(string(outcome)).Inc()
	if outcome == models.SweepExpiredPromoted || outcome == models.SweepExpiredSeatReturned {
		atomic.AddUint64(&m.expiredCount, 1)
	}
}

// RecordNotificationFailure counts an undeliverable notification.
func (m *MetricsService) RecordNotificationFailure(event models.EventType) {
	if m == nil {
		return
	}
	m.notifyFailures.WithLabelValues(string(event)).Inc()
	atomic.AddUint64(&m.notifyFailureCount, 1)
}

// ObserveLedgerTx records the duration of one course-locked transaction.
func (m *MetricsService) ObserveLedgerTx(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ledgerDuration.WithLabelValues(operation).Observe(duration.Seconds())
	atomic.AddUint64(&m.ledgerTxCount, 1)
	atomic.AddUint64(&m.ledgerTxDuration, uint64(duration.Nanoseconds()))
}

// Snapshot returns aggregated metrics for the admin summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	txCount := atomic.LoadUint64(&m.ledgerTxCount)
	txDuration := atomic.LoadUint64(&m.ledgerTxDuration)

	var cacheRatio float64
	if hits+misses > 0 {
		cacheRatio = float64(hits) / float64(hits+misses)
	}
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	var avgTxMs float64
	if txCount > 0 {
		avgTxMs = float64(txDuration) / float64(txCount) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHitRatio:            cacheRatio,
		Admissions:               atomic.LoadUint64(&m.admittedCount),
		Waitlisted:               atomic.LoadUint64(&m.waitlistedCount),
		Rejections:               atomic.LoadUint64(&m.rejectedCount),
		Promotions:               atomic.LoadUint64(&m.promotedCount),
		OffersExpired:            atomic.LoadUint64(&m.expiredCount),
		NotificationFailures:     atomic.LoadUint64(&m.notifyFailureCount),
		AverageLedgerTxMs:        avgTxMs,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
