package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// leave workflow.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	leaveSubmitted *prometheus.CounterVec
	leaveReviews   *prometheus.CounterVec
	accrualCredits prometheus.Counter
	annualResets   prometheus.Counter
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

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	leaveSubmitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leave_requests_submitted_total",
		Help: "Total leave requests submitted, by type",
	}, []string{"type"})

	leaveReviews := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leave_reviews_total",
		Help: "Total review decisions recorded, by stage and decision",
	}, []string{"stage", "decision"})

	accrualCredits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leave_reward_credits_total",
		Help: "Total reward days credited by the accrual sweep",
	})

	annualResets := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leave_annual_resets_total",
		Help: "Total annual balance resets applied",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses,
		leaveSubmitted, leaveReviews, accrualCredits, annualResets, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		leaveSubmitted:  leaveSubmitted,
		leaveReviews:    leaveReviews,
		accrualCredits:  accrualCredits,
		annualResets:    annualResets,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordLeaveSubmitted counts a submitted request.
func (m *MetricsService) RecordLeaveSubmitted(leaveType string) {
	if m == nil {
		return
	}
	m.leaveSubmitted.WithLabelValues(leaveType).Inc()
}

// RecordLeaveReview counts a recorded review decision.
func (m *MetricsService) RecordLeaveReview(stage, decision string) {
	if m == nil {
		return
	}
	m.leaveReviews.WithLabelValues(stage, decision).Inc()
}

// RecordRewardCredit counts reward days granted by the accrual sweep.
func (m *MetricsService) RecordRewardCredit(days int) {
	if m == nil {
		return
	}
	m.accrualCredits.Add(float64(days))
}

// RecordAnnualReset counts applied annual resets.
func (m *MetricsService) RecordAnnualReset() {
	if m == nil {
		return
	}
	m.annualResets.Inc()
}
