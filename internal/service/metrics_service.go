package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic,
// ledger operations and the report cache. A nil *MetricsService is a no-op.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	ledgerOps       *prometheus.CounterVec
	ledgerConflicts *prometheus.CounterVec
	ledgerAmount    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheWrite      prometheus.Observer
	cacheEvictions  prometheus.Counter
	reportWarms     *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "group", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests by API resource group and caller role",
	}, []string{"method", "group", "path", "role", "status"})

	ledgerOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Ledger operations by outcome",
	}, []string{"operation", "outcome"})

	ledgerConflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_conflicts_total",
		Help: "Store conflicts that caused a ledger transaction to be retried",
	}, []string{"operation"})

	ledgerAmount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_recorded_amount_total",
		Help: "Sum of recorded payment amounts by kind",
	}, []string{"kind"})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_cache_lookups_total",
		Help: "Report cache lookups by result",
	}, []string{"result"})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "report_cache_write_seconds",
		Help:    "Latency for report cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheEvictions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "report_cache_evictions_total",
		Help: "Report cache entries removed by invalidation",
	})

	reportWarms := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_warm_runs_total",
		Help: "Scheduled report warm-up runs by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, ledgerOps, ledgerConflicts, ledgerAmount, cacheLookups, cacheWrite, cacheEvictions, reportWarms, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		ledgerOps:       ledgerOps,
		ledgerConflicts: ledgerConflicts,
		ledgerAmount:    ledgerAmount,
		cacheLookups:    cacheLookups,
		cacheWrite:      cacheWrite,
		cacheEvictions:  cacheEvictions,
		reportWarms:     reportWarms,
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

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// HTTPObservation describes one served request. Group is the API resource
// ("enrollments", "payments", ...) and Role the caller's active role.
type HTTPObservation struct {
	Method   string
	Group    string
	Path     string
	Role     string
	Status   int
	Duration time.Duration
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(obs HTTPObservation) {
	if m == nil {
		return
	}
	status := strconv.Itoa(obs.Status)
	m.requestDuration.WithLabelValues(obs.Method, obs.Group, obs.Path, status).Observe(obs.Duration.Seconds())
	m.requestTotal.WithLabelValues(obs.Method, obs.Group, obs.Path, obs.Role, status).Inc()
}

// RecordReportWarm counts one scheduled warm-up run.
func (m *MetricsService) RecordReportWarm(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.reportWarms.WithLabelValues(outcome).Inc()
}

// RecordLedgerOperation counts a finished ledger operation.
func (m *MetricsService) RecordLedgerOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.ledgerOps.WithLabelValues(operation, outcome).Inc()
}

// RecordLedgerConflict counts one retried store conflict.
func (m *MetricsService) RecordLedgerConflict(operation string) {
	if m == nil {
		return
	}
	m.ledgerConflicts.WithLabelValues(operation).Inc()
}

// RecordPaymentAmount adds a recorded payment to the running totals.
func (m *MetricsService) RecordPaymentAmount(kind string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	f, _ := amount.Float64()
	if f > 0 {
		m.ledgerAmount.WithLabelValues(kind).Add(f)
	}
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordCacheEvictions counts entries removed by invalidation.
func (m *MetricsService) RecordCacheEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cacheEvictions.Add(float64(n))
}
