package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/exam-hall-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP, cache and exam engine events.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheLookups    *prometheus.CounterVec

	examsScheduled *prometheus.CounterVec
	hallConflicts  prometheus.Counter
	ticketsIssued  *prometheus.CounterVec
	decisions      *prometheus.CounterVec
	seatsAllocated prometheus.Counter
	unseated       prometheus.Counter
	notifications  *prometheus.CounterVec
}

// NewMetricsService registers collectors on a private registry.
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
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	examsScheduled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exam_schedule_writes_total",
		Help: "Exams created or updated after passing conflict detection",
	}, []string{"operation"})

	hallConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exam_hall_conflicts_total",
		Help: "Schedule requests rejected because the hall slot was taken",
	})

	ticketsIssued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hall_tickets_issued_total",
		Help: "Hall tickets issued by resulting approval status",
	}, []string{"approval_status"})

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hall_ticket_decisions_total",
		Help: "Reviewer decisions on hall tickets",
	}, []string{"approval_status"})

	seatsAllocated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seating_seats_allocated_total",
		Help: "Seats assigned across allocation runs",
	})

	unseated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seating_unseated_tickets_total",
		Help: "Issued tickets left without a seat because the hall was full",
	})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Student notifications by delivery outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups,
		examsScheduled, hallConflicts, ticketsIssued, decisions, seatsAllocated, unseated, notifications, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheLookups:    cacheLookups,
		examsScheduled:  examsScheduled,
		hallConflicts:   hallConflicts,
		ticketsIssued:   ticketsIssued,
		decisions:       decisions,
		seatsAllocated:  seatsAllocated,
		unseated:        unseated,
		notifications:   notifications,
	}
}

// Registry exposes the underlying registry for tests.
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

// RecordCacheOperation records a cache lookup and its latency.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordExamScheduled counts a persisted create or update.
func (m *MetricsService) RecordExamScheduled(operation string) {
	if m == nil {
		return
	}
	m.examsScheduled.WithLabelValues(operation).Inc()
}

// RecordHallConflict counts a rejected schedule request.
func (m *MetricsService) RecordHallConflict() {
	if m == nil {
		return
	}
	m.hallConflicts.Inc()
}

// RecordTicketIssued counts an issuance by the resulting approval status.
func (m *MetricsService) RecordTicketIssued(status models.ApprovalStatus) {
	if m == nil {
		return
	}
	m.ticketsIssued.WithLabelValues(string(status)).Inc()
}

// RecordTicketDecision counts a reviewer decision.
func (m *MetricsService) RecordTicketDecision(status models.ApprovalStatus) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(status)).Inc()
}

// RecordAllocation counts seated and unseated tickets of one run.
func (m *MetricsService) RecordAllocation(seated, unseated int) {
	if m == nil {
		return
	}
	m.seatsAllocated.Add(float64(seated))
	m.unseated.Add(float64(unseated))
}

// RecordNotification counts a notification outcome: enqueued, dropped, delivered or failed.
func (m *MetricsService) RecordNotification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}
