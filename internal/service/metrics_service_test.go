package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-hall-api/internal/models"
)

func TestMetricsServiceDomainCounters(t *testing.T) {
	m := NewMetricsService()
	m.RecordHallConflict()
	m.RecordHallConflict()
	m.RecordTicketIssued(models.ApprovalApproved)
	m.RecordTicketIssued(models.ApprovalPending)
	m.RecordAllocation(30, 5)
	m.RecordNotification("delivered")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.hallConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticketsIssued.WithLabelValues("approved")))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.seatsAllocated))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.unseated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("delivered")))
}

func TestMetricsServiceHandlerExposesHTTPMetrics(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/exams", http.StatusOK, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `http_requests_total{method="GET",path="/api/v1/exams",status="200"} 1`))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.RecordHallConflict()
		m.RecordAllocation(1, 1)
		m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
