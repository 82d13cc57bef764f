package observability

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return NewMetrics(prometheus.NewRegistry())
}

func TestRecordPageOperation(t *testing.T) {
	metrics := newTestMetrics(t)

	metrics.RecordPageOperation("create", nil)
	metrics.RecordPageOperation("create", nil)
	metrics.RecordPageOperation("create", errors.New("boom"))

	ok := testutil.ToFloat64(metrics.PageOperationsTotal.WithLabelValues("create", "ok"))
	if ok != 2 {
		t.Errorf("Expected 2 ok operations, got %v", ok)
	}
	failed := testutil.ToFloat64(metrics.PageOperationsTotal.WithLabelValues("create", "error"))
	if failed != 1 {
		t.Errorf("Expected 1 failed operation, got %v", failed)
	}
}

func TestUpdateDBStats(t *testing.T) {
	metrics := newTestMetrics(t)

	metrics.UpdateDBStats(sql.DBStats{InUse: 3, Idle: 2, WaitCount: 7})

	if got := testutil.ToFloat64(metrics.DBConnectionsActive); got != 3 {
		t.Errorf("Expected 3 active connections, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.DBConnectionsIdle); got != 2 {
		t.Errorf("Expected 2 idle connections, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.DBConnectionsWaitCount); got != 7 {
		t.Errorf("Expected wait count 7, got %v", got)
	}
}

func TestHTTPMiddleware(t *testing.T) {
	metrics := newTestMetrics(t)

	handler := metrics.HTTPMiddleware(func(r *http.Request) string {
		return "/api/v1/pages/{id}"
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest("GET", "/api/v1/pages/12345", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// The template, not the raw path, is the label.
	count := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/pages/{id}", "404"))
	if count != 1 {
		t.Errorf("Expected 1 request counted, got %v", count)
	}
}

func TestMetricsHandler(t *testing.T) {
	metrics := newTestMetrics(t)
	metrics.PageViewsTotal.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /metrics, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "intranet_page_views_total") {
		t.Error("Expected intranet_page_views_total in scrape output")
	}
}
