package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordInvocation(t *testing.T) {
	m := New()
	m.RecordInvocation("add", 10, true)
	m.RecordInvocation("add", 30, false)
	m.RecordNotification()

	if got := m.TotalInvocations.Load(); got != 2 {
		t.Fatalf("total = %d, want 2", got)
	}
	if got := m.MinLatencyMs.Load(); got != 10 {
		t.Fatalf("min = %d, want 10", got)
	}
	if got := m.MaxLatencyMs.Load(); got != 30 {
		t.Fatalf("max = %d, want 30", got)
	}

	stats := m.OperationStats()["add"].(map[string]interface{})
	if stats["successes"].(int64) != 1 || stats["failures"].(int64) != 1 {
		t.Fatalf("unexpected operation stats: %v", stats)
	}
	if stats["avg_ms"].(float64) != 20 {
		t.Fatalf("avg_ms = %v, want 20", stats["avg_ms"])
	}
}

func TestSnapshotEmpty(t *testing.T) {
	snap := New().Snapshot()
	latency := snap["latency_ms"].(map[string]interface{})
	if latency["min"].(int64) != 0 {
		t.Fatalf("min latency of empty metrics should be 0, got %v", latency["min"])
	}
}

func TestJSONHandler(t *testing.T) {
	m := New()
	m.RecordInvocation("add", 5, true)

	rec := httptest.NewRecorder()
	m.JSONHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["operations"].(map[string]any)["add"]; !ok {
		t.Fatalf("missing add operation in %v", body)
	}
}

func TestPrometheusNoopBeforeInit(t *testing.T) {
	promMetrics = nil
	RecordPrometheusInvocation("add", 1, true)
	IncInFlight()

	rec := httptest.NewRecorder()
	PrometheusHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestPrometheusCollectors(t *testing.T) {
	InitPrometheus("calc_test", nil)
	defer func() { promMetrics = nil }()

	RecordPrometheusInvocation("add", 12, true)
	RecordPrometheusInvocation("add", 12, false)
	RecordNotification("Added")
	RecordContinuationPanic()
	IncInFlight()
	IncInFlight()
	DecInFlight()

	if got := testutil.ToFloat64(promMetrics.invocationsTotal.WithLabelValues("add", "success")); got != 1 {
		t.Fatalf("success counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(promMetrics.invocationsInFlight); got != 1 {
		t.Fatalf("in-flight gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(promMetrics.continuationPanicsTotal); got != 1 {
		t.Fatalf("panic counter = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	PrometheusHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "calc_test_notifications_total") {
		t.Fatal("scrape output missing notifications counter")
	}
}
