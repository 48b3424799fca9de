package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollector_RecordsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(registry)

	c.RecordHTTPRequest(http.MethodGet, http.StatusOK, 15*time.Millisecond)
	c.RecordHTTPRequest(http.MethodPost, http.StatusCreated, 40*time.Millisecond)
	c.RecordLogin()
	c.RecordUploadRequested()
	c.RecordUploadConfirmed()

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := map[string]bool{}
	for _, fam := range families {
		found[fam.GetName()] = true
	}

	for _, name := range []string{
		"coursebox_http_requests_total",
		"coursebox_http_request_duration_seconds",
		"coursebox_logins_total",
		"coursebox_uploads_requested_total",
		"coursebox_uploads_confirmed_total",
	} {
		if !found[name] {
			t.Errorf("metric %s not found", name)
		}
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(registry)
	c.RecordLogin()

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "coursebox_logins_total 1") {
		t.Errorf("expected login counter in output: %s", rec.Body.String())
	}
}

func TestMiddleware_RecordsStatus(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(registry)

	handler := Middleware(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	count := testutilCounterValue(t, registry, "coursebox_http_requests_total")
	if count != 1 {
		t.Errorf("expected 1 recorded request, got %v", count)
	}
}

// testutilCounterValue は指定メトリクスの全系列の合計値を返す。
func testutilCounterValue(t *testing.T, g prometheus.Gatherer, name string) float64 {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	var total float64
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
