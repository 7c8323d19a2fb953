package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest("POST /submit_form", 200, 5*time.Millisecond)
	m.ObserveRequest("", 404, time.Millisecond)
	m.ObserveMatch("matched")
	m.ObserveMatch("fallback")
	m.ObserveMatch("fallback")
	m.ObserveAppend(nil)
	m.ObserveAppend(errors.New("disk full"))
	m.ObserveReload(nil)
	m.SetRecords(1338)

	if got := testutil.ToFloat64(m.matches.WithLabelValues("fallback")); got != 2 {
		t.Errorf("fallback matches = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.appends.WithLabelValues("error")); got != 1 {
		t.Errorf("failed appends = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.records); got != 1338 {
		t.Errorf("records = %v, want 1338", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("unmatched", "404")); got != 1 {
		t.Errorf("unmatched requests = %v, want 1", got)
	}

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	for _, want := range []string{"insurdash_records 1338", `insurdash_match_total{kind="matched"} 1`, "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("x", 200, time.Second)
	m.ObserveMatch("matched")
	m.ObserveAppend(nil)
	m.ObserveReload(nil)
	m.SetRecords(1)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
