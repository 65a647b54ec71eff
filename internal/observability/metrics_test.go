package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/health", "200", time.Millisecond)
	m.IncEmbedding("ok")
	m.ObserveIngest("ok", 3)
	m.ObserveRetrieval("ok", 2, time.Millisecond)
	m.IncSaga("document_delete", "succeeded")
	m.IncLock("acquired")
	m.TrackInflight()()
}

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.IncSaga("document_delete", "compensated")
	m.ObserveIngest("ok", 4)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	if !strings.Contains(out, `secondbrain_saga_runs_total{kind="document_delete",status="compensated"} 1`) {
		t.Fatalf("saga counter missing from output:\n%s", out)
	}
	if !strings.Contains(out, "secondbrain_ingested_chunks_total 4") {
		t.Fatalf("chunk counter missing from output:\n%s", out)
	}
}

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" a=1, b = two ,bad, =x")
	if len(got) != 2 || got["a"] != "1" || got["b"] != "two" {
		t.Fatalf("ParseHeaders: got=%v", got)
	}
	if ParseHeaders("") != nil {
		t.Fatalf("ParseHeaders(empty): want nil")
	}
}
