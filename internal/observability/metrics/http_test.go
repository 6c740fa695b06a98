package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/prototype-classifier/internal/core/domain"
)

func TestNormalizePathCollapsesDocumentIDs(t *testing.T) {
	tests := map[string]string{
		"/v1/documents/0b8f5d4e":     "/v1/documents/{document_id}",
		"/v1/documents":              "/v1/documents",
		"/v1/documents/":             "other",
		"/v1/documents/a/b":          "other",
		"/v1/classify":               "/v1/classify",
		"/wp-admin/setup-config.php": "other",
	}
	for in, want := range tests {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHTTPMiddlewareRecordsStatus(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	for _, id := range []string{"a", "b"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/documents/"+id, nil))
	}

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/v1/documents/{document_id}", "404"))
	if got != 2 {
		t.Fatalf("request count = %v, want 2", got)
	}
	if inFlight := testutil.ToFloat64(m.requestInFlight); inFlight != 0 {
		t.Fatalf("in-flight gauge = %v after completion", inFlight)
	}
}

func TestWorkerMetricsTracksDocuments(t *testing.T) {
	m := NewWorkerMetrics("worker")

	m.StartDocument()
	if got := testutil.ToFloat64(m.processInFlight); got != 1 {
		t.Fatalf("in-flight = %v, want 1", got)
	}
	m.FinishDocument(20*time.Millisecond, domain.WrapError(domain.ErrEmptyInput, "extract text", errors.New("blank")))
	m.ObserveQueueLag(-time.Second)
	m.ObserveQueueLag(2 * time.Second)

	if got := testutil.ToFloat64(m.processInFlight); got != 0 {
		t.Fatalf("in-flight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.processTotal.WithLabelValues("worker", "empty_input")); got != 1 {
		t.Fatalf("empty_input count = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.queueLag); got != 1 {
		t.Fatalf("queue lag series = %d, want 1", got)
	}
}
