package httpadapter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/prototype-classifier/internal/config"
	"github.com/kirillkom/prototype-classifier/internal/core/domain"
	"github.com/kirillkom/prototype-classifier/internal/core/usecase"
	"github.com/kirillkom/prototype-classifier/internal/observability/metrics"
)

func TestClassifyReturnsResultAndForwardsOptions(t *testing.T) {
	classifier := &classifierFake{result: &domain.ClassificationResult{
		DominantIndex: 3,
		DominantLabel: "Philosophical",
		Confidence:    0.8,
		CoherenceFlag: 1,
		CoveringCount: 64,
	}}
	handler := newTestHandler(t, config.Config{}, testDeps{classifier: classifier})

	res := doJSON(t, handler, http.MethodPost, "/v1/classify", map[string]any{
		"text":    "What is consciousness?",
		"options": map[string]any{"maxChunkSize": 256, "minChunkSize": 20},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var got domain.ClassificationResult
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.DominantIndex != 3 || got.CoveringCount != 64 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if classifier.req.Text != "What is consciousness?" || classifier.req.Options.MaxChunkSize != 256 || classifier.req.Options.MinChunkSize != 20 {
		t.Fatalf("unexpected forwarded request: %+v", classifier.req)
	}
}

func TestClassifyRejectsUnknownFields(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, testDeps{})

	res := doJSON(t, handler, http.MethodPost, "/v1/classify", map[string]any{"text": "hi", "mode": "fast"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestConfigureCategoriesRoundTrip(t *testing.T) {
	configurator := &configuratorFake{active: domain.ActiveCategories{Version: 1, Categories: domain.DefaultCategorySet()}}
	handler := newTestHandler(t, config.Config{}, testDeps{configurator: configurator})

	labels := []string{"A", "B", "C", "D", "E", "F", "G"}
	prototypes := []string{"a", "b", "c", "d", "e", "f", "g"}
	res := doJSON(t, handler, http.MethodPut, "/v1/categories", map[string]any{"labels": labels, "prototypeDescriptions": prototypes})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	res = doJSON(t, handler, http.MethodGet, "/v1/categories", nil)
	var active domain.ActiveCategories
	if err := json.NewDecoder(res.Body).Decode(&active); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if active.Version != 2 || active.Categories.Label(7) != "G" {
		t.Fatalf("unexpected active categories: %+v", active)
	}
}

func TestConfigureCategoriesWithSixLabelsKeepsPrevious(t *testing.T) {
	configurator := &configuratorFake{active: domain.ActiveCategories{Version: 1, Categories: domain.DefaultCategorySet()}}
	handler := newTestHandler(t, config.Config{}, testDeps{configurator: configurator})

	res := doJSON(t, handler, http.MethodPut, "/v1/categories", map[string]any{
		"labels":                []string{"A", "B", "C", "D", "E", "F"},
		"prototypeDescriptions": []string{"a", "b", "c", "d", "e", "f"},
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if resp := decodeErrorResponse(t, res); resp.Kind != "configuration" {
		t.Fatalf("expected configuration kind, got %+v", resp)
	}
	if configurator.active.Version != 1 || configurator.active.Categories != domain.DefaultCategorySet() {
		t.Fatalf("previous configuration must remain active: %+v", configurator.active)
	}
}

func TestPropagateReturnsTrace(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, testDeps{})

	res := doJSON(t, handler, http.MethodPost, "/v1/propagate", map[string]any{"startSymbol": 1, "chain": []int{2, 4}})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var got domain.Propagation
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.FinalSign != 1 || got.FinalSymbol != 7 || len(got.Trace) != 3 {
		t.Fatalf("unexpected propagation: %+v", got)
	}
}

func TestPropagationTableEndpoint(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, testDeps{})

	res := doJSON(t, handler, http.MethodGet, "/v1/propagation/table", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var got tableResponse
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Entries != domain.DefaultPropagationTable() {
		t.Fatalf("unexpected table: %+v", got.Entries)
	}
}

func TestOpenAPIDocumentIsServed(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, testDeps{})

	res := doJSON(t, handler, http.MethodGet, "/openapi.yaml", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "/v1/classify:") {
		t.Fatalf("expected classify path in document")
	}
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	propagator, err := usecase.NewPropagateUseCase(domain.DefaultPropagationTable())
	if err != nil {
		t.Fatalf("NewPropagateUseCase() error = %v", err)
	}
	m := metrics.NewHTTPServerMetrics("api")
	handler, err := NewRouter(config.Config{}, &classifierFake{}, &configuratorFake{}, propagator, ingestSuccessFake{}, docsErrFake{}).
		WithMetrics(m).
		Handler()
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `pcls_http_requests_total{method="GET",path="/healthz",service="api",status="200"} 1`) {
		t.Fatalf("expected healthz request counter, got:\n%s", res.Body.String())
	}
}
