package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kirillkom/prototype-classifier/internal/config"
	"github.com/kirillkom/prototype-classifier/internal/core/domain"
	"github.com/kirillkom/prototype-classifier/internal/core/ports"
	"github.com/kirillkom/prototype-classifier/internal/observability/metrics"
)

const (
	maxJSONBodyBytes = 16 << 20
	serviceName      = "api"
)

type Router struct {
	cfg          config.Config
	classifier   ports.TextClassifier
	configurator ports.CategoryConfigurator
	propagator   ports.Propagator
	ingestor     ports.DocumentIngestor
	documents    ports.DocumentReader
	metrics      *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	classifier ports.TextClassifier,
	configurator ports.CategoryConfigurator,
	propagator ports.Propagator,
	ingestor ports.DocumentIngestor,
	documents ports.DocumentReader,
) *Router {
	return &Router{
		cfg:          cfg,
		classifier:   classifier,
		configurator: configurator,
		propagator:   propagator,
		ingestor:     ingestor,
		documents:    documents,
	}
}

// WithMetrics exposes /metrics and records request metrics.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

// Handler builds the mux and the middleware chain. It fails only when the
// embedded OpenAPI document is invalid.
func (rt *Router) Handler() (http.Handler, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPI)
	mux.HandleFunc("POST /v1/classify", rt.classify)
	mux.HandleFunc("GET /v1/categories", rt.getCategories)
	mux.HandleFunc("PUT /v1/categories", rt.configureCategories)
	mux.HandleFunc("POST /v1/propagate", rt.propagate)
	mux.HandleFunc("GET /v1/propagation/table", rt.propagationTable)
	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocumentByID)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = validator.middleware(handler)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = apiKeyMiddleware(handler, rt.cfg.APIKey)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler, nil
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}

func (rt *Router) classify(w http.ResponseWriter, r *http.Request) {
	var req domain.ClassifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := rt.classifier.Classify(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.configurator.Categories())
}

func (rt *Router) configureCategories(w http.ResponseWriter, r *http.Request) {
	var req domain.CategoryConfig
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	active, err := rt.configurator.Configure(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, active)
}

func (rt *Router) propagate(w http.ResponseWriter, r *http.Request) {
	var req domain.PropagationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := rt.propagator.Propagate(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type tableResponse struct {
	// Entries[i][j] is T[i+1][j+1].
	Entries domain.PropagationTable `json:"entries"`
}

func (rt *Router) propagationTable(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, tableResponse{Entries: rt.propagator.Table()})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.APIMaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.APIMaxUploadBytes)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("multipart field 'file' is required")))
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "get document", errors.New("document id is required")))
		return
	}

	doc, err := rt.documents.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request", fmt.Errorf("invalid json: %w", err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
