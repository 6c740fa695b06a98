package httpadapter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kirillkom/prototype-classifier/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrConfiguration):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrEmptyInput):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrEmbedder):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrInvalidTransition):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	// Chunk or prototype position for embedder failures, failing step for transitions.
	Target string `json:"target,omitempty"`
	Index  *int   `json:"index,omitempty"`
	Step   *int   `json:"step,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	resp := errorResponse{Error: err.Error(), Kind: domain.KindName(err)}

	var embedErr *domain.EmbedderError
	if errors.As(err, &embedErr) {
		resp.Target = string(embedErr.Target)
		resp.Index = &embedErr.Index
	}
	var transitionErr *domain.TransitionError
	if errors.As(err, &transitionErr) {
		resp.Step = &transitionErr.Step
	}

	if status >= http.StatusInternalServerError {
		slog.Error("http_request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"kind", resp.Kind,
			"error", err,
		)
	}
	writeJSON(w, status, resp)
}
