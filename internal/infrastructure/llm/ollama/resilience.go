package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/prototype-classifier/internal/core/domain"
	"github.com/kirillkom/prototype-classifier/internal/infrastructure/resilience"
)

// HTTPStatusError is a non-2xx answer from the Ollama server with its body.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, body)
}

var (
	retryEmbed   = resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	abandonEmbed = resilience.ErrorClassification{}
	failEmbed    = resilience.ErrorClassification{RecordFailure: true}
)

// classifyEmbedError decides whether an embed call is retried and whether it
// counts against the embedder breaker. Client errors such as an unknown model
// are neither: retrying cannot fix them and the server itself is healthy.
func classifyEmbedError(err error) resilience.ErrorClassification {
	var (
		statusErr *HTTPStatusError
		netErr    net.Error
	)
	switch {
	case err == nil:
		return abandonEmbed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return abandonEmbed
	case resilience.IsCircuitOpen(err):
		return retryEmbed
	case errors.As(err, &statusErr):
		if retryableStatus(statusErr.StatusCode) {
			return retryEmbed
		}
		return abandonEmbed
	case errors.As(err, &netErr):
		return retryEmbed
	default:
		return failEmbed
	}
}

// embedFailure marks failures a later attempt may get past as temporary.
func embedFailure(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyEmbedError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "ollama embed", err)
	}
	return err
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	default:
		return code >= http.StatusInternalServerError && code != http.StatusNotImplemented
	}
}
