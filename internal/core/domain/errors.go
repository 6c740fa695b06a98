package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration     = errors.New("configuration error")
	ErrEmptyInput        = errors.New("empty input")
	ErrEmbedder          = errors.New("embedder failure")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrTimeout           = errors.New("timeout")

	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTemporary        = errors.New("temporary failure")

	// ErrVersionConflict means another writer already stored that category
	// set version. It is temporary: reloading and retrying resolves it.
	ErrVersionConflict = fmt.Errorf("category set version conflict: %w", ErrTemporary)
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindName returns a stable identifier for the first matching error kind.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case IsKind(err, ErrConfiguration):
		return "configuration"
	case IsKind(err, ErrEmptyInput):
		return "empty_input"
	case IsKind(err, ErrTimeout):
		return "timeout"
	case IsKind(err, ErrEmbedder):
		return "embedder"
	case IsKind(err, ErrInvalidTransition):
		return "invalid_transition"
	case IsKind(err, ErrDocumentNotFound):
		return "not_found"
	case IsKind(err, ErrInvalidInput):
		return "invalid_input"
	case IsKind(err, ErrUnauthorized):
		return "unauthorized"
	case IsKind(err, ErrTemporary):
		return "temporary"
	default:
		return "internal"
	}
}

// EmbedderTarget names what was being embedded when the embedder failed.
type EmbedderTarget string

const (
	EmbedTargetChunk     EmbedderTarget = "chunk"
	EmbedTargetPrototype EmbedderTarget = "prototype"
)

// EmbedderError carries the failing chunk or prototype position.
// Index is zero-based for chunks and one-based for prototypes, matching how
// each is addressed in requests.
type EmbedderError struct {
	Target EmbedderTarget
	Index  int
	Err    error
}

func (e *EmbedderError) Error() string {
	return fmt.Sprintf("embed %s %d: %v", e.Target, e.Index, e.Err)
}

func (e *EmbedderError) Unwrap() []error {
	return []error{ErrEmbedder, e.Err}
}

// TransitionError describes a rejected propagation step.
type TransitionError struct {
	Step   int
	From   PropagationState
	Input  int
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("step %d from (%+d, e%d) with input %d: %s", e.Step, e.From.Sign, e.From.Symbol, e.Input, e.Reason)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
