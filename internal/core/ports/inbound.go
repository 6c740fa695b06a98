package ports

import (
	"context"
	"io"

	"github.com/kirillkom/prototype-classifier/internal/core/domain"
)

// TextClassifier is the inbound contract for classifying raw text.
type TextClassifier interface {
	Classify(ctx context.Context, req domain.ClassifyRequest) (*domain.ClassificationResult, error)
}

// CategoryConfigurator replaces and reads the active category set.
type CategoryConfigurator interface {
	Configure(ctx context.Context, cfg domain.CategoryConfig) (*domain.ActiveCategories, error)
	Categories() domain.ActiveCategories
}

// CategoryRefresher picks up a category set another process stored after
// this one last activated.
type CategoryRefresher interface {
	Refresh(ctx context.Context) (bool, error)
}

// Propagator runs chains through the fixed propagation table.
type Propagator interface {
	Propagate(ctx context.Context, req domain.PropagationRequest) (*domain.Propagation, error)
	Table() domain.PropagationTable
}

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document state and classification.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document classification.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
