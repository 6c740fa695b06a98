package ports

import (
	"context"
	"io"
	"iter"
	"time"

	"github.com/kirillkom/prototype-classifier/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveClassification(ctx context.Context, id string, result domain.ClassificationResult) error
}

// CategoryStore keeps every accepted category set version.
type CategoryStore interface {
	SaveCategorySet(ctx context.Context, active domain.ActiveCategories) error
	LatestCategorySet(ctx context.Context) (*domain.ActiveCategories, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes document classification jobs.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Embedder builds vectors for chunks and prototype descriptions.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits text into sentence-respecting chunks.
type Chunker interface {
	Split(text string, maxChunkSize, minChunkSize int) []string
	Chunks(text string, maxChunkSize, minChunkSize int) iter.Seq[string]
}

// ClassificationObserver receives classification and reconfiguration outcomes.
type ClassificationObserver interface {
	ObserveClassification(result *domain.ClassificationResult, duration time.Duration, err error)
	ObserveReconfiguration(err error)
}
