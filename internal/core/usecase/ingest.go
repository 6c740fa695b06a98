package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/prototype-classifier/internal/core/domain"
	"github.com/kirillkom/prototype-classifier/internal/core/ports"
)

const defaultMimeType = "application/octet-stream"

// mimeByExtension covers the formats the worker can extract text from.
var mimeByExtension = map[string]string{
	".txt":  "text/plain",
	".text": "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".pdf":  "application/pdf",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xlsm": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// IngestDocumentUseCase stores an uploaded document and queues it for
// asynchronous classification.
type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue

	newID func() string
	now   func() time.Time
}

func NewIngestDocumentUseCase(repo ports.DocumentRepository, storage ports.ObjectStorage, queue ports.MessageQueue) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

// Upload persists the body and its metadata, then queues a classification
// job. A document whose job cannot be queued is marked failed so it never
// lingers as uploaded.
func (uc *IngestDocumentUseCase) Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	name := strings.TrimSpace(filename)
	if name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("filename is required"))
	}

	now := uc.now().UTC()
	doc := &domain.Document{
		ID:        uc.newID(),
		Filename:  name,
		MimeType:  resolveMimeType(mimeType, name),
		Status:    domain.StatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	doc.StoragePath = doc.ID + "_" + sanitizeFilename(name)

	if err := uc.storage.Save(ctx, doc.StoragePath, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		err = fmt.Errorf("publish classification job: %w", err)
		if failErr := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusFailed, err.Error()); failErr != nil {
			return nil, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return nil, err
	}
	return doc, nil
}

// resolveMimeType keeps a client-supplied type unless it is absent or the
// generic octet-stream, in which case the extension decides.
func resolveMimeType(mimeType, filename string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType != "" && mimeType != defaultMimeType {
		return mimeType
	}
	if byExt, ok := mimeByExtension[strings.ToLower(filepath.Ext(filename))]; ok {
		return byExt
	}
	return defaultMimeType
}

func sanitizeFilename(name string) string {
	base := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, filepath.Base(name))
	if strings.Trim(base, "._") == "" {
		return "document.bin"
	}
	return base
}
