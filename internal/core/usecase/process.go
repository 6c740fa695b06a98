package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/prototype-classifier/internal/core/domain"
	"github.com/kirillkom/prototype-classifier/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	repo       ports.DocumentRepository
	extractor  ports.TextExtractor
	classifier ports.TextClassifier
	options    domain.ClassifyOptions
	refresher  ports.CategoryRefresher

	// observeLag, when set, receives the time a document waited between
	// upload and the start of processing.
	observeLag func(time.Duration)
	now        func() time.Time
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	classifier ports.TextClassifier,
	options domain.ClassifyOptions,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:       repo,
		extractor:  extractor,
		classifier: classifier,
		options:    options,
		now:        time.Now,
	}
}

func (uc *ProcessDocumentUseCase) SetQueueLagObserver(fn func(time.Duration)) {
	uc.observeLag = fn
}

// SetCategoryRefresher makes every document pick up the newest stored
// category set before it is classified.
func (uc *ProcessDocumentUseCase) SetCategoryRefresher(r ports.CategoryRefresher) {
	uc.refresher = r
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	result, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.persistClassification(ctx, documentID, result); err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (*domain.ClassificationResult, error) {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	text, err := uc.extractText(ctx, doc)
	if err != nil {
		return nil, err
	}

	return uc.classify(ctx, text)
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	if uc.observeLag != nil && !doc.CreatedAt.IsZero() {
		uc.observeLag(uc.now().Sub(doc.CreatedAt))
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) extractText(ctx context.Context, doc *domain.Document) (string, error) {
	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.WrapError(domain.ErrEmptyInput, "extract text", errors.New("empty extracted text"))
	}
	return text, nil
}

func (uc *ProcessDocumentUseCase) classify(ctx context.Context, text string) (*domain.ClassificationResult, error) {
	if uc.refresher != nil {
		// A failed refresh keeps the current set; it is still a valid configuration.
		if _, err := uc.refresher.Refresh(ctx); err != nil {
			slog.Warn("categories_refresh_failed", "error", err)
		}
	}
	result, err := uc.classifier.Classify(ctx, domain.ClassifyRequest{Text: text, Options: uc.options})
	if err != nil {
		return nil, fmt.Errorf("classify document: %w", err)
	}
	return result, nil
}

func (uc *ProcessDocumentUseCase) persistClassification(ctx context.Context, documentID string, result *domain.ClassificationResult) error {
	if err := uc.repo.SaveClassification(ctx, documentID, *result); err != nil {
		return fmt.Errorf("save classification: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
