package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/prototype-classifier/internal/core/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "classifier.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	return db
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(openTestDB(t))
	created := time.Date(2026, 10, 18, 8, 30, 0, 0, time.UTC)

	doc := &domain.Document{
		ID: "doc-1", Filename: "story.txt", MimeType: "text/plain", StoragePath: "doc-1_story.txt",
		Status: domain.StatusUploaded, CreatedAt: created, UpdatedAt: created,
	}
	if err := repo.Create(ctx, doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.UpdateStatus(ctx, "doc-1", domain.StatusProcessing, ""); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	result := domain.ClassificationResult{
		DominantIndex: 4,
		DominantLabel: "Narrative",
		Confidence:    0.81,
		Vector:        domain.ProbabilityVector{0.02, 0.03, 0.04, 0.81, 0.03, 0.04, 0.03},
	}
	if err := repo.SaveClassification(ctx, "doc-1", result); err != nil {
		t.Fatalf("SaveClassification() error = %v", err)
	}
	if err := repo.UpdateStatus(ctx, "doc-1", domain.StatusReady, ""); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != domain.StatusReady || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected document %+v", got)
	}
	if got.Classification == nil || got.Classification.Vector != result.Vector || got.Classification.DominantLabel != "Narrative" {
		t.Fatalf("classification not round-tripped: %+v", got.Classification)
	}
}

func TestDocumentNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(openTestDB(t))

	if _, err := repo.GetByID(ctx, "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("GetByID: expected ErrDocumentNotFound, got %v", err)
	}
	if err := repo.UpdateStatus(ctx, "missing", domain.StatusFailed, "x"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("UpdateStatus: expected ErrDocumentNotFound, got %v", err)
	}
	if err := repo.SaveClassification(ctx, "missing", domain.ClassificationResult{}); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("SaveClassification: expected ErrDocumentNotFound, got %v", err)
	}
}

func TestCategorySetVersions(t *testing.T) {
	ctx := context.Background()
	repo := NewCategoryRepository(openTestDB(t))

	latest, err := repo.LatestCategorySet(ctx)
	if err != nil || latest != nil {
		t.Fatalf("expected empty store, got %+v, %v", latest, err)
	}

	first := domain.ActiveCategories{Version: 1, Categories: domain.DefaultCategorySet(), UpdatedAt: time.Now().UTC()}
	second := first
	second.Version = 2
	second.Categories[0].Label = "Engineering"
	for _, active := range []domain.ActiveCategories{first, second} {
		if err := repo.SaveCategorySet(ctx, active); err != nil {
			t.Fatalf("SaveCategorySet(v%d) error = %v", active.Version, err)
		}
	}

	latest, err = repo.LatestCategorySet(ctx)
	if err != nil {
		t.Fatalf("LatestCategorySet() error = %v", err)
	}
	if latest.Version != 2 || latest.Categories.Label(1) != "Engineering" {
		t.Fatalf("unexpected latest set %+v", latest)
	}

	if err := repo.SaveCategorySet(ctx, second); !domain.IsKind(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict for duplicate version, got %v", err)
	}
}
