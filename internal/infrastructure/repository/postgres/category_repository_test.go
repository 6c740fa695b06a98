package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/prototype-classifier/internal/core/domain"
)

func newCategoryRepoWithMock(t *testing.T) (*CategoryRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewCategoryRepository(db), mock, func() { _ = db.Close() }
}

func TestSaveCategorySetInsertsVersion(t *testing.T) {
	repo, mock, done := newCategoryRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO category_sets").
		WithArgs(3, sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveCategorySet(context.Background(), domain.ActiveCategories{
		Version:    3,
		Categories: domain.DefaultCategorySet(),
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("SaveCategorySet() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveCategorySetReportsVersionConflict(t *testing.T) {
	repo, mock, done := newCategoryRepoWithMock(t)
	defer done()

	mock.ExpectExec(`(?s)INSERT INTO category_sets.*ON CONFLICT \(version\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveCategorySet(context.Background(), domain.ActiveCategories{Version: 2, Categories: domain.DefaultCategorySet()})
	if !domain.IsKind(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("version conflict should be temporary, got %v", err)
	}
}

func TestSaveCategorySetPropagatesExecError(t *testing.T) {
	repo, mock, done := newCategoryRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO category_sets").WillReturnError(errors.New("connection reset"))

	err := repo.SaveCategorySet(context.Background(), domain.ActiveCategories{Version: 2, Categories: domain.DefaultCategorySet()})
	if err == nil || domain.IsKind(err, domain.ErrVersionConflict) {
		t.Fatalf("expected plain exec error, got %v", err)
	}
}

func TestLatestCategorySetReturnsNewest(t *testing.T) {
	repo, mock, done := newCategoryRepoWithMock(t)
	defer done()

	raw, err := json.Marshal(domain.DefaultCategorySet())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT version, categories, created_at").
		WillReturnRows(sqlmock.NewRows([]string{"version", "categories", "created_at"}).AddRow(5, raw, now))

	active, err := repo.LatestCategorySet(context.Background())
	if err != nil {
		t.Fatalf("LatestCategorySet() error = %v", err)
	}
	if active == nil || active.Version != 5 || active.Categories != domain.DefaultCategorySet() {
		t.Fatalf("unexpected category set %+v", active)
	}
}

func TestLatestCategorySetEmptyTable(t *testing.T) {
	repo, mock, done := newCategoryRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT version, categories, created_at").WillReturnError(sql.ErrNoRows)

	active, err := repo.LatestCategorySet(context.Background())
	if err != nil || active != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", active, err)
	}
}

func TestLatestCategorySetRejectsCorruptRow(t *testing.T) {
	repo, mock, done := newCategoryRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT version, categories, created_at").
		WillReturnRows(sqlmock.NewRows([]string{"version", "categories", "created_at"}).AddRow(1, []byte(`[{"label":"only"}]`), time.Now()))

	if _, err := repo.LatestCategorySet(context.Background()); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
