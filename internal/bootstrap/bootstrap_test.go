package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/prototype-classifier/internal/config"
	"github.com/kirillkom/prototype-classifier/internal/core/domain"
)

func offlineConfig() config.Config {
	return config.Config{
		EmbedderProvider:         "hashing",
		HashingDimension:         128,
		ClassifyTimeout:          5 * time.Second,
		ClassifyEmbedConcurrency: 2,
		ClassifyTemperature:      5,
		ChunkMaxSize:             512,
		ChunkMinSize:             100,
	}
}

type storeFake struct {
	latest *domain.ActiveCategories
	saved  []domain.ActiveCategories
}

func (f *storeFake) SaveCategorySet(_ context.Context, active domain.ActiveCategories) error {
	f.saved = append(f.saved, active)
	return nil
}

func (f *storeFake) LatestCategorySet(context.Context) (*domain.ActiveCategories, error) {
	return f.latest, nil
}

func TestNewStandaloneUsesDefaults(t *testing.T) {
	c, err := NewStandalone(context.Background(), offlineConfig(), "test", prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewStandalone() error = %v", err)
	}
	active := c.Classifier.Categories()
	if active.Version != 1 || active.Categories != domain.DefaultCategorySet() {
		t.Fatalf("expected default categories at version 1, got %+v", active)
	}

	result, err := c.Classifier.Classify(context.Background(), domain.ClassifyRequest{
		Text: "Source code, software architecture, APIs, debugging and engineering implementation details.",
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.DominantIndex != 1 {
		t.Fatalf("expected the technical prototype to win, got %d (%s)", result.DominantIndex, result.DominantLabel)
	}
}

func TestNewStandaloneLoadsCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	body := `categories:
  - {label: Code, prototype: Programs and compilers.}
  - {label: Mood, prototype: Feelings and moods.}
  - {label: Ideas, prototype: Meaning and ethics.}
  - {label: Story, prototype: Characters and plot.}
  - {label: Numbers, prototype: Statistics and measurement.}
  - {label: Art, prototype: Poems and paintings.}
  - {label: Chores, prototype: Errands and checklists.}
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	cfg := offlineConfig()
	cfg.CategoriesFile = path

	c, err := NewStandalone(context.Background(), cfg, "test", prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewStandalone() error = %v", err)
	}
	if got := c.Classifier.Categories().Categories.Label(4); got != "Story" {
		t.Fatalf("expected catalog labels, got %q", got)
	}
	if c.Propagator.Table() != domain.DefaultPropagationTable() {
		t.Fatalf("expected default table without override")
	}
}

func TestNewClassificationPrefersStoredSet(t *testing.T) {
	set, err := domain.NewCategorySet(
		[]string{"A", "B", "C", "D", "E", "F", "G"},
		[]string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta"},
	)
	if err != nil {
		t.Fatalf("NewCategorySet() error = %v", err)
	}
	store := &storeFake{latest: &domain.ActiveCategories{Version: 7, Categories: set}}

	cfg := offlineConfig()
	classification, err := NewClassification(context.Background(), cfg, store, nopObserver{}, NewResilienceExecutor(cfg, nil))
	if err != nil {
		t.Fatalf("NewClassification() error = %v", err)
	}
	if active := classification.Classifier.Categories(); active.Version != 7 || active.Categories.Label(1) != "A" {
		t.Fatalf("expected stored set v7, got %+v", active)
	}
	if len(store.saved) != 0 {
		t.Fatalf("restoring must not persist a new version")
	}
}

func TestNewClassificationPersistsBootstrapSet(t *testing.T) {
	store := &storeFake{}
	cfg := offlineConfig()

	if _, err := NewClassification(context.Background(), cfg, store, nopObserver{}, NewResilienceExecutor(cfg, nil)); err != nil {
		t.Fatalf("NewClassification() error = %v", err)
	}
	if len(store.saved) != 1 || store.saved[0].Version != 1 {
		t.Fatalf("expected default set persisted as v1, got %+v", store.saved)
	}
}

func TestNewEmbedderRejectsUnknownProvider(t *testing.T) {
	cfg := offlineConfig()
	cfg.EmbedderProvider = "word2vec"
	if _, err := NewEmbedder(cfg, nil); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestOpenStoresRejectsUnknownDriver(t *testing.T) {
	cfg := offlineConfig()
	cfg.DBDriver = "mysql"
	if _, _, _, err := openStores(context.Background(), cfg); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestOpenStoresSQLite(t *testing.T) {
	cfg := offlineConfig()
	cfg.DBDriver = "sqlite"
	cfg.SQLitePath = filepath.Join(t.TempDir(), "nested", "classifier.db")

	db, repo, store, err := openStores(context.Background(), cfg)
	if err != nil {
		t.Fatalf("openStores() error = %v", err)
	}
	defer db.Close()
	if repo == nil || store == nil {
		t.Fatalf("expected sqlite repositories")
	}
	latest, err := store.LatestCategorySet(context.Background())
	if err != nil || latest != nil {
		t.Fatalf("expected empty store, got %+v, %v", latest, err)
	}
}

func TestClassificationsShareSQLiteCategoryStore(t *testing.T) {
	ctx := context.Background()
	cfg := offlineConfig()
	cfg.DBDriver = "sqlite"
	cfg.SQLitePath = filepath.Join(t.TempDir(), "classifier.db")

	db, _, store, err := openStores(ctx, cfg)
	if err != nil {
		t.Fatalf("openStores() error = %v", err)
	}
	defer db.Close()

	api, err := NewClassification(ctx, cfg, store, nopObserver{}, NewResilienceExecutor(cfg, nil))
	if err != nil {
		t.Fatalf("NewClassification(api) error = %v", err)
	}
	worker, err := NewClassification(ctx, cfg, store, nopObserver{}, NewResilienceExecutor(cfg, nil))
	if err != nil {
		t.Fatalf("NewClassification(worker) error = %v", err)
	}
	if api.Classifier.Categories().Version != 1 || worker.Classifier.Categories().Version != 1 {
		t.Fatalf("expected both processes on v1")
	}

	custom := domain.CategoryConfig{
		Labels:                []string{"A", "B", "C", "D", "E", "F", "G"},
		PrototypeDescriptions: []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta"},
	}
	if active, err := api.Classifier.Configure(ctx, custom); err != nil || active.Version != 2 {
		t.Fatalf("api Configure() = %+v, %v; want v2", active, err)
	}

	refreshed, err := worker.Classifier.Refresh(ctx)
	if err != nil || !refreshed {
		t.Fatalf("worker Refresh() = %v, %v; want a newer set", refreshed, err)
	}
	result, err := worker.Classifier.Classify(ctx, domain.ClassifyRequest{Text: "alpha alpha alpha"})
	if err != nil {
		t.Fatalf("worker Classify() error = %v", err)
	}
	if result.ConfigVersion != 2 || result.DominantLabel != "A" {
		t.Fatalf("expected worker to classify against v2, got version %d label %s", result.ConfigVersion, result.DominantLabel)
	}

	// The api is still on v2 locally when the worker moves to v3.
	if active, err := worker.Classifier.Configure(ctx, custom); err != nil || active.Version != 3 {
		t.Fatalf("worker Configure() = %+v, %v; want v3", active, err)
	}
	defaults := domain.CategoryConfig{
		Labels:                domain.DefaultCategorySet().Labels(),
		PrototypeDescriptions: domain.DefaultCategorySet().Prototypes(),
	}
	if active, err := api.Classifier.Configure(ctx, defaults); err != nil || active.Version != 4 {
		t.Fatalf("api Configure() = %+v, %v; want v4 after stored v3", active, err)
	}

	latest, err := store.LatestCategorySet(ctx)
	if err != nil {
		t.Fatalf("LatestCategorySet() error = %v", err)
	}
	if latest.Version != 4 || latest.Categories != domain.DefaultCategorySet() {
		t.Fatalf("unexpected latest stored set %+v", latest)
	}
}

func TestSyncCategoriesPicksUpStoredSet(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := offlineConfig()
	cfg.DBDriver = "sqlite"
	cfg.SQLitePath = filepath.Join(t.TempDir(), "classifier.db")
	cfg.CategoriesSyncInterval = 10 * time.Millisecond

	db, _, store, err := openStores(ctx, cfg)
	if err != nil {
		t.Fatalf("openStores() error = %v", err)
	}
	defer db.Close()

	reader, err := NewClassification(ctx, cfg, store, nopObserver{}, NewResilienceExecutor(cfg, nil))
	if err != nil {
		t.Fatalf("NewClassification(reader) error = %v", err)
	}
	writer, err := NewClassification(ctx, cfg, store, nopObserver{}, NewResilienceExecutor(cfg, nil))
	if err != nil {
		t.Fatalf("NewClassification(writer) error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		reader.SyncCategories(ctx)
	}()

	if _, err := writer.Classifier.Configure(ctx, domain.CategoryConfig{
		Labels:                []string{"A", "B", "C", "D", "E", "F", "G"},
		PrototypeDescriptions: []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta"},
	}); err != nil {
		t.Fatalf("writer Configure() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for reader.Classifier.Categories().Version != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("reader never picked up v2, still on %d", reader.Classifier.Categories().Version)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done
}

func TestSyncCategoriesDisabledWithoutStore(t *testing.T) {
	cfg := offlineConfig()
	cfg.CategoriesSyncInterval = time.Millisecond
	c, err := NewStandalone(context.Background(), cfg, "test", prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewStandalone() error = %v", err)
	}
	// Returns at once even though ctx never ends.
	c.SyncCategories(context.Background())
}

type nopObserver struct{}

func (nopObserver) ObserveClassification(*domain.ClassificationResult, time.Duration, error) {}
func (nopObserver) ObserveReconfiguration(error)                                             {}
