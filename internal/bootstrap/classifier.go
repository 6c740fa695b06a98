package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/prototype-classifier/internal/config"
	"github.com/kirillkom/prototype-classifier/internal/core/domain"
	"github.com/kirillkom/prototype-classifier/internal/core/ports"
	"github.com/kirillkom/prototype-classifier/internal/core/usecase"
	"github.com/kirillkom/prototype-classifier/internal/infrastructure/catalog"
	"github.com/kirillkom/prototype-classifier/internal/infrastructure/chunking"
	"github.com/kirillkom/prototype-classifier/internal/infrastructure/embedding/hashing"
	"github.com/kirillkom/prototype-classifier/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/prototype-classifier/internal/infrastructure/resilience"
)

// Classification is the classifier core shared by every binary.
type Classification struct {
	Classifier *usecase.ClassifyUseCase
	Propagator *usecase.PropagateUseCase
	Embedder   ports.Embedder

	catalogPath  string
	catalogWatch bool
	syncInterval time.Duration
}

// NewClassification builds the embedder, propagator and classifier, then
// activates the latest stored category set, else the catalog file, else the
// built-in defaults.
func NewClassification(
	ctx context.Context,
	cfg config.Config,
	store ports.CategoryStore,
	observer ports.ClassificationObserver,
	executor *resilience.Executor,
) (*Classification, error) {
	embedder, err := NewEmbedder(cfg, executor)
	if err != nil {
		return nil, err
	}

	var cat *catalog.Catalog
	if cfg.CategoriesFile != "" {
		cat, err = catalog.Load(cfg.CategoriesFile)
		if err != nil {
			return nil, fmt.Errorf("load category catalog: %w", err)
		}
	}

	table := domain.DefaultPropagationTable()
	if cat != nil && cat.Table != nil {
		table = *cat.Table
	}
	propagator, err := usecase.NewPropagateUseCase(table)
	if err != nil {
		return nil, fmt.Errorf("init propagator: %w", err)
	}

	settings := usecase.DefaultClassifierSettings()
	settings.Timeout = cfg.ClassifyTimeout
	settings.EmbedConcurrency = cfg.ClassifyEmbedConcurrency
	settings.Temperature = cfg.ClassifyTemperature
	settings.DefaultOptions = domain.ClassifyOptions{
		MaxChunkSize: cfg.ChunkMaxSize,
		MinChunkSize: cfg.ChunkMinSize,
	}
	chunker := chunking.NewSplitter(cfg.ChunkMaxSize, cfg.ChunkMinSize)
	classifier := usecase.NewClassifyUseCase(embedder, chunker, propagator, store, observer, settings)

	if err := activateCategories(ctx, classifier, store, cat); err != nil {
		return nil, err
	}

	return &Classification{
		Classifier:   classifier,
		Propagator:   propagator,
		Embedder:     embedder,
		catalogPath:  cfg.CategoriesFile,
		catalogWatch: cfg.CategoriesWatch,
		syncInterval: syncInterval(cfg, store),
	}, nil
}

// syncInterval is zero without a shared store: there is nothing to poll.
func syncInterval(cfg config.Config, store ports.CategoryStore) time.Duration {
	if store == nil {
		return 0
	}
	return cfg.CategoriesSyncInterval
}

func NewEmbedder(cfg config.Config, executor *resilience.Executor) (ports.Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.EmbedderProvider)) {
	case "hashing":
		return hashing.New(cfg.HashingDimension), nil
	case "ollama", "":
		client := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaEmbedModel, ollama.Options{
			HTTPTimeout:        cfg.OllamaTimeout,
			ResilienceExecutor: executor,
		})
		return ollama.NewEmbedder(client), nil
	default:
		return nil, domain.WrapError(domain.ErrConfiguration, "select embedder", fmt.Errorf("unknown provider %q", cfg.EmbedderProvider))
	}
}

func NewResilienceExecutor(cfg config.Config, onStateChange func(operation, from, to string)) *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.EmbedRetryMaxAttempts,
		RetryInitialBackoff: cfg.EmbedRetryInitialBackoff,
		RetryMaxBackoff:     cfg.EmbedRetryMaxBackoff,
		RetryMultiplier:     2,

		BreakerEnabled:          cfg.EmbedBreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.EmbedBreakerMinRequests, 1)),
		BreakerFailureRatio:     cfg.EmbedBreakerFailureRatio,
		BreakerOpenTimeout:      cfg.EmbedBreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: 2,

		OnStateChange: onStateChange,
	})
}

func activateCategories(ctx context.Context, classifier *usecase.ClassifyUseCase, store ports.CategoryStore, cat *catalog.Catalog) error {
	if store != nil {
		stored, err := store.LatestCategorySet(ctx)
		if err != nil {
			return fmt.Errorf("load stored category set: %w", err)
		}
		if stored != nil {
			if err := classifier.Activate(ctx, *stored); err != nil {
				return fmt.Errorf("activate stored category set v%d: %w", stored.Version, err)
			}
			return nil
		}
	}

	source := "defaults"
	cfg := domain.CategoryConfig{
		Labels:                domain.DefaultCategorySet().Labels(),
		PrototypeDescriptions: domain.DefaultCategorySet().Prototypes(),
	}
	if cat != nil {
		source = "catalog"
		cfg = cat.Config()
	}
	if _, err := classifier.Configure(ctx, cfg); err != nil {
		return fmt.Errorf("activate %s category set: %w", source, err)
	}
	slog.Info("categories_bootstrapped", "source", source)
	return nil
}

// WatchCatalog reconfigures the classifier whenever the catalog file changes.
// It returns immediately when watching is disabled.
func (c *Classification) WatchCatalog(ctx context.Context) error {
	if !c.catalogWatch || c.catalogPath == "" {
		return nil
	}
	watcher := catalog.NewWatcher(c.catalogPath, func(ctx context.Context, cat *catalog.Catalog) error {
		if cat.Table != nil && *cat.Table != c.Propagator.Table() {
			slog.Warn("catalog_table_change_ignored", "path", c.catalogPath, "reason", "propagation table is fixed for the process lifetime")
		}
		_, err := c.Classifier.Configure(ctx, cat.Config())
		return err
	})
	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch category catalog: %w", err)
	}
	return nil
}

// SyncCategories polls the category store and installs sets configured by
// other processes. It blocks until ctx is done and returns immediately when
// polling is disabled.
func (c *Classification) SyncCategories(ctx context.Context) {
	if c.syncInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Classifier.Refresh(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("categories_sync_failed", "error", err)
			}
		}
	}
}
