package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/prototype-classifier/internal/config"
	"github.com/kirillkom/prototype-classifier/internal/core/domain"
	"github.com/kirillkom/prototype-classifier/internal/core/ports"
	"github.com/kirillkom/prototype-classifier/internal/core/usecase"
	"github.com/kirillkom/prototype-classifier/internal/infrastructure/extractor/multi"
	"github.com/kirillkom/prototype-classifier/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/prototype-classifier/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/prototype-classifier/internal/infrastructure/extractor/xlsx"
	"github.com/kirillkom/prototype-classifier/internal/infrastructure/queue/nats"
	"github.com/kirillkom/prototype-classifier/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/prototype-classifier/internal/infrastructure/repository/sqlite"
	"github.com/kirillkom/prototype-classifier/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/prototype-classifier/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Repo      ports.DocumentRepository
	IngestUC  ports.DocumentIngestor
	ProcessUC *usecase.ProcessDocumentUseCase

	*Classification

	closeFn func()
}

// New wires the full service: persistence, storage, queue and the
// classifier. Classifier and resilience metrics go to registerer.
func New(ctx context.Context, cfg config.Config, service string, registerer prometheus.Registerer) (*App, error) {
	db, repo, store, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	classifierMetrics := metrics.NewClassifierMetrics(service, registerer)
	executor := NewResilienceExecutor(cfg, classifierMetrics.ObserveBreakerState)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	classification, err := NewClassification(ctx, cfg, store, classifierMetrics, executor)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, err
	}

	extractor, err := multi.New(map[string]ports.TextExtractor{
		multi.FormatText: plaintext.NewExtractor(storage),
		multi.FormatPDF:  pdf.NewExtractor(storage),
		multi.FormatXLSX: xlsx.NewExtractor(storage),
	}, multi.FormatText)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init extractor: %w", err)
	}

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, extractor, classification.Classifier, domain.ClassifyOptions{
		MaxChunkSize: cfg.ChunkMaxSize,
		MinChunkSize: cfg.ChunkMinSize,
	})
	processUC.SetCategoryRefresher(classification.Classifier)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		IngestUC:       ingestUC,
		ProcessUC:      processUC,
		Classification: classification,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// NewStandalone wires only the classifier, for the CLI and the MCP server.
// Categories come from the catalog file or the defaults and are not persisted.
func NewStandalone(ctx context.Context, cfg config.Config, service string, registerer prometheus.Registerer) (*Classification, error) {
	classifierMetrics := metrics.NewClassifierMetrics(service, registerer)
	executor := NewResilienceExecutor(cfg, classifierMetrics.ObserveBreakerState)
	return NewClassification(ctx, cfg, nil, classifierMetrics, executor)
}

func openStores(ctx context.Context, cfg config.Config) (*sql.DB, ports.DocumentRepository, ports.CategoryStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.DBDriver)) {
	case "postgres", "":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		repo := postgres.NewDocumentRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return db, repo, postgres.NewCategoryRepository(db), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, nil, nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		db, err := sqlite.OpenDB(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := sqlite.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return db, sqlite.NewDocumentRepository(db), sqlite.NewCategoryRepository(db), nil
	default:
		return nil, nil, nil, domain.WrapError(domain.ErrConfiguration, "open stores", fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver))
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
