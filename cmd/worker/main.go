package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/prototype-classifier/internal/bootstrap"
	"github.com/kirillkom/prototype-classifier/internal/config"
	"github.com/kirillkom/prototype-classifier/internal/core/domain"
	"github.com/kirillkom/prototype-classifier/internal/core/ports"
	"github.com/kirillkom/prototype-classifier/internal/observability/logging"
	"github.com/kirillkom/prototype-classifier/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, serviceName, workerMetrics.Registry())
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	app.ProcessUC.SetQueueLagObserver(func(lag time.Duration) {
		workerMetrics.ObserveQueueLag(lag)
	})

	go func() {
		if err := app.WatchCatalog(ctx); err != nil {
			slog.Error("catalog_watch_failed", "error", err)
		}
	}()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	// Extraction plus classification; the classifier applies its own timeout.
	processTimeout := cfg.ClassifyTimeout + time.Minute

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeDocumentIngested(ctx, documentHandler(app.ProcessUC, workerMetrics, processTimeout))
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

func documentHandler(processor ports.DocumentProcessor, workerMetrics *metrics.WorkerMetrics, timeout time.Duration) func(context.Context, string) error {
	return func(handlerCtx context.Context, documentID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, timeout)
		defer cancel()

		start := time.Now()
		workerMetrics.StartDocument()
		err := processor.ProcessByID(processCtx, documentID)
		workerMetrics.FinishDocument(time.Since(start), err)
		if err != nil {
			slog.Warn("document_classification_failed", "document_id", documentID, "kind", domain.KindName(err), "error", err)
			return err
		}
		slog.Info("document_classified", "document_id", documentID, "duration_ms", time.Since(start).Milliseconds())
		return nil
	}
}
