package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	mcpadapter "github.com/kirillkom/prototype-classifier/internal/adapters/mcp"
	"github.com/kirillkom/prototype-classifier/internal/bootstrap"
	"github.com/kirillkom/prototype-classifier/internal/config"
	"github.com/kirillkom/prototype-classifier/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg := config.Load()
	// stdout carries the protocol, so logs go to stderr.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := bootstrap.NewStandalone(ctx, cfg, "mcp", prometheus.NewRegistry())
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := c.WatchCatalog(ctx); err != nil {
			slog.Error("catalog_watch_failed", "error", err)
		}
	}()

	srv := mcpadapter.NewServer("prototype-classifier", version, c.Classifier, c.Classifier, c.Propagator)
	if err := srv.ServeStdio(); err != nil {
		slog.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
