package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/temperature-anomaly-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/temperature-anomaly-etl/internal/adapter/kafka"
	"github.com/couchcryptid/temperature-anomaly-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/temperature-anomaly-etl/internal/adapter/storecache"
	"github.com/couchcryptid/temperature-anomaly-etl/internal/compute"
	"github.com/couchcryptid/temperature-anomaly-etl/internal/config"
	"github.com/couchcryptid/temperature-anomaly-etl/internal/observability"
	"github.com/couchcryptid/temperature-anomaly-etl/internal/pipeline"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	files, err := netcdf.NewStore(cfg.DataDir, cfg.DatasetPattern, logger)
	if err != nil {
		logger.Error("failed to open dataset store", "error", err)
		os.Exit(1)
	}
	store := storecache.New(files, cfg.StoreCacheSize, metrics)
	refresher := storecache.NewRefresher(store, cfg.StoreRefreshInterval, logger)
	logger.Info("dataset store ready",
		"dir", cfg.DataDir,
		"pattern", cfg.DatasetPattern,
		"cache_size", cfg.StoreCacheSize,
	)

	scheduler := compute.NewScheduler(cfg.ComputeWorkers, cfg.ComputeChunkRows, compute.NewMetricsProgress(metrics, logger), logger)
	transformer := pipeline.NewTransformer(store, scheduler, cfg.Regions, cfg.ReferencePeriod, logger)
	logger.Info("analysis configured",
		"reference_period", cfg.ReferencePeriod.String(),
		"regions", len(cfg.Regions.Regions()),
		"workers", cfg.ComputeWorkers,
		"chunk_rows", cfg.ComputeChunkRows,
	)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, cfg.Regions, cfg.ReferencePeriod, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := refresher.Start(); err != nil {
		logger.Error("cache refresh error", "error", err)
	}

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start anomaly pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	refresher.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
