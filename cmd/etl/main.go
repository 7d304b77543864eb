package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/drought-risk-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/drought-risk-etl/internal/adapter/datagokr"
	"github.com/couchcryptid/drought-risk-etl/internal/adapter/fetch"
	"github.com/couchcryptid/drought-risk-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/drought-risk-etl/internal/adapter/kafka"
	"github.com/couchcryptid/drought-risk-etl/internal/adapter/kosis"
	"github.com/couchcryptid/drought-risk-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/drought-risk-etl/internal/adapter/naver"
	"github.com/couchcryptid/drought-risk-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/drought-risk-etl/internal/config"
	"github.com/couchcryptid/drought-risk-etl/internal/domain"
	"github.com/couchcryptid/drought-risk-etl/internal/observability"
	"github.com/couchcryptid/drought-risk-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher := fetch.NewClient(fetch.Options{
		Timeout:    cfg.FetchTimeout,
		MaxTrials:  cfg.FetchMaxTrials,
		RetryDelay: cfg.FetchRetryDelay,
	}, metrics, logger)

	collector := pipeline.NewCollector(pipeline.CollectorConfig{
		Catalog:   cfg.Catalog,
		SGIFrom:   cfg.SGIStartDate,
		SGITo:     cfg.SGIEndDate,
		KOSISYear: cfg.KOSISYear,
	},
		datagokr.NewClient(fetcher, cfg.DataGoKrServiceKey, logger),
		kosis.NewClient(fetcher, cfg.KOSISAPIKey, logger),
		csvfile.Extracts{FarmlandPath: cfg.FarmlandCSV},
		csvfile.Extracts{RevenueWaterPath: cfg.RevenueWaterCSV},
		logger,
	)

	var news pipeline.NewsSource
	if cfg.NewsEnabled {
		news = naver.NewCrawler(fetcher, naver.Options{
			Keyword: cfg.NewsKeyword,
			Workers: cfg.NewsWorkers,
		}, metrics, logger)
		logger.Info("news crawl enabled", "keyword", cfg.NewsKeyword, "workers", cfg.NewsWorkers)
	} else {
		logger.Info("news crawl disabled; every region counts 0 articles")
	}

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var (
		loaders []pipeline.Loader
		history httpadapter.HistoryProvider
		store   *sqlite.Store
		writer  *kafkaadapter.Writer
	)
	if cfg.OutputDir != "" {
		loaders = append(loaders, csvfile.NewSink(cfg.OutputDir, logger))
	}
	if cfg.SQLitePath != "" {
		store, err = sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Error("failed to open sqlite store", "path", cfg.SQLitePath, "error", err)
			os.Exit(1)
		}
		loaders = append(loaders, store)
		history = store
	}
	if len(cfg.KafkaBrokers) > 0 {
		writer = kafkaadapter.NewWriter(cfg, logger)
		loaders = append(loaders, writer)
	}
	names := make([]string, len(loaders))
	for i, l := range loaders {
		names[i] = l.Name()
	}
	logger.Info("sinks configured", "sinks", names)

	p := pipeline.New(pipeline.Options{
		Catalog:    cfg.Catalog,
		Thresholds: cfg.Thresholds,
		NewsFrom:   cfg.NewsStart,
		NewsTo:     cfg.NewsEnd,
		Interval:   cfg.RunInterval,
	}, collector, news, geocoder, loaders, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, history, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the assessment pipeline. A one-shot run (RUN_INTERVAL=0) ends the
	// process when it finishes.
	exitCode := 0
	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
			exitCode = 1
		}
	}()

	select {
	case <-ctx.Done():
		<-pipelineDone
	case <-pipelineDone:
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("sqlite close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	if exitCode != 0 {
		cancel()
		stop()
		os.Exit(exitCode)
	}
}
