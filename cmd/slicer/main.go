// Command slicer runs one batch: it fetches the line list and cumulative
// feeds, then writes daily slices, country slices and the location info table
// to the output directory. All settings come from the environment.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"

	httpadapter "github.com/ghdsi/case-slicer/internal/adapter/http"
	kafkaadapter "github.com/ghdsi/case-slicer/internal/adapter/kafka"
	"github.com/ghdsi/case-slicer/internal/adapter/mapbox"
	"github.com/ghdsi/case-slicer/internal/config"
	"github.com/ghdsi/case-slicer/internal/countries"
	"github.com/ghdsi/case-slicer/internal/feed"
	"github.com/ghdsi/case-slicer/internal/observability"
	"github.com/ghdsi/case-slicer/internal/pipeline"
	"github.com/ghdsi/case-slicer/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	table, err := countries.LoadFile(cfg.CountriesPath)
	if err != nil {
		logger.Error("failed to load country table", "path", cfg.CountriesPath, "error", err)
		return 1
	}
	logger.Info("country table loaded", "path", cfg.CountriesPath, "countries", table.Len())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := pipeline.Deps{
		Feeds:     feed.NewFetcher(cfg.FetchTimeout, logger),
		Countries: table,
		Metrics:   metrics,
		Logger:    logger,
		Clock:     clockwork.NewRealClock(),
	}

	// Geocoding fills blank city names in the location info table
	// (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		cached, err := mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		if err != nil {
			logger.Error("failed to create geocode cache", "error", err)
			return 1
		}
		deps.Geocoder = cached
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	if cfg.PublishEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		deps.Publisher = writer
		logger.Info("publishing daily slices", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSliceTopic)
	}

	var ledger *store.Ledger
	if cfg.RunDBPath != "" {
		ledger, err = store.Open(ctx, cfg.RunDBPath)
		if err != nil {
			logger.Error("failed to open run ledger", "path", cfg.RunDBPath, "error", err)
			return 1
		}
		defer func() {
			if err := ledger.Close(); err != nil {
				logger.Error("run ledger close error", "error", err)
			}
		}()
		deps.Recorder = ledger
		if last, ok, err := ledger.LastSucceeded(ctx); err != nil {
			logger.Warn("failed to read last run", "error", err)
		} else if ok {
			logger.Info("last successful run", "run_id", last.ID, "started_at", last.StartedAt, "slices_written", last.SlicesWritten)
		}
	}

	p := pipeline.New(deps, pipeline.Options{
		LineListSource:   cfg.LineListSource,
		CumulativeSource: cfg.CumulativeSource,
		OutputDir:        cfg.OutputDir,
		Overwrite:        cfg.Overwrite,
		Workers:          cfg.Workers,
		Excluded:         cfg.ExcludedCountries,
	})

	if cfg.HTTPAddr != "" {
		var runs httpadapter.RunLister
		if ledger != nil {
			runs = ledger
		}
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, runs, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	sum, err := p.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("run interrupted", "error", err)
		}
		return 1
	}
	logger.Info(sum.String())
	return 0
}
