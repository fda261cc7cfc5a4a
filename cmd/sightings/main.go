package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/sightings-map/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/sightings-map/internal/adapter/kafka"
	"github.com/couchcryptid/sightings-map/internal/adapter/mapbox"
	"github.com/couchcryptid/sightings-map/internal/config"
	"github.com/couchcryptid/sightings-map/internal/feed"
	"github.com/couchcryptid/sightings-map/internal/observability"
	"github.com/couchcryptid/sightings-map/internal/pipeline"
	"github.com/couchcryptid/sightings-map/internal/session"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	tables, err := config.LoadThresholds(cfg.ThresholdsFile)
	if err != nil {
		logger.Error("failed to load thresholds", "error", err)
		os.Exit(1)
	}

	fetcher := feed.NewFetcher(cfg.FetchTimeout, metrics, logger)
	loader := feed.NewLoader(fetcher, feed.Sources{
		RecordsURL:      cfg.RecordsURL,
		PopulationURL:   cfg.PopulationURL,
		PopulationTable: cfg.PopulationSQLiteTable,
		BoundariesURL:   cfg.BoundariesURL,
	}, metrics, logger)

	opts := []session.Option{
		session.WithLayers(cfg.DefaultLayers...),
		session.WithReportURLTemplate(cfg.ReportURLTemplate),
	}

	// Geocoding for nearby search is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, cfg.MapboxRateLimit, metrics, logger)
		opts = append(opts, session.WithGeocoder(mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)))
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout, "rate_limit", cfg.MapboxRateLimit)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var writer *kafkaadapter.SnapshotWriter
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewSnapshotWriter(cfg, logger)
		opts = append(opts, session.WithPublisher(writer))
		logger.Info("snapshot publishing enabled", "topic", cfg.KafkaSnapshotTopic, "brokers", cfg.KafkaBrokers)
	}

	controller, err := session.New(loader, tables, logger, metrics, opts...)
	if err != nil {
		logger.Error("failed to create session", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, controller, logger, httpadapter.WithAllowedOrigins(cfg.CORSAllowedOrigins...))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server. /readyz reports 503 until the feeds have loaded.
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Load the feeds. FEED_RETRY and REFRESH_INTERVAL opt into retrying a
	// failed load and periodic reloads.
	var pipelineOpts []pipeline.Option
	if cfg.FeedRetry {
		pipelineOpts = append(pipelineOpts, pipeline.WithRetry(0, 0))
	}
	p := pipeline.New(controller, cfg.RefreshInterval, logger, metrics, pipelineOpts...)
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("feed load failed, serving data-unavailable state", "error", err)
		}
	}()

	<-ctx.Done()
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

	logger.Info("shutdown complete")
}
