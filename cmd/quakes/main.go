package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/quakes-near-me/internal/adapter/http"
	"github.com/couchcryptid/quakes-near-me/internal/adapter/feed"
	kafkaadapter "github.com/couchcryptid/quakes-near-me/internal/adapter/kafka"
	"github.com/couchcryptid/quakes-near-me/internal/adapter/mapbox"
	"github.com/couchcryptid/quakes-near-me/internal/config"
	"github.com/couchcryptid/quakes-near-me/internal/domain"
	"github.com/couchcryptid/quakes-near-me/internal/observability"
	"github.com/couchcryptid/quakes-near-me/internal/pipeline"
	"github.com/couchcryptid/quakes-near-me/internal/store"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

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

	st := store.New(store.WithStaleAfter(cfg.StaleAfter))
	client := feed.NewClient(cfg.FeedURL, cfg.UpstreamCommandURL, cfg.FeedTimeout, metrics, logger)

	opts := []pipeline.Option{pipeline.WithCommander(client)}
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, pipeline.WithPublisher(writer))
		logger.Info("kafka snapshot publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	refresher := pipeline.New(client, st, cfg.RefreshInterval, logger, metrics, opts...)
	views := pipeline.NewViews(st, geocoder, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr, refresher, logger,
		httpadapter.WithViews(views),
		httpadapter.WithSnapshots(st),
		httpadapter.WithRefresh(refresher, cfg.RefreshRateLimit),
		httpadapter.WithMetrics(metrics),
		httpadapter.WithDefaultPageSize(cfg.DefaultPageSize),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return refresher.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("service error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
