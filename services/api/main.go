package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/02loveslollipop/station-telemetry/internal/channels"
	"github.com/02loveslollipop/station-telemetry/internal/flow"
	"github.com/02loveslollipop/station-telemetry/internal/logging"
	"github.com/02loveslollipop/station-telemetry/internal/telemetry"
	"github.com/02loveslollipop/station-telemetry/internal/thingspeak"
	"github.com/02loveslollipop/station-telemetry/services/api/config"
	"github.com/02loveslollipop/station-telemetry/services/api/db"
	httpserver "github.com/02loveslollipop/station-telemetry/services/api/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, "station-api")
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry, err := channels.Load(cfg.ChannelsFile)
	if err != nil {
		return err
	}

	client := thingspeak.New(thingspeak.Options{
		BaseURL:    cfg.ThingSpeakBaseURL,
		APIKey:     cfg.ThingSpeakAPIKey,
		Timeout:    cfg.ThingSpeakTimeout,
		RetryCount: cfg.ThingSpeakRetries,
		Location:   cfg.Location,
	}, logger)

	cache, err := flow.NewCache(cfg.DeriveCacheSize)
	if err != nil {
		return err
	}

	deps := httpserver.Deps{
		Registry: registry,
		Recent:   client,
		Cache:    cache,
		Logger:   logger,
	}

	var source telemetry.Source = client
	if cfg.DatabaseURL != "" {
		store, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()
		deps.Alerts = store
		if cfg.TelemetrySource == config.SourceArchive {
			source = store
		}
	}
	deps.Fetcher = telemetry.NewFetcher(source, cfg.FetchWindow, cfg.FetchConcurrency, logger)

	srv := httpserver.New(cfg, deps)
	logger.Info("REST API listening",
		zap.String("addr", cfg.ListenAddr()),
		zap.String("telemetry_source", cfg.TelemetrySource),
		zap.Int("channels", len(registry.Channels())),
	)

	return srv.Run(ctx)
}
