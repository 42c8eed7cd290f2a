package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/02loveslollipop/station-telemetry/internal/alert"
	"github.com/02loveslollipop/station-telemetry/internal/channels"
	"github.com/02loveslollipop/station-telemetry/internal/logging"
	"github.com/02loveslollipop/station-telemetry/internal/notify"
	"github.com/02loveslollipop/station-telemetry/internal/thingspeak"
	"github.com/02loveslollipop/station-telemetry/services/watcher/internal/config"
	"github.com/02loveslollipop/station-telemetry/services/watcher/internal/db"
	"github.com/02loveslollipop/station-telemetry/services/watcher/internal/poller"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, "station-watcher")
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("watcher failed", zap.Error(err))
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
		Timeout:    cfg.RequestTimeout,
		RetryCount: cfg.RetryCount,
		Location:   cfg.Location,
	}, logger)

	notifier, closeSinks, err := buildNotifier(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	monitor := alert.NewMonitor(registry, notifier, cfg.PollInterval, logger)

	var archive poller.Archive
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := db.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		archive = db.Archive{Pool: pool}
	} else {
		logger.Warn("DATABASE_URL not set; samples and alert events are not archived")
	}

	p := poller.New(registry.Channels(), registry, client, monitor, archive, poller.Options{
		Interval:      cfg.PollInterval,
		RecentResults: cfg.RecentResults,
		Concurrency:   cfg.Concurrency,
		MinInterval:   cfg.MinInterval,
		ValueEpsilon:  cfg.ValueEpsilon,
		DryRun:        cfg.DryRun,
	}, logger)

	logger.Info("watcher started",
		zap.Int("channels", len(registry.Channels())),
		zap.Duration("interval", cfg.PollInterval),
		zap.Strings("sinks", cfg.Sinks),
		zap.Bool("dry_run", cfg.DryRun),
	)

	if cfg.Once {
		report, err := p.Tick(ctx)
		logger.Info("watcher cycle done",
			zap.Int("channels", report.Channels),
			zap.Int("failed", report.Failed),
			zap.Int("events", report.Events),
			zap.Int("inserted", report.Inserted),
		)
		return err
	}
	return p.Run(ctx)
}

// buildNotifier assembles the configured sinks into one notifier. The
// returned func releases sink connections.
func buildNotifier(ctx context.Context, cfg config.Config, logger *zap.Logger) (notify.Notifier, func(), error) {
	var (
		sinks   notify.Multi
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, name := range cfg.Sinks {
		switch name {
		case config.SinkLog:
			sinks = append(sinks, notify.NewLogNotifier(logger))
		case config.SinkSMTP:
			sinks = append(sinks, notify.NewSMTPNotifier(notify.SMTPConfig{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				Username: cfg.SMTPUsername,
				Password: cfg.SMTPPassword,
				From:     cfg.SMTPFrom,
			}, logger))
		case config.SinkRedis:
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			if err := rdb.Ping(ctx).Err(); err != nil {
				closeAll()
				_ = rdb.Close()
				return nil, nil, fmt.Errorf("connect to redis: %w", err)
			}
			closers = append(closers, func() { _ = rdb.Close() })
			sinks = append(sinks, notify.NewRedisStreamNotifier(rdb, cfg.AlertStream))
		case config.SinkMQTT:
			client, err := notify.ConnectMQTT(notify.MQTTConfig{
				Broker:   cfg.MQTTBroker,
				ClientID: cfg.MQTTClientID,
				Username: cfg.MQTTUsername,
				Password: cfg.MQTTPassword,
			})
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			closers = append(closers, func() { client.Disconnect(250) })
			sinks = append(sinks, notify.NewMQTTNotifier(client, cfg.MQTTTopicPrefix, 1))
		}
	}

	if len(sinks) == 1 {
		return sinks[0], closeAll, nil
	}
	return sinks, closeAll, nil
}
