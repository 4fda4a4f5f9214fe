package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/quotedesk-backend/internal/cron"
	"github.com/angelmondragon/quotedesk-backend/internal/events"
	"github.com/angelmondragon/quotedesk-backend/internal/lineitems"
	"github.com/angelmondragon/quotedesk-backend/internal/quotes"
	"github.com/angelmondragon/quotedesk-backend/internal/reviews"
	"github.com/angelmondragon/quotedesk-backend/pkg/config"
	"github.com/angelmondragon/quotedesk-backend/pkg/db"
	"github.com/angelmondragon/quotedesk-backend/pkg/instance"
	"github.com/angelmondragon/quotedesk-backend/pkg/logger"
	"github.com/angelmondragon/quotedesk-backend/pkg/metrics"
	"github.com/angelmondragon/quotedesk-backend/pkg/migrate"
	"github.com/angelmondragon/quotedesk-backend/pkg/outbox"
	"github.com/angelmondragon/quotedesk-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single maintenance cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	service, err := buildService(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
		"once":     *once,
	})

	if *once {
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

// buildService wires the maintenance jobs. Reaped reviews are announced
// through the Redis bridge so clients connected to any API replica hear
// about the failure.
func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Service, error) {
	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)

	bridge, err := events.NewRedisBridge(events.NewHub(), redisClient, cfg.Events.RedisChannel, instance.GetID(), logg)
	if err != nil {
		return nil, err
	}
	reviewSvc, err := reviews.NewService(reviews.Deps{
		Repo:   reviews.NewRepository(conn),
		Quotes: quotes.NewRepository(conn),
		Items:  lineitems.NewRepository(conn),
		Tx:     dbClient,
		Outbox: outbox.NewService(outboxRepo, logg),
		Bus:    bridge,
		Logger: logg,
		Config: cfg.Reviews,
	})
	if err != nil {
		return nil, fmt.Errorf("review service: %w", err)
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, err
	}
	reaper, err := cron.NewReviewReaperJob(cron.ReviewReaperJobParams{
		Logger:     logg,
		Reviews:    reviewSvc,
		StaleAfter: cfg.Reviews.StaleAfter,
	})
	if err != nil {
		return nil, err
	}
	registry, err := cron.NewRegistry(retention, reaper)
	if err != nil {
		return nil, err
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg), 0)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
}

func lockKey(cfg *config.Config) string {
	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	return cfg.Cron.LockKey + ":" + env
}
