package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/quotedesk-backend/api"
	"github.com/angelmondragon/quotedesk-backend/api/routes"
	"github.com/angelmondragon/quotedesk-backend/internal/events"
	"github.com/angelmondragon/quotedesk-backend/internal/lineitems"
	"github.com/angelmondragon/quotedesk-backend/internal/partslists"
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

const shutdownTimeout = 20 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api exited with error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.NewHTTPMetrics(reg)
	ledgerMetrics := metrics.NewLedgerMetrics(reg)

	instanceID := instance.GetID()
	hub := events.NewHub()
	bridge, err := events.NewRedisBridge(hub, redisClient, cfg.Events.RedisChannel, instanceID, logg)
	if err != nil {
		return err
	}

	conn := dbClient.DB()
	items := lineitems.NewRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	quoteRepo := quotes.NewRepository(conn)

	quoteSvc, err := quotes.NewService(quotes.Deps{
		Repo:               quoteRepo,
		Items:              items,
		Tx:                 dbClient,
		Outbox:             emitter,
		Bus:                bridge,
		Metrics:            ledgerMetrics,
		Logger:             logg,
		RequireItemVersion: cfg.FeatureFlags.RequireItemVersion,
	})
	if err != nil {
		return err
	}
	partsSvc, err := partslists.NewService(partslists.Deps{
		Repo:               partslists.NewRepository(conn),
		Items:              items,
		Tx:                 dbClient,
		Outbox:             emitter,
		Bus:                bridge,
		Metrics:            ledgerMetrics,
		Logger:             logg,
		RequireItemVersion: cfg.FeatureFlags.RequireItemVersion,
	})
	if err != nil {
		return err
	}
	reviewSvc, err := reviews.NewService(reviews.Deps{
		Repo:    reviews.NewRepository(conn),
		Quotes:  quoteRepo,
		Items:   items,
		Tx:      dbClient,
		Outbox:  emitter,
		Bus:     bridge,
		Limiter: redisClient,
		Logger:  logg,
		Config:  cfg.Reviews,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := api.NewServer(addr, routes.NewRouter(routes.Params{
		Config:      cfg,
		Logger:      logg,
		DB:          dbClient,
		Redis:       redisClient,
		HTTPMetrics: httpMetrics,
		Gatherer:    reg,
		Quotes:      quoteSvc,
		PartsLists:  partsSvc,
		Reviews:     reviewSvc,
		Events:      hub,
	}))

	bgCtx, cancelBg := context.WithCancel(ctx)
	defer cancelBg()
	bgDone := make(chan error, 2)
	go func() { bgDone <- bridge.Run(bgCtx) }()
	go func() { bgDone <- reviewSvc.Run(bgCtx) }()

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instanceID,
	})
	logg.Info(logCtx, "api server started")

	select {
	case <-ctx.Done():
		logg.Info(logCtx, "shutdown signal received")
	case err := <-serveErr:
		cancelBg()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		err = multierr.Append(err, shutdownErr)
	}
	cancelBg()
	for i := 0; i < 2; i++ {
		if bgErr := <-bgDone; bgErr != nil && !errors.Is(bgErr, context.Canceled) {
			err = multierr.Append(err, bgErr)
		}
	}
	logg.Info(logCtx, "api server stopped")
	return err
}
