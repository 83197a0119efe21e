package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codinglabe/believe-app/internal/catalog"
	"github.com/codinglabe/believe-app/internal/cron"
	"github.com/codinglabe/believe-app/internal/fees"
	"github.com/codinglabe/believe-app/internal/notifications"
	"github.com/codinglabe/believe-app/internal/offerings"
	"github.com/codinglabe/believe-app/internal/serviceorders"
	"github.com/codinglabe/believe-app/pkg/config"
	"github.com/codinglabe/believe-app/pkg/db"
	"github.com/codinglabe/believe-app/pkg/logger"
	"github.com/codinglabe/believe-app/pkg/metrics"
	"github.com/codinglabe/believe-app/pkg/migrate"
	"github.com/codinglabe/believe-app/pkg/outbox"
	"github.com/codinglabe/believe-app/pkg/redis"
)

const (
	lockKeyFormat = "believe:cron-worker:lock:%s"
	drainTimeout  = 10 * time.Second
)

func main() {
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

	// Notifications raised by sweeps are persisted only; the API process
	// owns the queue and amqp channels.
	notifier := notifications.NewDispatcher(logg, nil,
		notifications.NewStoreChannel(notifications.NewRepository(dbClient.DB())))
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := notifier.Wait(drainCtx); err != nil {
			logg.Warn(drainCtx, "pending notifications dropped on shutdown")
		}
	}()

	jobs, err := buildJobs(cfg, logg, dbClient, notifier)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}
	registry, err := cron.NewRegistry(jobs...)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "cron-worker",
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, notifier notifications.Notifier) ([]cron.Job, error) {
	notificationsRepo := notifications.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	platformRate, taxRate, err := cfg.Fees.Rates()
	if err != nil {
		return nil, err
	}
	feeCalculator, err := fees.NewCalculator(platformRate, taxRate)
	if err != nil {
		return nil, err
	}
	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), logg)
	if err != nil {
		return nil, err
	}
	ordersService, err := serviceorders.NewService(serviceorders.Deps{
		Repo:     serviceorders.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Outbox:   outboxService,
		Listings: catalogService,
		Fees:     feeCalculator,
		Notifier: notifier,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	offeringsRepo := offerings.NewRepository(dbClient.DB())
	tracker, err := offerings.NewTracker(offeringsRepo, dbClient, outboxService, nil, logg)
	if err != nil {
		return nil, err
	}
	offeringsService, err := offerings.NewService(offerings.Deps{
		Repo:     offeringsRepo,
		Tx:       dbClient,
		Outbox:   outboxService,
		Tracker:  tracker,
		Notifier: notifier,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	offeringWindow, err := cron.NewOfferingWindowJob(cron.OfferingWindowJobParams{
		Logger:    logg,
		Offerings: offeringsService,
	})
	if err != nil {
		return nil, err
	}
	unpaid, err := cron.NewUnpaidOrderJob(cron.UnpaidOrderJobParams{
		Logger: logg,
		Orders: ordersService,
		TTL:    cfg.Orders.UnpaidTTL,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, err
	}
	cleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notificationsRepo,
	})
	if err != nil {
		return nil, err
	}
	return []cron.Job{offeringWindow, unpaid, retention, cleanup}, nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
