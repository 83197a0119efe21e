package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/codinglabe/believe-app/api/controllers"
	"github.com/codinglabe/believe-app/api/routes"
	"github.com/codinglabe/believe-app/internal/catalog"
	"github.com/codinglabe/believe-app/internal/chat"
	"github.com/codinglabe/believe-app/internal/dashboard"
	"github.com/codinglabe/believe-app/internal/fees"
	"github.com/codinglabe/believe-app/internal/notifications"
	"github.com/codinglabe/believe-app/internal/offerings"
	"github.com/codinglabe/believe-app/internal/reviews"
	"github.com/codinglabe/believe-app/internal/serviceorders"
	"github.com/codinglabe/believe-app/internal/users"
	"github.com/codinglabe/believe-app/internal/verification"
	squarewebhook "github.com/codinglabe/believe-app/internal/webhooks/square"
	"github.com/codinglabe/believe-app/pkg/amqp"
	"github.com/codinglabe/believe-app/pkg/authz"
	"github.com/codinglabe/believe-app/pkg/config"
	"github.com/codinglabe/believe-app/pkg/db"
	"github.com/codinglabe/believe-app/pkg/logger"
	"github.com/codinglabe/believe-app/pkg/metrics"
	"github.com/codinglabe/believe-app/pkg/migrate"
	"github.com/codinglabe/believe-app/pkg/outbox"
	"github.com/codinglabe/believe-app/pkg/outbox/idempotency"
	"github.com/codinglabe/believe-app/pkg/queue"
	"github.com/codinglabe/believe-app/pkg/redis"
	"github.com/codinglabe/believe-app/pkg/security"
	"github.com/codinglabe/believe-app/pkg/square"
)

const shutdownTimeout = 15 * time.Second

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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	marketplaceMetrics := metrics.NewMarketplaceMetrics(registry)

	enforcer, err := authz.NewEnforcer(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create policy enforcer", err)
		os.Exit(1)
	}
	if err := enforcer.Bootstrap(); err != nil {
		logg.Error(context.Background(), "failed to seed default policies", err)
		os.Exit(1)
	}

	notificationsRepo := notifications.NewRepository(dbClient.DB())
	notifierDeps := notifications.Deps{
		Logger:  logg,
		Metrics: marketplaceMetrics,
		Repo:    notificationsRepo,
	}
	channels := cfg.Notifications.ChannelList()
	if contains(channels, "queue") {
		queueClient := queue.NewClient(cfg.Queue)
		defer func() {
			if err := queueClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing queue client", err)
			}
		}()
		notifierDeps.Queue = queueClient
	}
	if contains(channels, "amqp") {
		publisher, err := amqp.Dial(cfg.AMQP)
		if err != nil {
			logg.Error(context.Background(), "failed to connect to amqp", err)
			os.Exit(1)
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logg.Error(context.Background(), "error closing amqp publisher", err)
			}
		}()
		notifierDeps.AMQP = publisher
	}
	notifier, err := notifications.BuildDispatcher(channels, notifierDeps)
	if err != nil {
		logg.Error(context.Background(), "failed to build notifier", err)
		os.Exit(1)
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := notifier.Wait(drainCtx); err != nil {
			logg.Warn(drainCtx, "pending notifications dropped on shutdown")
		}
	}()

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	platformRate, taxRate, err := cfg.Fees.Rates()
	if err != nil {
		logg.Error(context.Background(), "invalid fee configuration", err)
		os.Exit(1)
	}
	feeCalculator, err := fees.NewCalculator(platformRate, taxRate)
	if err != nil {
		logg.Error(context.Background(), "failed to create fee calculator", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	ordersRepo := serviceorders.NewRepository(dbClient.DB())
	ordersService, err := serviceorders.NewService(serviceorders.Deps{
		Repo:     ordersRepo,
		Tx:       dbClient,
		Outbox:   outboxService,
		Listings: catalogService,
		Fees:     feeCalculator,
		Notifier: notifier,
		Metrics:  marketplaceMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create service orders service", err)
		os.Exit(1)
	}

	var charger offerings.CardCharger
	var squareClient *square.Client
	if cfg.FeatureFlags.SquarePayment && cfg.Square.Enabled() {
		squareClient, err = square.NewClient(context.Background(), cfg.Square, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create square client", err)
			os.Exit(1)
		}
		charger = squareClient
	}

	offeringsRepo := offerings.NewRepository(dbClient.DB())
	tracker, err := offerings.NewTracker(offeringsRepo, dbClient, outboxService, marketplaceMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory tracker", err)
		os.Exit(1)
	}
	offeringsService, err := offerings.NewService(offerings.Deps{
		Repo:     offeringsRepo,
		Tx:       dbClient,
		Outbox:   outboxService,
		Tracker:  tracker,
		Charger:  charger,
		Notifier: notifier,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create offerings service", err)
		os.Exit(1)
	}

	reviewsService, err := reviews.NewService(reviews.NewRepository(dbClient.DB()), ordersRepo, dbClient, outboxService, notifier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reviews service", err)
		os.Exit(1)
	}

	chatService, err := chat.NewService(chat.NewRepository(dbClient.DB()), ordersRepo, notifier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create chat service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notificationsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	dashboardService, err := dashboard.NewService(dbClient.DB(), reviewsService, notificationsService)
	if err != nil {
		logg.Error(context.Background(), "failed to create dashboard service", err)
		os.Exit(1)
	}

	usersService, err := users.NewService(users.ServiceParams{
		Repo:      users.NewRepository(dbClient.DB()),
		Hasher:    security.NewPasswordHasher(cfg.Password),
		JWTConfig: cfg.JWT,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	verificationService, err := verification.NewService(dbClient.DB(), dbClient, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create verification service", err)
		os.Exit(1)
	}

	guard, err := idempotency.NewManager(redisClient, cfg.RateLimit.IdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}
	webhookService, err := squarewebhook.NewService(squarewebhook.ServiceParams{
		Orders: ordersService,
		Guard:  guard,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create square webhook service", err)
		os.Exit(1)
	}

	deps := routes.Deps{
		Redis: redisClient,
		Health: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		Metrics:       registry,
		Policy:        enforcer,
		Users:         usersService,
		Catalog:       catalogService,
		Orders:        ordersService,
		Chat:          chatService,
		Reviews:       reviewsService,
		Dashboard:     dashboardService,
		Notifications: notificationsService,
		Offerings:     offeringsService,
		Verification:  verificationService,
		SquareWebhook: webhookService,
	}
	if squareClient != nil {
		deps.SquareVerifier = squareClient
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	logg.Info(ctx, "starting api server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
