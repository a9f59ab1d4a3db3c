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

	"github.com/lacucina/restaurant-backend/api/routes"
	"github.com/lacucina/restaurant-backend/internal/catalog"
	"github.com/lacucina/restaurant-backend/internal/orders"
	"github.com/lacucina/restaurant-backend/internal/payments"
	"github.com/lacucina/restaurant-backend/internal/retention"
	"github.com/lacucina/restaurant-backend/pkg/acquiring"
	"github.com/lacucina/restaurant-backend/pkg/config"
	"github.com/lacucina/restaurant-backend/pkg/db"
	"github.com/lacucina/restaurant-backend/pkg/instance"
	"github.com/lacucina/restaurant-backend/pkg/logger"
	"github.com/lacucina/restaurant-backend/pkg/metrics"
	"github.com/lacucina/restaurant-backend/pkg/migrate"
	"github.com/lacucina/restaurant-backend/pkg/redis"
	"github.com/lacucina/restaurant-backend/pkg/stripe"
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
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	acquiringClient, err := acquiring.NewClient(cfg.Acquiring)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap acquiring gateway", err)
		os.Exit(1)
	}

	orderRepo := orders.NewRepository(dbClient.DB())
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:    orderRepo,
		Catalog: catalog.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Numbers: orders.NewNumberGenerator(),
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	intentService, err := payments.NewIntentService(payments.IntentServiceParams{
		Repo:    orderRepo,
		Gateway: stripeClient,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create intent service", err)
		os.Exit(1)
	}

	redirectService, err := payments.NewRedirectService(payments.RedirectServiceParams{
		Repo:      orderRepo,
		Gateway:   acquiringClient,
		Guard:     redisClient,
		ReturnURL: cfg.Site.ReturnURL(),
		FailURL:   cfg.Site.FailURL(),
		Logger:    logg,
		Metrics:   paymentMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create redirect service", err)
		os.Exit(1)
	}

	reconciler, err := payments.NewReconciler(payments.ReconcilerParams{
		Repo:    orderRepo,
		Gateway: acquiringClient,
		Logger:  logg,
		Metrics: paymentMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciler", err)
		os.Exit(1)
	}

	retentionService, err := retention.NewService(retention.ServiceParams{
		Repo:   orderRepo,
		Tx:     dbClient,
		Logger: logg,
		Days:   cfg.Retention.Days,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create retention service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":           cfg.App.Env,
		"addr":          addr,
		"instance":      instance.GetID(),
		"stripeEnv":     stripeClient.Environment(),
		"retentionDays": cfg.Retention.Days,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Idempotency: redisClient,
			Gatherer:    prometheus.DefaultGatherer,
			Orders:      orderService,
			Intents:     intentService,
			Redirects:   redirectService,
			Reconciler:  reconciler,
			Retention:   retentionService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
