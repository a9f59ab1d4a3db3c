package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lacucina/restaurant-backend/internal/cron"
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
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
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

	acquiringClient, err := acquiring.NewClient(cfg.Acquiring)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap acquiring gateway", err)
		os.Exit(1)
	}

	orderRepo := orders.NewRepository(dbClient.DB())
	reconciler, err := payments.NewReconciler(payments.ReconcilerParams{
		Repo:    orderRepo,
		Gateway: acquiringClient,
		Logger:  logg,
		Metrics: metrics.NewPaymentMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciler", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()

	pendingJob, err := cron.NewPendingReconcileJob(cron.PendingReconcileJobParams{
		Logger:     logg,
		Orders:     orderRepo,
		Reconciler: reconciler,
		MinAge:     cfg.Cron.PendingMinAge,
		MaxAge:     cfg.Cron.PendingMaxAge,
		Batch:      cfg.Cron.PendingBatch,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pending reconcile job", err)
		os.Exit(1)
	}
	registry.Register(pendingJob)

	if cfg.Retention.CronEnabled {
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
		retentionJob, err := cron.NewOrderRetentionJob(cron.OrderRetentionJobParams{
			Logger: logg,
			Purger: retentionService,
			Days:   cfg.Retention.Days,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create order retention job", err)
			os.Exit(1)
		}
		registry.Register(retentionJob)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:       logg,
		Registry:     registry,
		Lock:         lock,
		Metrics:      metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:     cfg.Cron.Interval,
		CycleTimeout: cycleTimeout(cfg.Cron.LockTTL),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"instance":  instance.GetID(),
		"jobs":      len(registry.Jobs()),
		"retention": cfg.Retention.CronEnabled,
	})

	if *once {
		logg.Info(ctx, "running single cron cycle")
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

// lockName scopes the worker lock per environment; the key prefix alone is
// not enough when staging and production share a prefix.
func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}

// cycleTimeout leaves a tenth of the lock TTL for releasing the lock.
func cycleTimeout(lockTTL time.Duration) time.Duration {
	if lockTTL <= 0 {
		return 0
	}
	return lockTTL - lockTTL/10
}
