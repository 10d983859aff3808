package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/fieldops-backend/internal/cron"
	"github.com/angelmondragon/fieldops-backend/internal/users"
	"github.com/angelmondragon/fieldops-backend/internal/worklog"
	"github.com/angelmondragon/fieldops-backend/pkg/config"
	"github.com/angelmondragon/fieldops-backend/pkg/db"
	"github.com/angelmondragon/fieldops-backend/pkg/instance"
	"github.com/angelmondragon/fieldops-backend/pkg/locks"
	"github.com/angelmondragon/fieldops-backend/pkg/logger"
	"github.com/angelmondragon/fieldops-backend/pkg/metrics"
	"github.com/angelmondragon/fieldops-backend/pkg/migrate"
	"github.com/angelmondragon/fieldops-backend/pkg/redis"
)

const cronLockKey = "cron"

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

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
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

	// same namespace as the api so totals recomputes never interleave
	totalsLocks, err := locks.NewRedisLocker(redisClient, redisClient.LockKey("", ""), cfg.Assignments.TotalsLockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create totals locker", err)
		os.Exit(1)
	}
	ledger, err := worklog.NewService(
		worklog.NewRepository(dbClient.DB()),
		users.NewRepository(dbClient.DB()),
		totalsLocks,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create work log service", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry()
	if err != nil {
		logg.Error(context.Background(), "failed to create cron registry", err)
		os.Exit(1)
	}
	if cfg.Cron.TotalsEnabled {
		job, err := cron.NewTotalsJob(logg, ledger)
		if err == nil {
			err = registry.Register(job)
		}
		if err != nil {
			logg.Error(context.Background(), "failed to register totals job", err)
			os.Exit(1)
		}
	}

	cycleLocks, err := locks.NewRedisLocker(redisClient, redisClient.LockKey("", ""), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron locker", err)
		os.Exit(1)
	}
	lock, err := cron.NewLock(cycleLocks, cronLockKey, 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
		"once":        *once,
	})
	logg.Info(ctx, "starting cron worker")

	run := service.Run
	if *once {
		run = service.RunOnce
	}
	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
