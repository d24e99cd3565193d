package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/xymail/xymail-backend/internal/cleanup"
	"github.com/xymail/xymail-backend/internal/cron"
	"github.com/xymail/xymail-backend/internal/settings"
	"github.com/xymail/xymail-backend/pkg/config"
	"github.com/xymail/xymail-backend/pkg/db"
	"github.com/xymail/xymail-backend/pkg/instance"
	"github.com/xymail/xymail-backend/pkg/logger"
	"github.com/xymail/xymail-backend/pkg/metrics"
	"github.com/xymail/xymail-backend/pkg/migrate"
	"github.com/xymail/xymail-backend/pkg/redis"
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

	settingsService, err := settings.NewService(settings.NewRedisProvider(redisClient))
	if err != nil {
		logg.Error(context.Background(), "failed to create settings service", err)
		os.Exit(1)
	}

	cleanupService, err := cleanup.NewService(cleanup.ServiceParams{
		DB:       dbClient,
		Settings: settingsService,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cleanup service", err)
		os.Exit(1)
	}

	cleanupJob, err := cron.NewCleanupJob(cleanupService)
	if err != nil {
		logg.Error(context.Background(), "failed to create cleanup job", err)
		os.Exit(1)
	}
	registry := cron.NewRegistry()
	if err := registry.Add(cleanupJob, cfg.Cron.Interval); err != nil {
		logg.Error(context.Background(), "failed to register cleanup job", err)
		os.Exit(1)
	}

	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	locker, err := cron.NewRedisLocker(redisClient, redisClient.LockKey("cron", env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron locker", err)
		os.Exit(1)
	}

	scheduler, err := cron.NewScheduler(cron.SchedulerParams{
		Logger:   logg,
		Registry: registry,
		Locker:   locker,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Every:    cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron scheduler", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
		"interval": cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
