package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/safetrackhq/safetrack-backend/internal/areas"
	"github.com/safetrackhq/safetrack-backend/internal/cron"
	"github.com/safetrackhq/safetrack-backend/internal/findings"
	"github.com/safetrackhq/safetrack-backend/internal/notifications"
	"github.com/safetrackhq/safetrack-backend/internal/users"
	"github.com/safetrackhq/safetrack-backend/pkg/config"
	"github.com/safetrackhq/safetrack-backend/pkg/db"
	"github.com/safetrackhq/safetrack-backend/pkg/enums"
	"github.com/safetrackhq/safetrack-backend/pkg/logger"
	"github.com/safetrackhq/safetrack-backend/pkg/metrics"
	"github.com/safetrackhq/safetrack-backend/pkg/migrate"
	"github.com/safetrackhq/safetrack-backend/pkg/outbox"
	"github.com/safetrackhq/safetrack-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "summary-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "summary-worker"

	logg = logger.New(logger.Options{
		ServiceName: "summary-worker",
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

	telegramSender, err := notifications.NewTelegramSender(cfg.Telegram)
	if err != nil {
		logg.Error(context.Background(), "failed to create telegram sender", err)
		os.Exit(1)
	}

	usersRepo := users.NewRepository(dbClient.DB())
	areasRepo := areas.NewRepository(dbClient.DB())
	findingsRepo := findings.NewRepository(dbClient.DB())
	settingsRepo := notifications.NewRepository(dbClient.DB())
	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

	findingsService, err := findings.NewService(findingsRepo, areasRepo, usersRepo, outboxService, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create findings service", err)
		os.Exit(1)
	}

	dailyJob, err := cron.NewSummaryJob(cron.SummaryJobParams{
		Logger:   logg,
		Kind:     enums.NotificationKindDailySummary,
		Findings: findingsService,
		Settings: settingsRepo,
		Users:    usersRepo,
		Sender:   telegramSender,
		DB:       dbClient,
		Outbox:   outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create daily summary job", err)
		os.Exit(1)
	}

	weeklyJob, err := cron.NewSummaryJob(cron.SummaryJobParams{
		Logger:   logg,
		Kind:     enums.NotificationKindWeeklySummary,
		Findings: findingsService,
		Settings: settingsRepo,
		Users:    usersRepo,
		Sender:   telegramSender,
		DB:       dbClient,
		Outbox:   outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create weekly summary job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(redisClient, cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(dailyJob, weeklyJob, retentionJob),
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
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting summary worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "summary worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "summary worker shutting down gracefully")
}

func lockKey(client *redis.Client, env string) string {
	if env == "" {
		env = "local"
	}
	return client.LockKey(fmt.Sprintf("summary-worker:%s", env))
}
