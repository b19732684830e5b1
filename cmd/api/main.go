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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/safetrackhq/safetrack-backend/api/routes"
	"github.com/safetrackhq/safetrack-backend/internal/areas"
	"github.com/safetrackhq/safetrack-backend/internal/auth"
	"github.com/safetrackhq/safetrack-backend/internal/findings"
	"github.com/safetrackhq/safetrack-backend/internal/notifications"
	"github.com/safetrackhq/safetrack-backend/internal/users"
	"github.com/safetrackhq/safetrack-backend/pkg/auth/session"
	"github.com/safetrackhq/safetrack-backend/pkg/config"
	"github.com/safetrackhq/safetrack-backend/pkg/db"
	"github.com/safetrackhq/safetrack-backend/pkg/logger"
	"github.com/safetrackhq/safetrack-backend/pkg/metrics"
	"github.com/safetrackhq/safetrack-backend/pkg/migrate"
	"github.com/safetrackhq/safetrack-backend/pkg/outbox"
	"github.com/safetrackhq/safetrack-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	usersRepo := users.NewRepository(dbClient.DB())
	areasRepo := areas.NewRepository(dbClient.DB())
	findingsRepo := findings.NewRepository(dbClient.DB())
	settingsRepo := notifications.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	authService, err := auth.NewService(usersRepo, sessionManager, cfg.JWT, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	findingsService, err := findings.NewService(findingsRepo, areasRepo, usersRepo, outboxService, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create findings service", err)
		os.Exit(1)
	}

	areasService, err := areas.NewService(areasRepo, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create areas service", err)
		os.Exit(1)
	}

	usersService, err := users.NewService(usersRepo, cfg.Password, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	telegramSender, err := notifications.NewTelegramSender(cfg.Telegram)
	if err != nil {
		logg.Error(context.Background(), "failed to create telegram sender", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(settingsRepo, usersRepo, telegramSender, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	httpMetrics := metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)

	router := routes.NewRouter(routes.Deps{
		Config:         cfg,
		Logger:         logg,
		DBPinger:       dbClient,
		RedisPinger:    redisClient,
		Sessions:       sessionManager,
		Users:          usersRepo,
		HTTPMetrics:    httpMetrics,
		MetricsHandler: promhttp.Handler(),
		Auth:           authService,
		Findings:       findingsService,
		Areas:          areasService,
		UserAdmin:      usersService,
		Notifications:  notificationsService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}
