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

	"github.com/xymail/xymail-backend/api/routes"
	"github.com/xymail/xymail-backend/internal/activation"
	"github.com/xymail/xymail-backend/internal/auth"
	"github.com/xymail/xymail-backend/internal/cardkeys"
	"github.com/xymail/xymail-backend/internal/cleanup"
	"github.com/xymail/xymail-backend/internal/emails"
	"github.com/xymail/xymail-backend/internal/messages"
	"github.com/xymail/xymail-backend/internal/settings"
	"github.com/xymail/xymail-backend/internal/tempaccounts"
	"github.com/xymail/xymail-backend/internal/users"
	"github.com/xymail/xymail-backend/pkg/auth/session"
	"github.com/xymail/xymail-backend/pkg/config"
	"github.com/xymail/xymail-backend/pkg/db"
	"github.com/xymail/xymail-backend/pkg/instance"
	"github.com/xymail/xymail-backend/pkg/logger"
	"github.com/xymail/xymail-backend/pkg/migrate"
	"github.com/xymail/xymail-backend/pkg/redis"
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	settingsService, err := settings.NewService(settings.NewRedisProvider(redisClient))
	requireService(logg, "settings", err)

	authService, err := auth.NewService(auth.ServiceParams{
		DB:             dbClient,
		Settings:       settingsService,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	requireService(logg, "auth", err)

	cardKeyService, err := cardkeys.NewService(cardkeys.ServiceParams{
		DB:       dbClient,
		Settings: settingsService,
		Logger:   logg,
	})
	requireService(logg, "card key", err)

	activationService, err := activation.NewService(activation.ServiceParams{
		DB:     dbClient,
		Logger: logg,
	})
	requireService(logg, "activation", err)

	userService, err := users.NewService(dbClient, logg)
	requireService(logg, "users", err)

	cleanupService, err := cleanup.NewService(cleanup.ServiceParams{
		DB:       dbClient,
		Settings: settingsService,
		Logger:   logg,
	})
	requireService(logg, "cleanup", err)

	emailService, err := emails.NewService(emails.ServiceParams{
		DB:       dbClient,
		Settings: settingsService,
		Logger:   logg,
	})
	requireService(logg, "emails", err)

	messageService, err := messages.NewService(dbClient, logg, nil)
	requireService(logg, "messages", err)

	tempAccountService, err := tempaccounts.NewService(dbClient, nil)
	requireService(logg, "temp accounts", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			RateLimitStore: redisClient,
			Sessions:       sessionManager,
			Metrics:        prometheus.DefaultGatherer,
			Auth:           authService,
			Activation:     activationService,
			CardKeys:       cardKeyService,
			Users:          userService,
			Cleanup:        cleanupService,
			Settings:       settingsService,
			TempAccounts:   tempAccountService,
			Emails:         emailService,
			Messages:       messageService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

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
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name+" service", err)
	os.Exit(1)
}
