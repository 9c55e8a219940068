package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realtime-chat/backend/internal/repository"
	"realtime-chat/backend/pkg/config"
	"realtime-chat/backend/pkg/di"
	"realtime-chat/backend/pkg/logger"
	"realtime-chat/backend/pkg/router"
	"realtime-chat/backend/pkg/secrets"
	sharedredis "realtime-chat/backend/shared/redis"
	"realtime-chat/backend/shared/observability"

	goredis "github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.LogError(err, "Server stopped with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting application", "version", os.Getenv("APP_VERSION"), "env", cfg.Server.Env)

	if cfg.Observability.Enabled {
		shutdown, err := observability.Setup(cfg.Observability.ServiceName, os.Stdout)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				log.LogError(err, "Failed to flush telemetry")
			}
		}()
	}

	vault, err := secrets.NewVaultManager(secrets.VaultConfigFromEnv(), log)
	if err != nil {
		return err
	}
	go vault.RunCacheExpiry(ctx)

	cfg.Database.Password = vault.GetSecretWithDefault(ctx, secrets.KeyDBPassword, cfg.Database.Password)
	sessionSecret := vault.GetSecretWithDefault(ctx, secrets.KeyJWTSecret, cfg.Session.Secret)

	db, err := config.NewDB(cfg)
	if err != nil {
		return err
	}
	if err := repository.Migrate(db); err != nil {
		return err
	}

	var rdb *goredis.Client
	if cfg.Redis.Enabled {
		rdb, err = sharedredis.NewClient(sharedredis.Options{
			URL:      cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = sharedredis.Ping(pingCtx, rdb)
		cancel()
		if err != nil {
			// Messages are still stored; live delivery resumes once the relay resubscribes
			log.Warn("Redis unreachable at startup", "url", cfg.Redis.URL, "error", err.Error())
		}
	}

	container, err := di.New(di.Options{
		Config:        cfg,
		DB:            db,
		Redis:         rdb,
		Logger:        log,
		SessionSecret: sessionSecret,
	})
	if err != nil {
		return err
	}
	defer container.Close()

	container.Start(ctx)

	r := router.New(container)
	r.SetupRoutes()
	go r.RateLimiter.RunCleanup(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}

	log.Info("Server exited gracefully")
	return nil
}
