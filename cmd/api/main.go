package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/field-service/internal/api/http"
	"github.com/spec-kit/field-service/internal/api/http/handlers"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/config"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/gateway"
	"github.com/spec-kit/field-service/internal/observability"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/service"
	"github.com/spec-kit/field-service/internal/store"
	"github.com/spec-kit/field-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	pool, err := worker.NewPool(ctx, cfg.Worker.PoolSize, logger)
	if err != nil {
		logger.Fatal("failed to create worker pool", zap.Error(err))
	}
	defer pool.Release()

	var (
		requestGateway gateway.Gateway
		pingers        = map[string]handlers.Pinger{}
	)
	switch cfg.Gateway.Driver {
	case config.GatewayDriverRedis:
		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		requestGateway = gateway.NewRedisGateway(redis.Client, logger)
		pingers["redis"] = redis
	default:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		requestGateway = gateway.NewPostgresGateway(pg.PoolHandle(), logger)
		pingers["postgres"] = pg
	}

	requestStore, err := store.New(ctx, store.Dependencies{
		Gateway:    requestGateway,
		Dispatcher: dispatcher,
		Pool:       pool,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to start request store", zap.Error(err))
	}
	defer requestStore.Close()

	notifications := service.NewNotificationService(dispatcher, logger, metrics)
	notifications.RegisterHandlers()
	defer notifications.Close()

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokenManager)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pingers),
		Requests:       handlers.NewRequestsHandler(requestStore),
		Technician:     handlers.NewTechnicianRequestsHandler(requestStore),
		Admin:          handlers.NewAdminRequestsHandler(requestStore),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
