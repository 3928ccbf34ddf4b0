package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/facility-requests/internal/api/http"
	"github.com/spec-kit/facility-requests/internal/api/http/handlers"
	"github.com/spec-kit/facility-requests/internal/auth"
	"github.com/spec-kit/facility-requests/internal/config"
	"github.com/spec-kit/facility-requests/internal/events"
	"github.com/spec-kit/facility-requests/internal/identity"
	"github.com/spec-kit/facility-requests/internal/notify"
	"github.com/spec-kit/facility-requests/internal/observability"
	"github.com/spec-kit/facility-requests/internal/persistence"
	"github.com/spec-kit/facility-requests/internal/repository"
	"github.com/spec-kit/facility-requests/internal/repository/memory"
	"github.com/spec-kit/facility-requests/internal/service"
	"github.com/spec-kit/facility-requests/internal/session"
	"github.com/spec-kit/facility-requests/internal/worker"
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

	shutdownTracing := observability.SetupTracing(ctx, cfg.Telemetry, cfg.App.Name, cfg.App.Version, logger)

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

	readiness := map[string]handlers.Pinger{}
	var store repository.Store
	if pg.Configured() {
		store = repository.NewPostgresStore(pg.PoolHandle())
		readiness["postgres"] = pg
	} else {
		logger.Warn("using in-memory request store; data is lost on restart")
		store = memory.New()
	}

	var redis *persistence.Redis
	if cfg.Auth.SessionStore == config.SessionStoreRedis {
		redis = persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		readiness["redis"] = redis
	}
	sessions := newSessionStore(cfg.Auth, redis)

	verifier, err := newVerifier(cfg.Auth)
	if err != nil {
		logger.Fatal("failed to load assertion verifier", zap.Error(err))
	}
	gate := identity.NewGate(
		identity.NewPolicy(cfg.Auth.AllowedDomains, cfg.Auth.AdminUsernames),
		verifier,
		store.Users(),
		logger.Named("identity"),
	)

	mailer, err := notify.NewMailer(ctx, cfg.Notification, logger.Named("mail"))
	if err != nil {
		logger.Fatal("failed to init mailer", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewAsyncDispatcher(logger.Named("events"))
	notifier := notify.NewNotifier(mailer, cfg.Notification.AdminEmail, cfg.App.PublicURL)
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, notifier, metrics, logger.Named("notify")))

	requestService := service.NewRequestService(service.RequestDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger.Named("requests"),
	})
	authService := service.NewAuthService(gate, sessions, metrics, logger.Named("auth"))

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Auth:           handlers.NewAuthHandler(authService, cfg.App.Env == "production"),
		Requests:       handlers.NewRequestsHandler(requestService),
		AuthMiddleware: auth.NewMiddleware(sessions, logger.Named("auth")),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	dispatcher.Wait()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}

func newSessionStore(cfg config.AuthConfig, redis *persistence.Redis) session.Store {
	if cfg.SessionStore == config.SessionStoreRedis && redis != nil {
		return session.NewRedisStore(redis.Client, cfg.SessionTTL())
	}
	return session.NewJWTStore(cfg.SessionSecret, cfg.SessionTTL())
}

func newVerifier(cfg config.AuthConfig) (identity.AssertionVerifier, error) {
	if cfg.AssertionPublicKeyFile != "" {
		return identity.LoadRSAVerifier(cfg.AssertionPublicKeyFile, cfg.AssertionIssuer, cfg.AssertionAudience)
	}
	if cfg.AssertionSecret == "" {
		return nil, errors.New("AUTH_ASSERTION_SECRET or AUTH_ASSERTION_PUBLIC_KEY_FILE is required")
	}
	return identity.NewHMACVerifier(cfg.AssertionSecret, cfg.AssertionIssuer, cfg.AssertionAudience), nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
