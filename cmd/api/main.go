package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/auth-service/internal/api/http"
	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/geo"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/persistence"
	"github.com/spec-kit/auth-service/internal/repository"
	"github.com/spec-kit/auth-service/internal/secret"
	"github.com/spec-kit/auth-service/internal/service"
	"github.com/spec-kit/auth-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var (
		rdb         *persistence.Redis
		redisClient redis.UniversalClient
	)
	if cfg.Secret.Backend == config.SecretBackendRedis || cfg.Geo.Enabled {
		rdb = persistence.NewRedis(cfg.Redis, logger)
		defer rdb.Close()
		redisClient = rdb.Client
	}

	store, err := secret.OpenStore(cfg.Secret, redisClient)
	if err != nil {
		logger.Fatal("failed to open secret store", zap.Error(err))
	}

	scheduler := secret.NewScheduler(store, secret.SchedulerConfig{
		Interval: cfg.Secret.RotationInterval,
		Length:   cfg.Secret.Length,
	}, logger.Named("rotation"), metrics)
	if cfg.Secret.RotationEnabled {
		if err := scheduler.Start(ctx); err != nil {
			logger.Fatal("failed to start secret rotation", zap.Error(err))
		}
	} else if _, err := secret.Current(ctx, store); err != nil {
		logger.Fatal("signing secret unavailable; run the rotator first", zap.Error(err))
	}

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	attemptRepo := repository.NewLoginAttemptRepository(pool)

	dispatcher := events.NewInMemoryDispatcher(logger)
	var locator worker.Locator
	if cfg.Geo.Enabled {
		locator = geo.NewLocator(
			geo.NewRedisCache(redisClient, cfg.Geo.CacheTTL, logger),
			logger.Named("geo"),
			geo.NewIPAPIProvider(cfg.Geo.IPAPIURL, cfg.Geo.Timeout),
		)
	}
	recorder := worker.NewLoginRecorder(attemptRepo, locator, logger.Named("login-recorder"), 0)
	recorder.RegisterHandlers(dispatcher)
	recorder.Start(ctx)

	issuer := auth.NewIssuer(store, cfg.Auth.TokenTTL)
	verifier := auth.NewVerifier(store, metrics)
	guards := auth.NewGuards(verifier, auth.NewUserSubjects(userRepo))

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:   userRepo,
		Issuer:     issuer,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	adminService := service.NewAdminService(cfg.Auth, userRepo, attemptRepo)

	checks := []handlers.DependencyCheck{
		{Name: "postgres", Ping: pg.Ping},
		{Name: "signing_secret", Ping: func(ctx context.Context) error {
			_, err := secret.Current(ctx, store)
			return err
		}},
	}
	if rdb != nil {
		checks = append(checks, handlers.DependencyCheck{Name: "redis", Ping: rdb.Ping})
	}

	app := httptransport.NewApp(cfg.App)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks...),
		Auth:    handlers.NewAuthHandler(authService),
		Users:   handlers.NewUserHandler(authService),
		Admin:   handlers.NewAdminHandler(adminService),
		Guards:  guards,
		Metrics: metrics.Handler(),
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Error("fiber listen", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	scheduler.Wait()
	recorder.Wait()
}
