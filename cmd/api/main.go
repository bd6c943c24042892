// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/taskmanager/internal/admin"
	"github.com/carterperez-dev/taskmanager/internal/auth"
	"github.com/carterperez-dev/taskmanager/internal/comment"
	"github.com/carterperez-dev/taskmanager/internal/config"
	"github.com/carterperez-dev/taskmanager/internal/core"
	"github.com/carterperez-dev/taskmanager/internal/health"
	"github.com/carterperez-dev/taskmanager/internal/jobs"
	"github.com/carterperez-dev/taskmanager/internal/metrics"
	"github.com/carterperez-dev/taskmanager/internal/middleware"
	"github.com/carterperez-dev/taskmanager/internal/notify"
	"github.com/carterperez-dev/taskmanager/internal/policy"
	"github.com/carterperez-dev/taskmanager/internal/queue"
	"github.com/carterperez-dev/taskmanager/internal/server"
	"github.com/carterperez-dev/taskmanager/internal/task"
	"github.com/carterperez-dev/taskmanager/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := core.NewLogger(cfg.Log, cfg.App.Environment)
	slog.SetDefault(logger)
	core.SetExposeInternalErrors(cfg.IsDevelopment())

	logger.Info("starting api",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App, "api")
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized", "endpoint", cfg.Otel.Endpoint)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected", "pool_size", cfg.Redis.PoolSize)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.KeyID(),
	)

	broker := queue.NewRedisBroker(redis.Client, cfg.Jobs.KeyPrefix)
	enqueuer := queue.NewClient(broker)

	userSvc := user.NewService(user.NewRepository(db.DB))
	authSvc := auth.NewService(
		jwtManager,
		userSvc,
		auth.NewRedisBlacklist(redis.Client, cfg.Jobs.KeyPrefix),
	)

	// The api only enqueues notifications; the worker delivers them, so
	// this dispatcher has no sender.
	taskSvc := task.NewService(task.NewRepository(db.DB), userSvc, nil, logger)
	taskSvc.SetEventSink(notify.NewDispatcher(enqueuer, taskSvc, userSvc, nil, logger))

	commentSvc := comment.NewService(comment.NewRepository(db.DB), taskSvc)

	userHandler := user.NewHandler(userSvc)
	authHandler := auth.NewHandler(authSvc)
	taskHandler := task.NewHandler(taskSvc, jobs.NewExporter(enqueuer))
	commentHandler := comment.NewHandler(commentSvc)

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: db},
		health.Dependency{Name: "redis", Checker: redis},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		Health:     healthHandler,
		Queue:      broker,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	baseLimit := middleware.LimitFromConfig(cfg.RateLimit)

	router := srv.Router()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics)
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit:    middleware.RoleLimits(baseLimit)[policy.RoleAdmin],
			KeyFunc:  middleware.KeyByIP,
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)
	router.Handle("/metrics", metrics.Handler())
	router.Get("/.well-known/jwks.json", jwtManager.JWKSHandler())

	actorLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit:      baseLimit,
		RoleLimits: middleware.RoleLimits(baseLimit),
		KeyFunc:    middleware.KeyByActor,
		FailOpen:   true,
	})
	authenticate := middleware.Chain(authSvc, userSvc)
	protected := func(next http.Handler) http.Handler {
		return authenticate(actorLimiter.Handler(next))
	}

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, middleware.Authenticator(authSvc))
		userHandler.RegisterRoutes(r, protected)
		taskHandler.RegisterRoutes(r, protected, commentHandler.TaskRoutes())
		commentHandler.RegisterRoutes(r, protected)
		adminHandler.RegisterRoutes(r, protected, middleware.RequireAdmin)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("api stopped")
	return nil
}
