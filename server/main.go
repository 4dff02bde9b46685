package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"templeq/api/routes"
	"templeq/internal/notifications"
	"templeq/internal/passes"
	"templeq/internal/queue"
	"templeq/internal/shared/config"
	"templeq/internal/shared/database"
	"templeq/internal/shared/middleware"
	"templeq/pkg/logger"
	"templeq/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	appLogger := logger.GetDefault()

	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// Re-create the logger now that LOG_LEVEL and the gin mode are known
	appLogger = logger.NewWithWriter(os.Stdout, cfg.LogLevel)
	logger.SetDefault(appLogger)
	appLogger.Info("Starting templeq",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("commit", GitCommit),
	)

	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("Failed to connect to storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	appRouter := routes.NewRouter(cfg, db)
	defer func() {
		if err := appRouter.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", slog.Any("error", err))
		}
	}()

	// Lua scripts are loaded on first use if this fails
	if db.Redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := appRouter.PreloadScripts(ctx); err != nil {
			appLogger.Error("Failed to preload Redis Lua scripts", slog.Any("error", err))
		} else {
			appLogger.Info("Redis Lua scripts preloaded for used pass tracking")
		}
		cancel()
	}

	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled && db.Redis != nil {
		rateLimiter = ratelimit.NewRateLimiter(db.GetRedisClient(), &cfg.RateLimit)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := rateLimiter.PreloadScripts(ctx); err != nil {
			appLogger.Error("Failed to preload rate limit script", slog.Any("error", err))
		}
		cancel()
		appLogger.Info("Rate limiter initialized",
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	defer backgroundCancel()

	compaction := passes.NewCompactionJob(appRouter.Issuer(), cfg.Pass.CompactionInterval)
	compaction.Start(backgroundCtx)
	defer compaction.Stop()

	sweep := queue.NewSweepJob(appRouter.Sessions(), cfg.Queue.SessionSweepInterval)
	sweep.Start(backgroundCtx)
	defer sweep.Stop()

	// Refund workers consume the lifecycle topic when Kafka is on
	if cfg.Kafka.Enabled {
		consumerCfg := notifications.DefaultConsumerConfig()
		consumerCfg.Brokers = cfg.Kafka.Brokers
		consumerCfg.Topics = []string{cfg.Kafka.Topic}
		consumerCfg.GroupID = cfg.Kafka.ConsumerGroupID

		consumer, err := notifications.NewKafkaConsumer(consumerCfg, appRouter.CancellationService())
		if err != nil {
			appLogger.Error("Failed to start lifecycle consumer", slog.Any("error", err))
		} else {
			consumer.Start(backgroundCtx, cfg.Kafka.NumWorkers)
			defer func() {
				appLogger.Info("Stopping lifecycle consumer...")
				if err := consumer.Stop(); err != nil {
					appLogger.Error("Error stopping lifecycle consumer", slog.Any("error", err))
				}
			}()
		}
	}

	router := setupRouter(cfg, appRouter, rateLimiter)

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("api_base", fmt.Sprintf("http://localhost:%s%s", cfg.Port, cfg.GetAPIBasePath())),
			slog.Bool("postgres", db.PostgreSQL != nil),
			slog.Bool("redis", db.Redis != nil),
			slog.Bool("kafka", cfg.Kafka.Enabled),
			slog.Bool("rate_limiting", rateLimiter != nil),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

func setupRouter(cfg *config.Config, appRouter *routes.Router, rateLimiter *ratelimit.RateLimiter) *gin.Engine {
	engine := gin.New()
	appLogger := logger.GetDefault()

	// Client IPs feed the rate limiter, so forwarded headers count only from known proxies
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		appLogger.Warn("Invalid trusted proxy list, forwarded headers ignored", slog.Any("error", err))
		_ = engine.SetTrustedProxies(nil)
	}

	engine.Use(middleware.RequestID(), RequestLoggerMiddleware(appLogger), gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", middleware.DeviceIDHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
	}

	appRouter.SetupRoutes(engine)
	return engine
}

func RequestLoggerMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		reqLog := l.WithRequestID(middleware.GetRequestID(c))
		if deviceID := middleware.GetDeviceID(c); deviceID != "" {
			reqLog = reqLog.WithDevice(deviceID)
		}
		if err := c.Errors.Last(); err != nil {
			reqLog.LogHTTPError(c, err, c.Writer.Status())
		}
		reqLog.LogHTTPRequest(c, time.Since(start))
	}
}
