// api/routes/router.go
package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"templeq/internal/bookings"
	"templeq/internal/cancellation"
	"templeq/internal/notifications"
	"templeq/internal/passes"
	"templeq/internal/payments"
	"templeq/internal/queue"
	"templeq/internal/shared/config"
	"templeq/internal/shared/database"
	"templeq/internal/temples"
	"templeq/pkg/cache"
	"templeq/pkg/clock"
	"templeq/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Router holds all route dependencies
type Router struct {
	config *config.Config
	db     *database.DB
	clock  clock.Clock
	logger *logger.Logger

	temples      temples.Store
	usedPasses   passes.UsedStore
	issuer       *passes.Issuer
	ledger       *bookings.Ledger
	cancellation cancellation.Service
	publisher    notifications.EventPublisher
	producer     *notifications.KafkaProducer
	manager      *queue.Manager
}

// NewRouter wires the services. Postgres, Redis and Kafka are each optional;
// without them the in-process stores and a direct publisher are used.
func NewRouter(cfg *config.Config, db *database.DB) *Router {
	r := &Router{
		config: cfg,
		db:     db,
		clock:  clock.Real(),
		logger: logger.GetDefault(),
	}
	r.buildServices(context.Background())
	return r
}

func (r *Router) buildServices(ctx context.Context) {
	loc := r.config.Queue.Location()
	pg := r.db.GetPostgreSQL()
	rdb := r.db.GetRedisClient()

	// Reference data
	if pg != nil {
		repo := temples.NewRepository(pg)
		r.temples = repo
		var cached *temples.CachedStore
		if rdb != nil {
			cached = temples.NewCachedStore(repo, cache.NewService(rdb))
			r.temples = cached
		}
		// Entries cached by an earlier run describe the old rows
		if r.seedTemples(ctx, repo) > 0 && cached != nil {
			if _, err := cached.Invalidate(ctx); err != nil {
				r.logger.Warn("Failed to invalidate temple cache after seeding", slog.Any("error", err))
			}
		}
	} else {
		r.temples = temples.DefaultCatalog()
	}

	// Passes and bookings
	var bookingStore bookings.Store
	if rdb != nil {
		r.usedPasses = passes.NewRedisUsedStore(rdb)
		bookingStore = bookings.NewRedisStore(rdb, r.config.Redis.BookingTTL)
	} else {
		r.usedPasses = passes.NewMemoryUsedStore()
		bookingStore = bookings.NewMemoryStore(r.clock)
	}
	r.issuer = passes.NewIssuer(r.usedPasses, r.clock, loc, passes.IssuerConfig{
		SigningSecret: r.config.Pass.SigningSecret,
		VerifyBaseURL: r.config.Pass.VerifyBaseURL,
		ValidFor:      r.config.Pass.ValidFor,
		UsedRetention: r.config.Pass.UsedRetention,
	})
	r.ledger = bookings.NewLedger(bookingStore, bookings.NewRandomAllocator(nil), r.clock, loc, r.issuer,
		bookings.WithGrace(r.config.Queue.BookingGrace))

	// Leave history and refunds
	if pg != nil {
		r.cancellation = cancellation.NewService(cancellation.NewRepository(pg))
	} else {
		r.cancellation = cancellation.NewService(cancellation.NewMemoryRepository())
	}

	// Lifecycle events
	r.publisher = notifications.NewDirectPublisher(r.cancellation)
	if r.config.Kafka.Enabled {
		producerCfg := notifications.DefaultKafkaProducerConfig()
		producerCfg.Brokers = r.config.Kafka.Brokers
		producerCfg.Topic = r.config.Kafka.Topic
		producer, err := notifications.NewKafkaProducer(producerCfg)
		if err != nil {
			r.logger.Warn("Kafka producer unavailable, delivering lifecycle events in process", slog.Any("error", err))
		} else {
			r.producer = producer
			r.publisher = producer
		}
	}

	simulator := payments.NewSimulator(payments.SimulatorConfig{
		Latency:     r.config.Queue.PaymentLatency,
		SuccessRate: r.config.Queue.PaymentSuccessRate,
	}, r.clock)

	r.manager = queue.NewManager(queue.Deps{
		Temples:        r.temples,
		Payments:       simulator,
		Ledger:         r.ledger,
		Passes:         r.issuer,
		Events:         r.publisher,
		Clock:          r.clock,
		RefreshLatency: r.config.Queue.RefreshLatency,
		Logger:         r.logger,
	}, queue.WithIdleTTL(r.config.Queue.SessionIdleTTL))
}

// seedTemples fills an empty temples table from the built-in catalog and
// returns how many temples it wrote
func (r *Router) seedTemples(ctx context.Context, repo temples.Repository) int {
	existing, err := repo.ListTemples(ctx)
	if err != nil {
		r.logger.Error("Failed to check temples table", slog.Any("error", err))
		return 0
	}
	if len(existing) > 0 {
		return 0
	}
	n, err := temples.Seed(ctx, repo, temples.DefaultCatalog())
	if err != nil {
		r.logger.Error("Failed to seed temples", slog.Any("error", err))
		return n
	}
	r.logger.Info("Seeded temples from built-in catalog", slog.Int("temples", n))
	return n
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	api := engine.Group(r.config.GetAPIBasePath())
	{
		temples.SetupTempleRoutes(api, temples.NewController(r.temples))
		queue.SetupQueueRoutes(api, queue.NewHandler(r.manager))
		passes.SetupPassRoutes(api, passes.NewController(r.issuer))
		cancellation.SetupCancellationRoutes(api, cancellation.NewController(r.cancellation))
	}
}

// Issuer returns the pass issuer, for the compaction job
func (r *Router) Issuer() *passes.Issuer {
	return r.issuer
}

// Sessions returns the queue session manager for the sweep job
func (r *Router) Sessions() *queue.Manager {
	return r.manager
}

// CancellationService returns the handler Kafka consumers feed
func (r *Router) CancellationService() cancellation.Service {
	return r.cancellation
}

// PreloadScripts loads the Redis Lua scripts when Redis is in use
func (r *Router) PreloadScripts(ctx context.Context) error {
	if store, ok := r.usedPasses.(*passes.RedisUsedStore); ok {
		return store.PreloadScripts(ctx)
	}
	return nil
}

// Close releases the Kafka producer if one was opened
func (r *Router) Close() error {
	if r.producer != nil {
		return r.producer.Close()
	}
	return nil
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"backends":  r.db.Backends(c.Request.Context()),
				"timestamp": time.Now(),
				"service":   "templeq-backend",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "templeq-backend",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"backends":    r.db.Backends(c.Request.Context()),
			"kafka":       r.producer != nil,
			"timestamp":   time.Now(),
		})
	})
}
