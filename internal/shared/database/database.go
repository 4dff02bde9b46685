package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"templeq/internal/shared/config"
	"templeq/pkg/cache"
	applogger "templeq/pkg/logger"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds database connections. Either may be nil when disabled, in which
// case callers fall back to in-process stores.
type DB struct {
	PostgreSQL *gorm.DB
	Redis      *redis.Client
}

// InitDB opens the enabled connections and runs migrations
func InitDB(cfg *config.Config) (*DB, error) {
	log := applogger.GetDefault()
	db := &DB{}

	if cfg.Database.Enabled {
		pg, err := initPostgreSQL(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		if err := Migrate(pg); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		if err := MigrateConstraints(pg); err != nil {
			log.Warn("Failed to add indexes", slog.Any("error", err))
		}
		db.PostgreSQL = pg
		log.Info("PostgreSQL connected successfully")
	}

	if cfg.Redis.Enabled {
		rdb, err := cache.Connect(context.Background(), cache.Config{
			Address:  cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		db.Redis = rdb
		log.Info("Redis connected successfully")
	}

	return db, nil
}

// initPostgreSQL initializes PostgreSQL connection with GORM
func initPostgreSQL(cfg *config.Config) (*gorm.DB, error) {
	var gormLogger logger.Interface
	if cfg.IsDevelopment() {
		gormLogger = logger.Default.LogMode(logger.Info)
	} else {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	gormConfig := &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		PrepareStmt:                              true,
		DisableForeignKeyConstraintWhenMigrating: true,
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Close closes all database connections
func (db *DB) Close() error {
	var errs []error

	if db.PostgreSQL != nil {
		if sqlDB, err := db.PostgreSQL.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close PostgreSQL: %w", err))
			}
		}
	}

	if db.Redis != nil {
		if err := db.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	return errors.Join(errs...)
}

const (
	BackendDisabled = "disabled"
	BackendUp       = "up"
)

// Backends reports each optional backend as disabled, up, or down with the
// ping error
func (db *DB) Backends(ctx context.Context) map[string]string {
	status := map[string]string{"postgres": BackendDisabled, "redis": BackendDisabled}
	if db.PostgreSQL != nil {
		status["postgres"] = probe(db.pingPostgres(ctx))
	}
	if db.Redis != nil {
		status["redis"] = probe(db.Redis.Ping(ctx).Err())
	}
	return status
}

// HealthCheck returns the first failing backend, or nil
func (db *DB) HealthCheck(ctx context.Context) error {
	if db.PostgreSQL != nil {
		if err := db.pingPostgres(ctx); err != nil {
			return fmt.Errorf("PostgreSQL health check failed: %w", err)
		}
	}
	if db.Redis != nil {
		if err := db.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
	}
	return nil
}

func (db *DB) pingPostgres(ctx context.Context) error {
	sqlDB, err := db.PostgreSQL.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func probe(err error) string {
	if err != nil {
		return "down: " + err.Error()
	}
	return BackendUp
}

// GetRedisClient returns the Redis client, or nil when Redis is disabled
func (db *DB) GetRedisClient() *redis.Client {
	return db.Redis
}

// GetPostgreSQL returns the PostgreSQL GORM instance, or nil when disabled
func (db *DB) GetPostgreSQL() *gorm.DB {
	return db.PostgreSQL
}
