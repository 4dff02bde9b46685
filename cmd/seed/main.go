package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"templeq/internal/shared/config"
	"templeq/internal/shared/database"
	"templeq/internal/temples"
	"templeq/pkg/cache"

	"github.com/joho/godotenv"
)

type Seeder struct {
	db *database.DB
}

func main() {
	clean := flag.Bool("clean", false, "truncate leave history and refunds before seeding")
	flag.Parse()

	_ = godotenv.Load()
	fmt.Println("Starting templeq database seeder...")

	cfg := config.Load()
	cfg.Database.Enabled = true
	redisEnabled := cfg.Redis.Enabled
	cfg.Redis.Enabled = false

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if *clean {
		fmt.Println("Cleaning leave history...")
		if err := seeder.CleanDatabase(ctx); err != nil {
			log.Fatalf("Failed to clean database: %v", err)
		}
	}

	n, err := seeder.SeedTemples(ctx)
	if err != nil {
		log.Fatalf("Failed to seed temples: %v", err)
	}
	fmt.Printf("Seeded %d temples. Database is ready.\n", n)

	// The running servers read temples through Redis; drop what they cached
	if redisEnabled {
		removed, err := seeder.InvalidateCache(ctx, cfg)
		if err != nil {
			log.Printf("Warning: temple cache not invalidated: %v", err)
			return
		}
		fmt.Printf("Invalidated %d cached temple entries.\n", removed)
	}
}

// CleanDatabase truncates the leave history tables
func (s *Seeder) CleanDatabase(ctx context.Context) error {
	for _, table := range []string{"refunds", "queue_leave_records"} {
		if err := s.db.GetPostgreSQL().WithContext(ctx).Exec("TRUNCATE TABLE " + table).Error; err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// InvalidateCache connects to Redis and drops every cached temple entry
func (s *Seeder) InvalidateCache(ctx context.Context, cfg *config.Config) (int, error) {
	client, err := cache.Connect(ctx, cache.Config{
		Address:  cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return 0, err
	}
	defer client.Close()

	return temples.NewCachedStore(temples.NewRepository(s.db.GetPostgreSQL()), cache.NewService(client)).Invalidate(ctx)
}

// SeedTemples upserts the built-in catalog; re-running resets slot counts
func (s *Seeder) SeedTemples(ctx context.Context) (int, error) {
	return temples.Seed(ctx, temples.NewRepository(s.db.GetPostgreSQL()), temples.DefaultCatalog())
}
