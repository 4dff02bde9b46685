package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"templeq/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the key is absent
var ErrCacheMiss = errors.New("cache miss")

// scanBatch is the COUNT hint used when walking keys for invalidation
const scanBatch = 100

// Service stores JSON encoded values in Redis
type Service interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Invalidate(ctx context.Context, pattern string) (int, error)
	Exists(ctx context.Context, key string) bool
	Ping(ctx context.Context) error
}

type service struct {
	client *redis.Client
}

func NewService(client *redis.Client) Service {
	return &service{client: client}
}

func (s *service) Get(ctx context.Context, key string, dest any) error {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("cache decode %s: %w", key, err)
	}
	return nil
}

func (s *service) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (s *service) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Invalidate deletes every key matching pattern and reports how many went.
// SCAN is used so a large keyspace never blocks the server. Keys are
// collected before any delete; deleting mid-scan can skip keys.
func (s *service) Invalidate(ctx context.Context, pattern string) (int, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("cache scan %s: %w", pattern, err)
	}

	removed := 0
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		if err := s.Delete(ctx, keys[start:end]...); err != nil {
			return removed, err
		}
		removed += end - start
	}
	return removed, nil
}

func (s *service) Exists(ctx context.Context, key string) bool {
	n, err := s.client.Exists(ctx, key).Result()
	return err == nil && n > 0
}

func (s *service) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Fetch returns the cached value at key, or calls load and caches its
// result. Redis failures degrade to load; only load errors are returned.
func Fetch[T any](ctx context.Context, s Service, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	err := s.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		logger.GetDefault().WarnContext(ctx, "cache read failed, loading from source", "key", key, "error", err)
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if err := s.Set(ctx, key, value, ttl); err != nil {
		logger.GetDefault().WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
	return value, nil
}
