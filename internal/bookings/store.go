package bookings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"templeq/internal/shared/constants"
	"templeq/pkg/clock"

	"github.com/redis/go-redis/v9"
)

// Store is the key-value persistence the ledger writes serialized bookings to
type Store interface {
	// Get returns found=false with a nil error when the key is absent
	Get(ctx context.Context, key string) (data []byte, found bool, err error)
	// Put stores data; a positive ttl makes the key vanish after that long
	Put(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	data     []byte
	deadline time.Time
}

// MemoryStore keeps bookings in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string]memoryEntry
	clock clock.Clock
}

// NewMemoryStore creates an in-memory store. clk times out entries put
// with a ttl; nil means the real clock.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.Real()
	}
	return &MemoryStore{data: make(map[string]memoryEntry), clock: clk}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok || (!e.deadline.IsZero() && !s.clock.Now().Before(e.deadline)) {
		return nil, false, nil
	}
	return append([]byte(nil), e.data...), true, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memoryEntry{data: append([]byte(nil), data...)}
	if ttl > 0 {
		e.deadline = s.clock.Now().Add(ttl)
	}
	s.data[key] = e
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// RedisStore keeps bookings under the templeq:bookings: prefix
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. ttl applies to puts that carry
// none of their own; 0 keeps such keys forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, constants.BuildBookingKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("booking get error: %w", err)
	}
	return data, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}
	if err := s.client.Set(ctx, constants.BuildBookingKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("booking set error: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, constants.BuildBookingKey(key)).Err(); err != nil {
		return fmt.Errorf("booking delete error: %w", err)
	}
	return nil
}
