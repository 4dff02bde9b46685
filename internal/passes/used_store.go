package passes

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"templeq/internal/shared/constants"

	"github.com/redis/go-redis/v9"
)

// UsedStore records consumed booking ids. Entries carry an expiry and are
// dropped by Compact once it passes.
type UsedStore interface {
	// MarkUsed reports true only for the call that first marked the id
	MarkUsed(ctx context.Context, bookingID string, expiresAt time.Time) (bool, error)
	IsUsed(ctx context.Context, bookingID string) (bool, error)
	// Compact removes entries that expired at or before now
	Compact(ctx context.Context, now time.Time) (int, error)
}

// MemoryUsedStore is a process-local used set
type MemoryUsedStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewMemoryUsedStore() *MemoryUsedStore {
	return &MemoryUsedStore{entries: make(map[string]time.Time)}
}

func (s *MemoryUsedStore) MarkUsed(ctx context.Context, bookingID string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[bookingID]; ok {
		return false, nil
	}
	s.entries[bookingID] = expiresAt
	return true, nil
}

func (s *MemoryUsedStore) IsUsed(ctx context.Context, bookingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[bookingID]
	return ok, nil
}

func (s *MemoryUsedStore) Compact(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, expiresAt := range s.entries {
		if !expiresAt.After(now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Lua script for mark-if-absent on the used set
const luaMarkUsed = `
-- KEYS[1] = used set
-- ARGV[1] = booking_id
-- ARGV[2] = expires_at (unix seconds)

if redis.call("ZSCORE", KEYS[1], ARGV[1]) then
    return 0
end
redis.call("ZADD", KEYS[1], ARGV[2], ARGV[1])
return 1
`

var markUsedScript = redis.NewScript(luaMarkUsed)

// RedisUsedStore keeps used ids in a sorted set scored by expiry
type RedisUsedStore struct {
	client *redis.Client
	key    string
}

func NewRedisUsedStore(client *redis.Client) *RedisUsedStore {
	return &RedisUsedStore{client: client, key: constants.PASSES_USED_KEY}
}

// PreloadScripts loads the Lua script so later calls go through EVALSHA
func (s *RedisUsedStore) PreloadScripts(ctx context.Context) error {
	if err := markUsedScript.Load(ctx, s.client).Err(); err != nil {
		return fmt.Errorf("failed to preload mark-used script: %w", err)
	}
	return nil
}

func (s *RedisUsedStore) MarkUsed(ctx context.Context, bookingID string, expiresAt time.Time) (bool, error) {
	// Run tries EVALSHA first and falls back to EVAL
	result, err := markUsedScript.Run(ctx, s.client, []string{s.key}, bookingID, expiresAt.Unix()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to mark pass used: %w", err)
	}
	return result == 1, nil
}

func (s *RedisUsedStore) IsUsed(ctx context.Context, bookingID string) (bool, error) {
	err := s.client.ZScore(ctx, s.key, bookingID).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check used pass: %w", err)
	}
	return true, nil
}

func (s *RedisUsedStore) Compact(ctx context.Context, now time.Time) (int, error) {
	removed, err := s.client.ZRemRangeByScore(ctx, s.key, "-inf", strconv.FormatInt(now.Unix(), 10)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to compact used passes: %w", err)
	}
	return int(removed), nil
}
