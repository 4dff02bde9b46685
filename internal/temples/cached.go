package temples

import (
	"context"
	"time"

	"templeq/internal/shared/constants"
	"templeq/pkg/cache"
)

// CachedStore is a read-through cache in front of another Store
type CachedStore struct {
	next     Store
	cache    cache.Service
	slotsTTL time.Duration
}

// NewCachedStore wraps next with the Redis cache service
func NewCachedStore(next Store, cacheService cache.Service) *CachedStore {
	return &CachedStore{
		next:     next,
		cache:    cacheService,
		slotsTTL: constants.TTL_TEMPLE_SLOTS,
	}
}

func (s *CachedStore) ListTemples(ctx context.Context) ([]Temple, error) {
	// Listing is cheap and rarely hit; go straight to the source
	return s.next.ListTemples(ctx)
}

func (s *CachedStore) GetTemple(ctx context.Context, id string) (*Temple, error) {
	return cache.Fetch(ctx, s.cache, constants.BuildTempleDetailKey(id), constants.TTL_TEMPLE_DETAIL,
		func(ctx context.Context) (*Temple, error) { return s.next.GetTemple(ctx, id) })
}

func (s *CachedStore) GetSlots(ctx context.Context, templeID string) ([]Slot, error) {
	return cache.Fetch(ctx, s.cache, constants.BuildTempleSlotsKey(templeID), s.slotsTTL,
		func(ctx context.Context) ([]Slot, error) { return s.next.GetSlots(ctx, templeID) })
}

// Invalidate drops every cached temple entry and reports how many went.
// Call it after writing reference data behind the cache.
func (s *CachedStore) Invalidate(ctx context.Context) (int, error) {
	return s.cache.Invalidate(ctx, constants.PATTERN_INVALIDATE_TEMPLES_ALL)
}
