package constants

import (
	"time"
)

// Redis Key Configuration
// This file centralizes all Redis keys and TTL values for the templeq application
// Pattern: templeq:{module}:{operation}:{identifier}

// ================== CACHE TTL DURATIONS ==================

// Static Data (Long TTL: rarely changes)
const (
	TTL_STATIC_LONG   = 24 * time.Hour // temple records
	TTL_STATIC_MEDIUM = 12 * time.Hour
)

// Dynamic Data (Short TTL: changes frequently)
const (
	TTL_DYNAMIC_SHORT = 5 * time.Minute  // slot availability
	TTL_DYNAMIC_QUICK = 30 * time.Second // live slot counts
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "templeq"
)

// ================== TEMPLES MODULE ==================

const (
	CACHE_KEY_TEMPLE_DETAIL = CACHE_PREFIX + ":temples:detail:" // + temple-id
	CACHE_KEY_TEMPLE_SLOTS  = CACHE_PREFIX + ":temples:slots:"  // + temple-id
)

const (
	TTL_TEMPLE_DETAIL = TTL_STATIC_LONG
	TTL_TEMPLE_SLOTS  = TTL_DYNAMIC_SHORT
)

// ================== BOOKINGS MODULE ==================

const (
	// Active booking per (device, temple); the suffix is the ledger key
	BOOKING_KEY_PREFIX = CACHE_PREFIX + ":bookings:" // + [device:<id>:]queue-<temple-id>
)

// ================== PASSES MODULE ==================

const (
	// Sorted set of used booking IDs scored by expiry (unix seconds)
	PASSES_USED_KEY = CACHE_PREFIX + ":passes:used"
)

// ================== RATE LIMIT MODULE ==================

const (
	RATELIMIT_KEY_PREFIX = CACHE_PREFIX + ":ratelimit:" // + ip:type
)

// ================== CACHE INVALIDATION PATTERNS ==================

const (
	PATTERN_INVALIDATE_TEMPLES_ALL = CACHE_PREFIX + ":temples:*"
)

// ================== HELPER FUNCTIONS ==================

func BuildTempleDetailKey(templeID string) string {
	return CACHE_KEY_TEMPLE_DETAIL + templeID
}

func BuildTempleSlotsKey(templeID string) string {
	return CACHE_KEY_TEMPLE_SLOTS + templeID
}

func BuildBookingKey(ledgerKey string) string {
	return BOOKING_KEY_PREFIX + ledgerKey
}

func BuildRateLimitKey(clientIP, limitType string) string {
	return RATELIMIT_KEY_PREFIX + clientIP + ":" + limitType
}
