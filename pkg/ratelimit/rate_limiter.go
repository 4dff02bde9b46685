package ratelimit

import (
	"context"
	"fmt"
	"slices"
	"time"

	"templeq/internal/shared/config"
	"templeq/internal/shared/constants"

	"github.com/redis/go-redis/v9"
)

type RateLimitType string

const (
	RateLimitTypeDefault RateLimitType = "default"
	RateLimitTypePublic  RateLimitType = "public"
	RateLimitTypeQueue   RateLimitType = "queue"
	RateLimitTypePayment RateLimitType = "payment"
	RateLimitTypeScan    RateLimitType = "scan"
	RateLimitTypeHealth  RateLimitType = "health"
)

// Result represents rate limit check result
type Result struct {
	Allowed   bool  `json:"allowed"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"reset_time"`
}

// Client identifies who a request is counted against. Requests carrying a
// device id are counted per device so visitors behind one NAT do not share
// a window.
type Client struct {
	IP       string
	DeviceID string
}

func (c Client) subject() string {
	if c.DeviceID != "" {
		return "device:" + c.DeviceID
	}
	return c.IP
}

// Sliding window over a sorted set scored by request time in microseconds.
// Members are unique per request so bursts within one tick all count.
const luaSlidingWindow = `
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local window_seconds = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

local current_count = redis.call('ZCARD', key)
if current_count >= limit then
	redis.call('EXPIRE', key, window_seconds)
	return {current_count + 1, 0}
end

redis.call('ZADD', key, now, member)
redis.call('EXPIRE', key, window_seconds)

return {current_count + 1, limit - current_count - 1}
`

var slidingWindowScript = redis.NewScript(luaSlidingWindow)

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	client *redis.Client
	config *config.RateLimitConfig
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client, cfg *config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: cfg,
		now:    time.Now,
	}
}

// PreloadScripts loads the window script so requests hit EVALSHA
func (r *RateLimiter) PreloadScripts(ctx context.Context) error {
	return slidingWindowScript.Load(ctx, r.client).Err()
}

// IsAllowed counts the request against the client's window for limitType
func (r *RateLimiter) IsAllowed(ctx context.Context, client Client, limitType RateLimitType) (*Result, error) {
	limit := r.getLimit(limitType)
	now := r.now()

	if !r.config.Enabled || r.isWhitelisted(client.IP) {
		return &Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit,
			ResetTime: now.Add(r.config.WindowDuration).Unix(),
		}, nil
	}

	key := constants.BuildRateLimitKey(client.subject(), string(limitType))
	return r.checkLimit(ctx, key, limit, now)
}

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, now time.Time) (*Result, error) {
	windowStart := now.Add(-r.config.WindowDuration)
	member := fmt.Sprintf("%d", now.UnixNano())

	values, err := slidingWindowScript.Run(ctx, r.client, []string{key},
		windowStart.UnixMicro(),
		now.UnixMicro(),
		limit,
		int(r.config.WindowDuration.Seconds()),
		member,
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected rate limit response %v", values)
	}

	currentCount := int(values[0])
	return &Result{
		Allowed:   currentCount <= limit,
		Limit:     limit,
		Remaining: int(values[1]),
		ResetTime: now.Add(r.config.WindowDuration).Unix(),
	}, nil
}

func (r *RateLimiter) getLimit(limitType RateLimitType) int {
	switch limitType {
	case RateLimitTypePublic:
		return r.config.PublicRequests
	case RateLimitTypeQueue:
		return r.config.QueueRequests
	case RateLimitTypePayment:
		return r.config.PaymentRequests
	case RateLimitTypeScan:
		return r.config.ScanRequests
	case RateLimitTypeHealth:
		return r.config.HealthRequests
	default:
		return r.config.DefaultRequests
	}
}

func (r *RateLimiter) isWhitelisted(ip string) bool {
	return slices.Contains(r.config.WhitelistedIPs, ip)
}
