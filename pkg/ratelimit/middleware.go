package ratelimit

import (
	"net/http"
	"strconv"
	"strings"

	"templeq/internal/shared/middleware"
	"templeq/internal/shared/utils/response"
	"templeq/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Middleware rejects requests over the route's limit with 429
func Middleware(rateLimiter *RateLimiter) gin.HandlerFunc {
	log := logger.GetDefault()
	return func(c *gin.Context) {
		limitType := getRateLimitType(c.FullPath())
		client := clientFor(c, limitType)

		result, err := rateLimiter.IsAllowed(c.Request.Context(), client, limitType)
		if err != nil {
			// Redis trouble should not take the queue down
			log.ErrorWithContext(c.Request.Context(), "Rate limit check failed", err, map[string]interface{}{
				"ip":   client.IP,
				"type": string(limitType),
			})
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime, 10))

		if !result.Allowed {
			log.LogRateLimitExceeded(c.Request.Context(), client.IP, c.FullPath())
			response.AbortJSON(c, http.StatusTooManyRequests, "Rate limit exceeded", map[string]any{
				"limit":      result.Limit,
				"reset_time": result.ResetTime,
			})
			return
		}

		c.Next()
	}
}

func getRateLimitType(path string) RateLimitType {
	switch {
	case strings.HasPrefix(path, "/health"),
		strings.HasPrefix(path, "/ping"),
		strings.HasPrefix(path, "/status"):
		return RateLimitTypeHealth

	case strings.HasSuffix(path, "/queue/pay"),
		strings.HasSuffix(path, "/queue/pay/retry"):
		return RateLimitTypePayment

	case strings.Contains(path, "/passes/scan"):
		return RateLimitTypeScan

	case strings.Contains(path, "/queue"),
		strings.Contains(path, "/refunds"):
		return RateLimitTypeQueue

	case strings.Contains(path, "/temples"):
		return RateLimitTypePublic

	default:
		return RateLimitTypeDefault
	}
}

// clientFor keys session traffic by device when the header carries a valid
// id. Everything else is keyed by the IP gin resolves through trusted proxies.
func clientFor(c *gin.Context, limitType RateLimitType) Client {
	client := Client{IP: c.ClientIP()}
	if limitType != RateLimitTypeQueue && limitType != RateLimitTypePayment {
		return client
	}
	if id, err := uuid.Parse(strings.TrimSpace(c.GetHeader(middleware.DeviceIDHeader))); err == nil {
		client.DeviceID = id.String()
	}
	return client
}
