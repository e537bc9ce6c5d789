package middleware

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/coopmart-api/internal/infrastructure/cache"
	"github.com/sangkips/coopmart-api/internal/presentation/http/dto/response"
	"go.uber.org/zap"
)

// RateLimiter applies per-caller limits backed by a LimitStore. Authenticated callers are
// keyed by user id, anonymous ones by client IP.
type RateLimiter struct {
	store cache.LimitStore
	log   *zap.Logger
}

// NewRateLimiter creates a rate limiter over store
func NewRateLimiter(store cache.LimitStore, log *zap.Logger) *RateLimiter {
	return &RateLimiter{store: store, log: log}
}

// Middleware returns a Gin middleware enforcing the limit
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if p, ok := GetPrincipal(c); ok {
			key = "user:" + p.UserID.String()
		}

		res, err := rl.store.Allow(c.Request.Context(), key)
		if err != nil {
			// fail open when counters are unavailable
			rl.log.Warn("rate limit store unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		if !res.Allowed {
			retry := int(math.Ceil(res.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(retry))
			response.TooManyRequests(c, "Rate limit exceeded. Please try again later.")
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Next()
	}
}
