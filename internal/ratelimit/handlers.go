package ratelimit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HandleRateLimitStatus reports the caller's remaining upload budget without consuming it
func (rl *RateLimiter) HandleRateLimitStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		r := rl.UploadRate()

		status := gin.H{
			"ip":        ip,
			"limit":     r.Limit,
			"period":    r.Period.String(),
			"backend":   "memory",
			"timestamp": time.Now().Format(time.RFC3339),
		}
		if rl.redisClient.IsEnabled() {
			status["backend"] = "redis"
		}

		if remaining, ok := rl.peekFallback(keyPrefix + "upload:" + ip); ok {
			status["remaining"] = remaining
		}

		c.JSON(http.StatusOK, status)
	}
}

// peekFallback returns the tokens left in an in-memory bucket, if one exists
func (rl *RateLimiter) peekFallback(key string) (int, bool) {
	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	b, ok := rl.fallback[key]
	if !ok {
		return 0, false
	}
	remaining := int(b.limiter.TokensAt(time.Now()))
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}
