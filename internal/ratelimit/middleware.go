package ratelimit

import (
	"log/slog"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/24bbnb21-oss/StaySmartAI/internal/errors"
)

// UploadRateLimitMiddleware limits scoring requests per client IP
func (rl *RateLimiter) UploadRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.AllowUpload(c.Request.Context(), ip)
		if err != nil {
			// a broken limiter must not take scoring down with it
			slog.Error("Rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitIPBlock()
				rl.metrics.IncrementRateLimitEndpoint(c.FullPath())
			}

			retry := strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds())))
			c.Header("Retry-After", retry)
			_ = c.Error(apperrors.NewRateLimitError(retry + "s"))
			c.Abort()
			return
		}

		c.Next()
	}
}
