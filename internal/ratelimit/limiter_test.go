package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/24bbnb21-oss/StaySmartAI/internal/config"
	apperrors "github.com/24bbnb21-oss/StaySmartAI/internal/errors"
	"github.com/24bbnb21-oss/StaySmartAI/internal/monitoring"
)

func newFallbackLimiter(t *testing.T, cfg Config) (*RateLimiter, *monitoring.Metrics) {
	t.Helper()
	metrics := monitoring.NewMetrics()
	limiter := NewRateLimiter(&RedisClient{enabled: false}, cfg, metrics)
	t.Cleanup(limiter.Close)
	return limiter, metrics
}

func TestRateLimiterFallbackMode(t *testing.T) {
	limiter, metrics := newFallbackLimiter(t, Config{UploadsPerMinute: 10, BurstMultiplier: 1})

	ctx := context.Background()
	key := "test:ip:10.0.0.1"
	rateLimit := Rate{Limit: 5, Period: time.Minute}

	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(ctx, key, rateLimit)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "Request %d should be allowed", i+1)
		assert.Equal(t, 5, result.Limit)
		assert.Equal(t, 4-i, result.Remaining)
	}

	result, err := limiter.Allow(ctx, key, rateLimit)
	require.NoError(t, err)
	assert.False(t, result.Allowed, "6th request should be blocked")
	assert.Greater(t, result.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, result.RetryAfter, 12*time.Second)
	assert.Equal(t, int64(6), metrics.GetRateLimitStats()["fallback_count"])
}

func TestRateLimiterBurstCapacity(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, Config{UploadsPerMinute: 10, BurstMultiplier: 2})

	ctx := context.Background()
	rateLimit := Rate{Limit: 5, Period: time.Minute}

	allowedCount := 0
	for i := 0; i < 15; i++ {
		result, err := limiter.Allow(ctx, "test:burst", rateLimit)
		require.NoError(t, err)
		if result.Allowed {
			allowedCount++
		}
	}

	assert.Equal(t, 10, allowedCount)
}

func TestRateLimiterMinimumBurst(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, Config{UploadsPerMinute: 1, BurstMultiplier: 0.1})

	result, err := limiter.Allow(context.Background(), "test:min", Rate{Limit: 1, Period: time.Minute})
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRateLimiterMultipleKeys(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, Config{UploadsPerMinute: 3, BurstMultiplier: 1})

	ctx := context.Background()
	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		for i := 0; i < 3; i++ {
			result, err := limiter.AllowUpload(ctx, ip)
			require.NoError(t, err)
			assert.True(t, result.Allowed, "IP %s request %d should be allowed", ip, i+1)
		}

		result, err := limiter.AllowUpload(ctx, ip)
		require.NoError(t, err)
		assert.False(t, result.Allowed, "IP %s 4th request should be blocked", ip)
	}
}

func TestRateLimiterInvalidRate(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())

	_, err := limiter.Allow(context.Background(), "k", Rate{Limit: 0, Period: time.Minute})
	assert.Error(t, err)
	_, err = limiter.Allow(context.Background(), "k", Rate{Limit: 1})
	assert.Error(t, err)
}

func TestRateLimiterReset(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, Config{UploadsPerMinute: 1, BurstMultiplier: 1})

	ctx := context.Background()
	r := Rate{Limit: 1, Period: time.Minute}

	first, err := limiter.Allow(ctx, "k", r)
	require.NoError(t, err)
	assert.True(t, first.Allowed)

	second, err := limiter.Allow(ctx, "k", r)
	require.NoError(t, err)
	assert.False(t, second.Allowed)

	require.NoError(t, limiter.Reset(ctx, "k"))

	third, err := limiter.Allow(ctx, "k", r)
	require.NoError(t, err)
	assert.True(t, third.Allowed)
}

func TestRateLimiterRedisErrorFallsBack(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	metrics := monitoring.NewMetrics()
	limiter := NewRateLimiter(NewRedisClientFrom(client), Config{UploadsPerMinute: 2, BurstMultiplier: 1}, metrics)
	defer limiter.Close()

	result, err := limiter.AllowUpload(context.Background(), "10.0.0.9")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	stats := metrics.GetRateLimitStats()
	assert.Equal(t, int64(1), stats["redis_errors"])
	assert.Equal(t, int64(1), stats["fallback_count"])
}

func TestRateLimiterStats(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())

	for i := 0; i < 3; i++ {
		_, _ = limiter.AllowUpload(context.Background(), fmt.Sprintf("10.0.0.%d", i))
	}

	stats := limiter.GetStats()
	assert.False(t, stats["redis_enabled"].(bool))
	assert.Equal(t, 3, stats["fallback_limiters"])
	assert.Equal(t, 30, stats["uploads_per_minute"])
}

func TestRateLimiterEvictIdle(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())

	for i := 0; i < 20; i++ {
		_, _ = limiter.AllowUpload(context.Background(), fmt.Sprintf("10.0.1.%d", i))
	}

	assert.Equal(t, 0, limiter.evictIdle(time.Now().Add(-time.Hour)))
	assert.Equal(t, 20, limiter.evictIdle(time.Now().Add(time.Second)))
	assert.Equal(t, 0, limiter.GetStats()["fallback_limiters"])
}

func TestRateLimiterConcurrency(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, Config{UploadsPerMinute: 100, BurstMultiplier: 1})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				result, err := limiter.AllowUpload(context.Background(), "10.0.0.1")
				assert.NoError(t, err)
				if result.Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, allowed, 100)
	assert.LessOrEqual(t, allowed, 102)
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.RateLimitConfig{Enabled: true, UploadsPerMinute: 12, BurstMultiplier: 2})
	assert.Equal(t, 12, cfg.UploadsPerMinute)
	assert.Equal(t, 2.0, cfg.BurstMultiplier)

	assert.Equal(t, DefaultConfig(), ConfigFrom(config.RateLimitConfig{}))
}

func TestUploadRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter, metrics := newFallbackLimiter(t, Config{UploadsPerMinute: 2, BurstMultiplier: 1})

	router := gin.New()
	router.Use(apperrors.ErrorHandler())
	router.POST("/api/v1/analyze", limiter.UploadRateLimitMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/api/v1/limits", limiter.HandleRateLimitStatus())

	send := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil)
		req.RemoteAddr = "192.0.2.10:5555"
		router.ServeHTTP(w, req)
		return w
	}

	w := send()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))

	assert.Equal(t, http.StatusOK, send().Code)

	w = send()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["code"])
	assert.Equal(t, "rate_limit", body["category"])

	assert.Equal(t, int64(1), metrics.GetRateLimitStats()["ip_blocks"])

	status := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/limits", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	router.ServeHTTP(status, req)
	require.Equal(t, http.StatusOK, status.Code)

	var st map[string]interface{}
	require.NoError(t, json.Unmarshal(status.Body.Bytes(), &st))
	assert.Equal(t, "memory", st["backend"])
	assert.Equal(t, float64(2), st["limit"])
	assert.Equal(t, float64(0), st["remaining"])
}
