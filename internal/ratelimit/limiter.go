package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/24bbnb21-oss/StaySmartAI/internal/config"
	"github.com/24bbnb21-oss/StaySmartAI/internal/monitoring"
)

const keyPrefix = "staysmart:ratelimit:"

// Config holds rate limiter configuration
type Config struct {
	UploadsPerMinute int           // analyze/export requests per client IP per minute
	BurstMultiplier  float64       // in-memory burst = limit * multiplier
	CleanupInterval  time.Duration // how often idle fallback buckets are dropped
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		UploadsPerMinute: 30,
		BurstMultiplier:  1.5,
		CleanupInterval:  time.Hour,
	}
}

// ConfigFrom maps the service configuration onto the limiter
func ConfigFrom(cfg config.RateLimitConfig) Config {
	out := DefaultConfig()
	if cfg.UploadsPerMinute > 0 {
		out.UploadsPerMinute = cfg.UploadsPerMinute
	}
	if cfg.BurstMultiplier > 0 {
		out.BurstMultiplier = cfg.BurstMultiplier
	}
	return out
}

// Rate is a request budget over a period
type Rate struct {
	Limit  int
	Period time.Duration
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter provides distributed rate limiting with Redis and in-memory fallback
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient
	config       Config
	metrics      *monitoring.Metrics

	fallback      map[string]*bucket
	fallbackMutex sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a new rate limiter with Redis and in-memory fallback
func NewRateLimiter(redisClient *RedisClient, cfg Config, metrics *monitoring.Metrics) *RateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}

	rl := &RateLimiter{
		redisClient: redisClient,
		config:      cfg,
		metrics:     metrics,
		fallback:    make(map[string]*bucket),
		stop:        make(chan struct{}),
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Warn("Redis unavailable, using in-memory rate limiting only")
	}

	go rl.cleanupLoop()

	return rl
}

// UploadRate is the per-IP budget for scoring requests
func (rl *RateLimiter) UploadRate() Rate {
	return Rate{Limit: rl.config.UploadsPerMinute, Period: time.Minute}
}

// AllowUpload checks the per-IP upload budget
func (rl *RateLimiter) AllowUpload(ctx context.Context, ip string) (*Result, error) {
	return rl.Allow(ctx, keyPrefix+"upload:"+ip, rl.UploadRate())
}

// Allow consumes one request from key's budget, using Redis when healthy
func (rl *RateLimiter) Allow(ctx context.Context, key string, r Rate) (*Result, error) {
	if r.Limit <= 0 || r.Period <= 0 {
		return nil, fmt.Errorf("invalid rate %d/%s", r.Limit, r.Period)
	}

	if rl.redisLimiter != nil {
		result, err := rl.allowRedis(ctx, key, r)
		if err == nil {
			return result, nil
		}
		slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
		if rl.metrics != nil {
			rl.metrics.IncrementRateLimitRedisError()
		}
	}

	if rl.metrics != nil {
		rl.metrics.IncrementRateLimitFallback()
	}
	return rl.allowFallback(key, r, time.Now()), nil
}

// allowRedis performs rate limiting using the Redis GCRA sliding window
func (rl *RateLimiter) allowRedis(ctx context.Context, key string, r Rate) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   r.Limit,
		Burst:  r.Limit,
		Period: r.Period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	result := &Result{
		Allowed:   res.Allowed > 0,
		Limit:     res.Limit.Rate,
		Remaining: res.Remaining,
		ResetAt:   time.Now().Add(res.ResetAfter),
	}
	if !result.Allowed {
		result.RetryAfter = res.RetryAfter
	}
	return result, nil
}

// allowFallback performs rate limiting using an in-memory token bucket
func (rl *RateLimiter) allowFallback(key string, r Rate, now time.Time) *Result {
	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	b, ok := rl.fallback[key]
	if !ok {
		burst := int(float64(r.Limit) * rl.config.BurstMultiplier)
		if burst < 1 {
			burst = 1
		}
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(float64(r.Limit)/r.Period.Seconds()), burst)}
		rl.fallback[key] = b
	}
	b.lastSeen = now

	result := &Result{Limit: r.Limit}
	reservation := b.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	if delay > 0 {
		reservation.CancelAt(now)
		result.RetryAfter = delay
		result.ResetAt = now.Add(delay)
		return result
	}

	result.Allowed = true
	remaining := int(b.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	result.Remaining = remaining
	missing := float64(b.limiter.Burst()) - b.limiter.TokensAt(now)
	result.ResetAt = now.Add(time.Duration(missing / float64(b.limiter.Limit()) * float64(time.Second)))
	return result
}

// Reset clears the budget for key
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	rl.fallbackMutex.Lock()
	delete(rl.fallback, key)
	rl.fallbackMutex.Unlock()

	if rl.redisLimiter != nil {
		return rl.redisLimiter.Reset(ctx, key)
	}
	return nil
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.evictIdle(now.Add(-rl.config.CleanupInterval))
		}
	}
}

// evictIdle drops buckets untouched since cutoff
func (rl *RateLimiter) evictIdle(cutoff time.Time) int {
	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	n := 0
	for key, b := range rl.fallback {
		if b.lastSeen.Before(cutoff) {
			delete(rl.fallback, key)
			n++
		}
	}
	if n > 0 {
		slog.Info("Cleaned up idle fallback rate limiters", "count", n)
	}
	return n
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.fallbackMutex.Lock()
	fallbackCount := len(rl.fallback)
	rl.fallbackMutex.Unlock()

	stats := map[string]interface{}{
		"redis_enabled":      rl.redisClient.IsEnabled(),
		"fallback_limiters":  fallbackCount,
		"uploads_per_minute": rl.config.UploadsPerMinute,
	}

	if rl.redisClient.IsEnabled() {
		stats["redis_pool"] = rl.redisClient.GetPoolStats()
	}

	return stats
}

// RedisEnabled reports whether checks go to Redis
func (rl *RateLimiter) RedisEnabled() bool {
	return rl.redisLimiter != nil
}

// HealthCheck pings Redis when it backs the limiter
func (rl *RateLimiter) HealthCheck(ctx context.Context) error {
	if rl.redisLimiter == nil {
		return nil
	}
	return rl.redisClient.HealthCheck(ctx)
}
