package middleware

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/juju/ratelimit"
	"github.com/labstack/echo/v4"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/metrics"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// RateLimiter keeps one token bucket per client.
type RateLimiter struct {
	cfg     RateLimitConfig
	mu      sync.RWMutex
	clients map[string]*ratelimit.Bucket
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 || cfg.BurstSize <= 0 {
		cfg = DefaultRateLimitConfig()
	}
	return &RateLimiter{cfg: cfg, clients: make(map[string]*ratelimit.Bucket)}
}

func (rl *RateLimiter) bucket(key string) *ratelimit.Bucket {
	rl.mu.RLock()
	b, ok := rl.clients[key]
	rl.mu.RUnlock()
	if ok {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok = rl.clients[key]; !ok {
		b = ratelimit.NewBucketWithRate(rl.cfg.RequestsPerSecond, int64(rl.cfg.BurstSize))
		rl.clients[key] = b
		metrics.RateLimiterBuckets.Set(float64(len(rl.clients)))
	}
	return b
}

// Sweep drops buckets that have refilled completely, i.e. idle clients.
// It returns how many buckets remain.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.clients {
		if b.Available() >= b.Capacity() {
			delete(rl.clients, key)
		}
	}
	metrics.RateLimiterBuckets.Set(float64(len(rl.clients)))
	return len(rl.clients)
}

// Middleware limits each client, keyed by organization (when authenticated)
// and remote IP.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	limit := strconv.Itoa(rl.cfg.BurstSize)
	rate := strconv.FormatFloat(rl.cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()
			if orgID, ok := c.Get("org_id").(string); ok && orgID != "" {
				key = orgID + ":" + key
			}

			b := rl.bucket(key)
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Rate", rate)

			if b.TakeAvailable(1) < 1 {
				h.Set("X-RateLimit-Remaining", "0")
				h.Set("Retry-After", retryAfter(rl.cfg.RequestsPerSecond))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(b.Available(), 10))
			return next(c)
		}
	}
}

// RateLimit is a convenience wrapper for a limiter nobody needs to sweep.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return NewRateLimiter(cfg).Middleware()
}

func retryAfter(rps float64) string {
	secs := int(1/rps) + 1
	return strconv.Itoa(secs)
}
