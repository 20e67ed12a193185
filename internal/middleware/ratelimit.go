// ratelimit.go provides Gin middleware that enforces per-client rate limits on the
// intake routes, returning 429 responses when the configured requests-per-minute
// threshold is exceeded. Limits are kept in process memory or shared through redis.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"

	"github.com/intake-gateway/intake-gateway/internal/config"
)

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
}

// Limiter decides whether a request identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RateLimitConfig holds configuration for the in-memory limiter
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of requests allowed per minute
	RequestsPerMinute int
	// BurstSize is the maximum burst of requests allowed
	BurstSize int
	// CleanupInterval is how often to clean up expired entries
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns the limits applied to intake routes
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         10,
		CleanupInterval:   5 * time.Minute,
	}
}

// NewLimiter builds the limiter selected by cfg.Backend. The returned stop function
// releases its background goroutine or redis connection.
func NewLimiter(cfg *config.RateLimitingConfig) (Limiter, func(), error) {
	rlc := DefaultRateLimitConfig()
	if cfg.RequestsPerMinute > 0 {
		rlc.RequestsPerMinute = cfg.RequestsPerMinute
	}
	if cfg.Burst > 0 {
		rlc.BurstSize = cfg.Burst
	}

	switch cfg.Backend {
	case "", "memory":
		rl := NewRateLimiter(rlc)
		return rl, rl.Stop, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisLimiter(client, rlc), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown rate limiting backend: %s", cfg.Backend)
	}
}

// rateLimitEntry tracks request counts for a single client
type rateLimitEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter implements a token bucket rate limiter
type RateLimiter struct {
	config  RateLimitConfig
	entries map[string]*rateLimitEntry
	mu      sync.RWMutex
	stopCh  chan struct{}
	once    sync.Once
}

// NewRateLimiter creates a new rate limiter with the given config
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		entries: make(map[string]*rateLimitEntry),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// cleanup periodically removes expired entries
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, entry := range rl.entries {
				// Remove entries that haven't been accessed in 10 minutes
				if now.Sub(entry.lastUpdate) > 10*time.Minute {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// Allow consumes one token for key
func (rl *RateLimiter) Allow(_ context.Context, key string) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	d := Decision{Limit: rl.config.RequestsPerMinute}
	now := time.Now()
	entry, exists := rl.entries[key]

	if !exists {
		// New client, give them full burst
		entry = &rateLimitEntry{tokens: float64(rl.config.BurstSize), lastUpdate: now}
		rl.entries[key] = entry
	} else {
		elapsed := now.Sub(entry.lastUpdate)
		tokensPerSecond := float64(rl.config.RequestsPerMinute) / 60.0
		entry.tokens = min(float64(rl.config.BurstSize), entry.tokens+elapsed.Seconds()*tokensPerSecond)
		entry.lastUpdate = now
	}

	if entry.tokens >= 1 {
		entry.tokens--
		d.Allowed = true
	}
	d.Remaining = int(entry.tokens)
	return d, nil
}

// RedisLimiter shares limits across gateway replicas through redis (GCRA)
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

// NewRedisLimiter creates a limiter backed by client
func NewRedisLimiter(client *redis.Client, config RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(client),
		limit: redis_rate.Limit{
			Rate:   config.RequestsPerMinute,
			Burst:  config.BurstSize,
			Period: time.Minute,
		},
	}
}

// Allow consumes one request for key
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := rl.limiter.Allow(ctx, "igw:rate:"+key, rl.limit)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   res.Allowed > 0,
		Limit:     rl.limit.Rate,
		Remaining: res.Remaining,
	}, nil
}

// RateLimitMiddleware creates a Gin middleware that rate limits requests. Limiter
// errors let the request through.
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := getRateLimitKey(c)

		d, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request",
				"key", key, "request_id", c.GetString(RequestIDKey), "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

		if !d.Allowed {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": 60,
			})
			return
		}

		c.Next()
	}
}

// getRateLimitKey keys callers by client IP
func getRateLimitKey(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
