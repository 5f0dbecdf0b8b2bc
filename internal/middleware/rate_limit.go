package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// Window is the time window for rate limiting
	Window time.Duration
	// Limit is the maximum number of requests allowed in the window
	Limit int
	// Key prefix for Redis keys
	KeyPrefix string
}

// Limiter decides whether a request identified by key may proceed.
// Returns: allowed, remaining requests, reset time, error
type Limiter interface {
	IsAllowed(ctx context.Context, key string) (bool, int, time.Time, error)
	Config() RateLimitConfig
}

// RateLimiter is a fixed-window limiter backed by Redis.
type RateLimiter struct {
	redis  *redis.Client
	config RateLimitConfig
}

// NewRateLimiter creates a new rate limiter instance
func NewRateLimiter(redisClient *redis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		config: config,
	}
}

func (rl *RateLimiter) Config() RateLimitConfig { return rl.config }

// IsAllowed counts the request in the current window.
func (rl *RateLimiter) IsAllowed(ctx context.Context, key string) (bool, int, time.Time, error) {
	windowStart := time.Now().Truncate(rl.config.Window)
	redisKey := fmt.Sprintf("%s:%s:%d", rl.config.KeyPrefix, key, windowStart.Unix())

	pipe := rl.redis.Pipeline()
	incrCmd := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.config.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, time.Time{}, err
	}

	count := int(incrCmd.Val())
	remaining := rl.config.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= rl.config.Limit, remaining, windowStart.Add(rl.config.Window), nil
}

// LocalRateLimiter keeps one token bucket per key in process memory. It is
// used when no Redis is configured.
type LocalRateLimiter struct {
	config RateLimitConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLocalRateLimiter allows config.Limit requests per config.Window per key,
// with bursts up to config.Limit.
func NewLocalRateLimiter(config RateLimitConfig) *LocalRateLimiter {
	return &LocalRateLimiter{config: config, limiters: make(map[string]*rate.Limiter)}
}

func (l *LocalRateLimiter) Config() RateLimitConfig { return l.config }

func (l *LocalRateLimiter) IsAllowed(_ context.Context, key string) (bool, int, time.Time, error) {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		every := l.config.Window / time.Duration(l.config.Limit)
		lim = rate.NewLimiter(rate.Every(every), l.config.Limit)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	now := time.Now()
	allowed := lim.AllowN(now, 1)
	remaining := int(lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	reset := now.Add(time.Duration(float64(time.Second) / float64(lim.Limit())))
	return allowed, remaining, reset, nil
}

// NewPlanRateLimiter limits meal plan generation to 10 per session per hour.
func NewPlanRateLimiter(redisClient *redis.Client) Limiter {
	cfg := RateLimitConfig{
		Window:    time.Hour,
		Limit:     10,
		KeyPrefix: "rate_limit:plan_generation",
	}
	if redisClient == nil {
		return NewLocalRateLimiter(cfg)
	}
	return NewRateLimiter(redisClient, cfg)
}

// AllowRequest consumes one unit of the session's quota and sets the
// X-RateLimit headers. Handlers call it once a request is known to be valid;
// it must run after SessionAuth. When the request is refused it writes the response,
// aborts the context and returns false. Limiter errors let the request through.
func AllowRequest(c *gin.Context, l Limiter) bool {
	sessionID := c.GetString(SessionIDKey)
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session not authenticated"})
		c.Abort()
		return false
	}

	cfg := l.Config()
	allowed, remaining, resetTime, err := l.IsAllowed(c.Request.Context(), sessionID)
	if err != nil {
		c.Header("X-RateLimit-Error", "rate limit check failed")
		_ = c.Error(err)
		return true
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

	if !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":                "rate limit exceeded",
			"message":              fmt.Sprintf("You have exceeded the rate limit of %d plans per %v", cfg.Limit, cfg.Window),
			"rate_limit_remaining": remaining,
			"rate_limit_reset":     resetTime.Unix(),
			"retry_after":          int(time.Until(resetTime).Seconds()),
		})
		c.Abort()
		return false
	}
	return true
}
