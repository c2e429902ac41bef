package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/WeDesignz/WebApp-sub000/internal/shared/server/respond"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/telemetry"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/util"
)

const defaultRateLimitGroup = "DEFAULT"

// RateLimitRule allows Burst requests at once, refilled at Rate per second.
type RateLimitRule struct {
	Rate  float64
	Burst int
}

func (r RateLimitRule) unlimited() bool { return r.Rate <= 0 || r.Burst <= 0 }

// window is how long an empty bucket takes to refill.
func (r RateLimitRule) window() time.Duration {
	return time.Duration(float64(r.Burst) / r.Rate * float64(time.Second))
}

// Limiter decides whether key may spend one request under rule.
type Limiter interface {
	Allow(ctx context.Context, key string, rule RateLimitRule) (bool, time.Duration, error)
}

// RateLimitConfig maps route groups to rules. Groups without a rule pass through.
type RateLimitConfig struct {
	Rules        map[string]RateLimitRule
	DefaultGroup string
	GroupFor     func(*gin.Context) string
	Limiter      Limiter
}

// RateLimit throttles per principal: the user id when authenticated, the
// client IP otherwise. A failing limiter lets requests through.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewMemoryLimiter(nil)
	}
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = defaultRateLimitGroup
	}
	return func(c *gin.Context) {
		group := cfg.DefaultGroup
		if cfg.GroupFor != nil {
			if g := strings.TrimSpace(cfg.GroupFor(c)); g != "" {
				group = g
			}
		}
		rule, ok := cfg.Rules[group]
		if !ok || rule.unlimited() {
			c.Next()
			return
		}
		principal := strings.TrimSpace(UserIDFromContext(c))
		if principal == "" {
			principal = c.ClientIP()
		}

		allowed, wait, err := cfg.Limiter.Allow(c.Request.Context(), principal+"|"+group, rule)
		if err != nil {
			telemetry.Warn("http.rate_limit_unavailable", map[string]any{
				"group":      group,
				"request_id": c.GetString(requestIDKey),
				"error":      err.Error(),
			})
			c.Next()
			return
		}
		if allowed {
			c.Next()
			return
		}

		wait = max(wait, time.Millisecond)
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "Too many requests", gin.H{
			"group":        group,
			"retryAfterMs": wait.Milliseconds(),
		})
	}
}

// GroupByRoute resolves the group from the matched route, keyed as
// "METHOD /path/:param".
func GroupByRoute(groups map[string]string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		return groups[c.Request.Method+" "+c.FullPath()]
	}
}

// MemoryLimiter is a per-process token bucket limiter.
type MemoryLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*rateBucket
	now       func() time.Time
	lastSweep time.Time
}

type rateBucket struct {
	tokens float64
	last   time.Time
	// fullAt is when the bucket refills completely and can be forgotten.
	fullAt time.Time
}

// sweepEvery bounds how often idle buckets are collected.
const sweepEvery = time.Minute

func NewMemoryLimiter(now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{buckets: make(map[string]*rateBucket), now: now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, rule RateLimitRule) (bool, time.Duration, error) {
	if l == nil || rule.unlimited() {
		return true, 0, nil
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &rateBucket{tokens: float64(rule.Burst), last: now}
		l.buckets[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(float64(rule.Burst), b.tokens+elapsed*rule.Rate)
		b.last = now
	}

	allowed := b.tokens >= 1
	if allowed {
		b.tokens--
	}
	missing := float64(rule.Burst) - b.tokens
	b.fullAt = now.Add(time.Duration(missing / rule.Rate * float64(time.Second)))
	if allowed {
		return true, 0, nil
	}
	wait := time.Duration(math.Ceil((1-b.tokens)/rule.Rate*1000)) * time.Millisecond
	return false, wait, nil
}

// sweep drops buckets that have refilled; a fresh bucket behaves the same.
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < sweepEvery {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if !now.Before(b.fullAt) {
			delete(l.buckets, key)
		}
	}
}

// Len reports how many buckets are tracked.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RedisLimiter shares limits across instances with a fixed window of Burst
// requests per refill window. Keys are hashed before they reach Redis.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisLimiter(client redis.UniversalClient, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "mockpdf:ratelimit:"
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, rule RateLimitRule) (bool, time.Duration, error) {
	if rule.unlimited() {
		return true, 0, nil
	}
	k := l.prefix + util.UserKey(key)
	window := rule.window()

	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, k, window).Err(); err != nil {
			return false, 0, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	if count <= int64(rule.Burst) {
		return true, 0, nil
	}

	ttl, err := l.client.PTTL(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit ttl: %w", err)
	}
	if ttl < 0 {
		// The expiry was lost; start a new window instead of blocking forever.
		if err := l.client.PExpire(ctx, k, window).Err(); err != nil {
			return false, 0, fmt.Errorf("rate limit expire: %w", err)
		}
		ttl = window
	}
	return false, ttl, nil
}
