package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func TestRateLimitPollingHigherThanDefault(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(func() time.Time { return now })

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", "user-1")
		c.Next()
	})
	r.Use(RateLimit(RateLimitConfig{
		DefaultGroup: "DEFAULT",
		GroupFor: GroupByRoute(map[string]string{
			"GET /api/v1/mock-pdf/requests/:id": "POLLING",
		}),
		Limiter: limiter,
		Rules: map[string]RateLimitRule{
			"DEFAULT": {Rate: 1, Burst: 2},
			"POLLING": {Rate: 5, Burst: 10},
		},
	}))

	r.GET("/api/v1/mock-pdf/requests/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.POST("/api/v1/mock-pdf/requests", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/mock-pdf/requests/job-1", nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("polling request %d expected 200, got %d", i+1, resp.Code)
		}
	}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/mock-pdf/requests", nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("default request %d expected 200, got %d", i+1, resp.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/mock-pdf/requests", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("default request 3 expected 429, got %d", resp.Code)
	}
}

func TestRateLimit429IncludesRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(func() time.Time { return now })

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", "user-1")
		c.Next()
	})
	r.Use(RateLimit(RateLimitConfig{
		Limiter: limiter,
		Rules: map[string]RateLimitRule{
			"DEFAULT": {Rate: 1, Burst: 1},
		},
	}))
	r.GET("/api/v1/limited", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	resp1 := httptest.NewRecorder()
	r.ServeHTTP(resp1, httptest.NewRequest(http.MethodGet, "/api/v1/limited", nil))
	if resp1.Code != http.StatusOK {
		t.Fatalf("expected first request 200, got %d", resp1.Code)
	}

	resp2 := httptest.NewRecorder()
	r.ServeHTTP(resp2, httptest.NewRequest(http.MethodGet, "/api/v1/limited", nil))
	if resp2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp2.Code)
	}
	if resp2.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After 1, got %q", resp2.Header().Get("Retry-After"))
	}

	var payload struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Error.Code != "rate_limited" {
		t.Fatalf("expected code rate_limited, got %q", payload.Error.Code)
	}
	if _, ok := payload.Error.Details["retryAfterMs"]; !ok {
		t.Fatalf("expected retryAfterMs in details")
	}
}

func TestRateLimitSeparatesPrincipals(t *testing.T) {
	limiter := NewMemoryLimiter(func() time.Time { return time.Unix(0, 0) })
	rule := RateLimitRule{Rate: 1, Burst: 1}
	ctx := context.Background()

	if ok, _, _ := limiter.Allow(ctx, "a|DEFAULT", rule); !ok {
		t.Fatalf("expected first call for a to pass")
	}
	if ok, _, _ := limiter.Allow(ctx, "b|DEFAULT", rule); !ok {
		t.Fatalf("expected first call for b to pass")
	}
	if ok, wait, _ := limiter.Allow(ctx, "a|DEFAULT", rule); ok || wait != time.Second {
		t.Fatalf("expected a to be limited for 1s, got ok=%v wait=%s", ok, wait)
	}
}

func TestMemoryLimiterForgetsRefilledBuckets(t *testing.T) {
	now := time.Unix(0, 0)
	limiter := NewMemoryLimiter(func() time.Time { return now })
	rule := RateLimitRule{Rate: 0.2, Burst: 5}
	ctx := context.Background()

	for _, key := range []string{"a|CREATE", "b|CREATE"} {
		if ok, _, _ := limiter.Allow(ctx, key, rule); !ok {
			t.Fatalf("expected %s to pass", key)
		}
	}
	if limiter.Len() != 2 {
		t.Fatalf("expected 2 buckets, got %d", limiter.Len())
	}

	// One token refills in 5s; a minute later both buckets are full again.
	now = now.Add(2 * time.Minute)
	limiter.Allow(ctx, "c|CREATE", rule)
	if limiter.Len() != 1 {
		t.Fatalf("expected idle buckets to be swept, got %d", limiter.Len())
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, RateLimitRule) (bool, time.Duration, error) {
	return false, 0, errors.New("redis: connection refused")
}

func TestRateLimitFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(RateLimitConfig{
		Limiter: failingLimiter{},
		Rules:   map[string]RateLimitRule{"DEFAULT": {Rate: 1, Burst: 1}},
	}))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ok", nil))
		if resp.Code != http.StatusNoContent {
			t.Fatalf("request %d expected 204, got %d", i+1, resp.Code)
		}
	}
}

func TestRedisLimiterReportsUnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	ok, _, err := NewRedisLimiter(client, "").Allow(context.Background(), "user-1|CREATE", RateLimitRule{Rate: 0.2, Burst: 5})
	if err == nil || ok {
		t.Fatalf("expected an error from an unreachable redis, got ok=%v err=%v", ok, err)
	}
}

func TestRuleWindow(t *testing.T) {
	if got := (RateLimitRule{Rate: 0.2, Burst: 5}).window(); got != 25*time.Second {
		t.Fatalf("expected 25s window, got %s", got)
	}
}
