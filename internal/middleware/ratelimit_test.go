package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedisCounter struct {
	counts    map[string]int64
	expiries  map[string]time.Duration
	incrErr   error
	expireErr error
}

func newFakeRedisCounter() *fakeRedisCounter {
	return &fakeRedisCounter{
		counts:   make(map[string]int64),
		expiries: make(map[string]time.Duration),
	}
}

func (f *fakeRedisCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.incrErr != nil {
		return redis.NewIntResult(0, f.incrErr)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeRedisCounter) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if f.expireErr != nil {
		return redis.NewBoolResult(false, f.expireErr)
	}
	f.expiries[key] = expiration
	return redis.NewBoolResult(true, nil)
}

type stubLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allowed, s.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMemoryLimiter_Burst(t *testing.T) {
	l := NewMemoryLimiter(1, 2)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		if err != nil || !ok {
			t.Fatalf("request %d: expected allowed, got %v %v", i, ok, err)
		}
	}
	ok, _ := l.Allow(ctx, "10.0.0.1")
	if ok {
		t.Error("expected third request in the same instant to be rejected")
	}

	// 別キーは独立
	ok, _ = l.Allow(ctx, "10.0.0.2")
	if !ok {
		t.Error("expected other key to be allowed")
	}
}

func TestMemoryLimiter_Refill(t *testing.T) {
	l := NewMemoryLimiter(1, 1)
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }
	ctx := context.Background()

	if ok, _ := l.Allow(ctx, "k"); !ok {
		t.Fatal("expected first request allowed")
	}
	if ok, _ := l.Allow(ctx, "k"); ok {
		t.Fatal("expected second request rejected")
	}
	current = current.Add(2 * time.Second)
	if ok, _ := l.Allow(ctx, "k"); !ok {
		t.Error("expected request allowed after refill")
	}
}

func TestMemoryLimiter_SweepsIdleEntries(t *testing.T) {
	l := NewMemoryLimiter(1, 1)
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }
	ctx := context.Background()

	l.Allow(ctx, "idle")
	current = current.Add(time.Hour)
	l.Allow(ctx, "active")

	if _, ok := l.entries["idle"]; ok {
		t.Error("expected idle entry to be swept")
	}
	if _, ok := l.entries["active"]; !ok {
		t.Error("expected active entry to remain")
	}
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	counter := newFakeRedisCounter()
	l := NewRedisLimiter(counter, "ratelimit:verify:", 2, time.Minute)
	l.now = func() time.Time { return time.Unix(1_800_000_000, 0) }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		if err != nil || !ok {
			t.Fatalf("request %d: expected allowed, got %v %v", i, ok, err)
		}
	}
	ok, err := l.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected request over the limit to be rejected")
	}
	if len(counter.expiries) != 1 {
		t.Errorf("expected expiry set once, got %d", len(counter.expiries))
	}
	for _, exp := range counter.expiries {
		if exp != time.Minute {
			t.Errorf("expected 1m expiry, got %v", exp)
		}
	}
}

func TestRedisLimiter_Error(t *testing.T) {
	counter := newFakeRedisCounter()
	counter.incrErr = errors.New("connection refused")
	l := NewRedisLimiter(counter, "ratelimit:", 10, time.Minute)

	if _, err := l.Allow(context.Background(), "k"); err == nil {
		t.Error("expected error")
	}
}

func TestRateLimit_Rejects(t *testing.T) {
	limiter := &stubLimiter{allowed: false}
	h := RateLimit(limiter, time.Minute)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/products/P100/verify", nil)
	req.RemoteAddr = "192.0.2.10:54321"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != "192.0.2.10" {
		t.Errorf("expected key to be client IP, got %v", limiter.keys)
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("redis down")}
	h := RateLimit(limiter, time.Minute)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestClientIP_NoPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7"

	if got := ClientIP(req); got != "198.51.100.7" {
		t.Errorf("expected raw address, got %s", got)
	}
}
