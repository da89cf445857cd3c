package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"product-authenticity-service/pkg/httputil"
)

// Limiter はキー単位でリクエストを許可するかを判定する。
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

const (
	memoryCleanupInterval = 5 * time.Minute
	memoryLimiterTTL      = 30 * time.Minute
)

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// MemoryLimiter はプロセス内のトークンバケットでキー単位に制限する。
// 単一インスタンス構成向け。
type MemoryLimiter struct {
	rps   rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	entries   map[string]*limiterEntry
	lastSweep time.Time
}

// NewMemoryLimiter は新しいMemoryLimiterを生成する。
func NewMemoryLimiter(rps float64, burst int) *MemoryLimiter {
	return &MemoryLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		entries: make(map[string]*limiterEntry),
	}
}

// Allow はキーのバケットからトークンを1つ消費できるかを返す。
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > memoryCleanupInterval {
		for k, e := range l.entries {
			if now.Sub(e.lastUse) > memoryLimiterTTL {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.entries[key] = e
	}
	e.lastUse = now
	return e.limiter.AllowN(now, 1), nil
}

// RedisCounter はRedisLimiterが使うRedisコマンドの部分集合。
type RedisCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisLimiter はRedisの固定ウィンドウカウンタで制限する。
// 複数インスタンスで上限を共有できる。
type RedisLimiter struct {
	client RedisCounter
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter は新しいRedisLimiterを生成する。
func NewRedisLimiter(client RedisCounter, prefix string, limit int64, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow はウィンドウ内のカウントを進め、上限以内かを返す。
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	secs := int64(l.window / time.Second)
	if secs < 1 {
		secs = 1
	}
	bucket := l.now().Unix() / secs
	k := fmt.Sprintf("%s%s:%d", l.prefix, key, bucket)

	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("incrementing rate limit counter: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("setting rate limit expiry: %w", err)
		}
	}
	return count <= l.limit, nil
}

// ClientIP はRemoteAddrからクライアントIPを取り出す。プロキシヘッダーは見ない。
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return strings.TrimSpace(host)
}

// RateLimit はクライアントIP単位でリクエストを制限するミドルウェアを返す。
// リミッターが失敗した場合はリクエストを通す。
func RateLimit(limiter Limiter, retryAfter time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			allowed, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				slog.WarnContext(r.Context(), "rate limiter unavailable",
					"operation", "RateLimit",
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
				httputil.Error(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
