package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/alextreichler/coursehub/internal/apperr"
	"github.com/redis/go-redis/v9"
)

// RateLimiter counts requests per key in fixed windows. Allow reports whether the
// request may proceed and, when it may not, how long until the window resets.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// MemoryRateLimiter keeps counters in process. It is the default when no redis
// address is configured.
type MemoryRateLimiter struct {
	visitors sync.Map
	limit    int
	window   time.Duration
}

type visitor struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// NewMemoryRateLimiter creates a limiter allowing limit requests per window. Expired
// entries are swept until ctx is done.
func NewMemoryRateLimiter(ctx context.Context, limit int, window time.Duration) *MemoryRateLimiter {
	rl := &MemoryRateLimiter{limit: limit, window: window}
	// Background cleanup
	go rl.cleanup(ctx)
	return rl
}

// cleanup removes old entries to prevent memory leaks
func (rl *MemoryRateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.visitors.Range(func(key, value any) bool {
				v := value.(*visitor)
				v.mu.Lock()
				expired := now.After(v.resetAt)
				v.mu.Unlock()
				if expired {
					rl.visitors.Delete(key)
				}
				return true
			})
		}
	}
}

func (rl *MemoryRateLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := time.Now()
	value, _ := rl.visitors.LoadOrStore(key, &visitor{resetAt: now.Add(rl.window)})
	v := value.(*visitor)

	v.mu.Lock()
	defer v.mu.Unlock()
	if now.After(v.resetAt) {
		v.count = 0
		v.resetAt = now.Add(rl.window)
	}
	v.count++
	if v.count > rl.limit {
		return false, v.resetAt.Sub(now), nil
	}
	return true, 0, nil
}

// redisCounter is the part of the redis client the limiter uses.
type redisCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// RedisRateLimiter shares counters between instances through redis.
type RedisRateLimiter struct {
	client redisCounter
	limit  int
	window time.Duration
}

func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, limit: limit, window: window}
}

// Allow counts the request and makes sure the key carries an expiry. A key left
// without one, for example after a failed EXPIRE, gets it on the next request.
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	key = "rate_limit:" + key

	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return true, 0, err
	}

	ttl, err := rl.client.TTL(ctx, key).Result()
	if err != nil {
		return true, 0, err
	}
	// TTL reports -1 for a key with no expiry.
	if ttl < 0 {
		if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
			return true, 0, err
		}
		ttl = rl.window
	}

	if count > int64(rl.limit) {
		return false, ttl, nil
	}
	return true, 0, nil
}

// RateLimit wraps next so that each client IP gets at most the limiter's quota for
// the named action. Limiter errors let the request through.
func RateLimit(rl RateLimiter, action string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		ok, retryAfter, err := rl.Allow(r.Context(), fmt.Sprintf("%s:%s", action, ip))
		if err != nil {
			slog.Warn("Rate limiter unavailable, allowing request", "action", action, "error", err)
			next(w, r)
			return
		}
		if !ok {
			slog.Warn("Rate limit exceeded", "action", action, "ip", ip)
			secs := int(retryAfter.Round(time.Second).Seconds())
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeError(w, r, apperr.RateLimited())
			return
		}
		next(w, r)
	}
}
