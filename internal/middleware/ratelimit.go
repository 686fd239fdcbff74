package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter reports whether one more request for key fits in the current budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter is a per-process token bucket per key. rpm <= 0 disables it.
type LocalLimiter struct {
	rpm     int
	mu      sync.Mutex
	clients map[string]*clientLimiter
}

func NewLocalLimiter(rpm int) *LocalLimiter {
	return &LocalLimiter{rpm: rpm, clients: map[string]*clientLimiter{}}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.rpm <= 0 {
		return true, nil
	}
	return l.getLimiter(key).Allow(), nil
}

func (l *LocalLimiter) getLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, exists := l.clients[key]; exists {
		entry.lastSeen = time.Now()
		l.gcLocked()
		return entry.limiter
	}

	created := &clientLimiter{
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.rpm)), l.rpm),
		lastSeen: time.Now(),
	}
	l.clients[key] = created
	l.gcLocked()

	return created.limiter
}

func (l *LocalLimiter) gcLocked() {
	if len(l.clients) < 1000 {
		return
	}

	cutoff := time.Now().Add(-10 * time.Minute)
	for key, entry := range l.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(l.clients, key)
		}
	}
}

type redisCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisLimiter is a fixed one-minute window shared by every replica.
type RedisLimiter struct {
	client redisCounter
	rpm    int
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client redisCounter, rpm int, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{client: client, rpm: rpm, prefix: prefix, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.rpm <= 0 {
		return true, nil
	}

	window := l.now().Unix() / 60
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, window)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, fmt.Errorf("increment rate counter: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, time.Minute).Err(); err != nil {
			return true, fmt.Errorf("expire rate counter: %w", err)
		}
	}

	return count <= int64(l.rpm), nil
}

// RateLimitMiddleware applies the auth limiter to /api/auth and the general
// limiter elsewhere, keyed by client IP. Limiter errors fail open.
type RateLimitMiddleware struct {
	general Limiter
	auth    Limiter
}

func NewRateLimitMiddleware(general Limiter, auth Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{general: general, auth: auth}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target := m.general
		if strings.HasPrefix(strings.ToLower(r.URL.Path), "/api/auth") {
			target = m.auth
		}
		if target == nil {
			next.ServeHTTP(w, r)
			return
		}

		allowed, err := target.Allow(r.Context(), extractClientIP(r))
		if err != nil {
			slog.Warn("rate limiter unavailable", "path", r.URL.Path, "error", err)
		}

		if !allowed {
			w.Header().Set("Retry-After", "60")
			writeErrorJSON(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractClientIP(r *http.Request) string {
	forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	realIP := strings.TrimSpace(r.Header.Get("X-Real-IP"))
	if realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}

	if strings.TrimSpace(r.RemoteAddr) == "" {
		return "unknown"
	}

	return r.RemoteAddr
}
