package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_UnlimitedGeneral(t *testing.T) {
	mw := NewRateLimitMiddleware(NewLocalLimiter(0), NewLocalLimiter(1))
	handler := mw.Handler(okHandler())

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestRateLimitMiddleware_LimitedAuth(t *testing.T) {
	mw := NewRateLimitMiddleware(NewLocalLimiter(0), NewLocalLimiter(1))
	handler := mw.Handler(okHandler())

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	assert.Equal(t, http.StatusOK, rec1.Code)

	// Burst of 1: the second immediate request has no token left.
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
	assert.Equal(t, "60", rec2.Header().Get("Retry-After"))
	assert.Contains(t, rec2.Body.String(), "RATE_LIMITED")
}

func TestRateLimitMiddleware_KeysByClientIP(t *testing.T) {
	mw := NewRateLimitMiddleware(nil, NewLocalLimiter(1))
	handler := mw.Handler(okHandler())

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.Header.Set("X-Forwarded-For", ip+", 172.16.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, ip)
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return true, errors.New("redis down")
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	mw := NewRateLimitMiddleware(nil, failingLimiter{})
	rec := httptest.NewRecorder()
	mw.Handler(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

type fakeRedisCounter struct {
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func newFakeRedisCounter() *fakeRedisCounter {
	return &fakeRedisCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeRedisCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeRedisCounter) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.expires[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	counter := newFakeRedisCounter()
	limiter := NewRedisLimiter(counter, 2, "auth")
	limiter.now = func() time.Time { return time.Unix(120, 0) }

	ctx := context.Background()
	for i, want := range []bool{true, true, false} {
		allowed, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, want, allowed, "attempt %d", i)
	}
	assert.Equal(t, time.Minute, counter.expires["auth:10.0.0.1:2"])

	limiter.now = func() time.Time { return time.Unix(180, 0) }
	allowed, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiter_ErrorAllows(t *testing.T) {
	counter := newFakeRedisCounter()
	counter.err = errors.New("connection refused")
	limiter := NewRedisLimiter(counter, 1, "")

	allowed, err := limiter.Allow(context.Background(), "10.0.0.1")
	require.Error(t, err)
	assert.True(t, allowed)
}

func TestLocalLimiter_DisabledWhenNonPositive(t *testing.T) {
	limiter := NewLocalLimiter(-1)
	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(context.Background(), "k")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}
