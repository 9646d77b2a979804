package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(cfg)
	t.Cleanup(rl.Stop)
	now := time.Date(2026, 1, 8, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestAllowBurstThenRefill(t *testing.T) {
	rl, now := newTestLimiter(t, Config{RequestsPerSecond: 1, Burst: 3})

	for i := range 3 {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d", i)
	}
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "other clients have their own bucket")

	*now = now.Add(time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
}

func TestCleanupForgetsIdleClients(t *testing.T) {
	rl, now := newTestLimiter(t, Config{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Minute})
	rl.Allow("a")
	*now = now.Add(30 * time.Second)
	rl.Allow("b")
	*now = now.Add(45 * time.Second)

	assert.Equal(t, 1, rl.Cleanup())
	assert.Equal(t, 1, rl.ActiveClients())
}

func TestMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, Config{RequestsPerSecond: 0.5, Burst: 1})
	h := rl.Middleware(func(*http.Request) string { return "ip" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/limits/x", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/limits/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
}

func TestMiddlewareOnLimit(t *testing.T) {
	rl, _ := newTestLimiter(t, Config{RequestsPerSecond: 1, Burst: 1})
	called := 0
	h := rl.Middleware(func(*http.Request) string { return "ip" }, func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(http.StatusTeapot)
	})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, 1, called)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
