// Package ratelimit throttles requests per client with token buckets.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per client.
type Limiter struct {
	mu       sync.Mutex
	clients  map[string]*client
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Config holds rate limiter configuration
type Config struct {
	// RequestsPerSecond is the sustained rate per client.
	RequestsPerSecond float64
	// Burst is the number of requests allowed at once.
	Burst int
	// CleanupInterval is how often idle clients are forgotten.
	CleanupInterval time.Duration
	// IdleTTL is how long a client must be silent to be forgotten.
	IdleTTL time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 1,
		Burst:             10,
		CleanupInterval:   5 * time.Minute,
		IdleTTL:           10 * time.Minute,
	}
}

// NewLimiter creates a limiter and starts its cleanup goroutine. Call Stop
// to release it.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = def.RequestsPerSecond
	}
	if config.Burst < 1 {
		config.Burst = def.Burst
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = def.IdleTTL
	}

	rl := &Limiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(config.RequestsPerSecond),
		burst:   config.Burst,
		idleTTL: config.IdleTTL,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop(config.CleanupInterval)
	return rl
}

// Allow reports whether a request from clientIP may proceed.
func (rl *Limiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, ok := rl.clients[clientIP]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[clientIP] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// RetryAfter is the time until the next token for a fresh bucket.
func (rl *Limiter) RetryAfter() time.Duration {
	return time.Duration(float64(time.Second) / float64(rl.limit))
}

func (rl *Limiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup()
		case <-rl.stop:
			return
		}
	}
}

// Cleanup forgets clients idle for longer than the configured TTL and
// returns how many were removed.
func (rl *Limiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTTL)
	removed := 0
	for ip, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop gracefully shuts down the rate limiter cleanup goroutine
func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stop)
	})
}

// Middleware rejects requests over the limit with 429. onLimit, when set,
// is called instead of writing the default response.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.Allow(extractIP(r)) {
				next.ServeHTTP(w, r)
				return
			}
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			secs := int(rl.RetryAfter().Seconds())
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		})
	}
}
