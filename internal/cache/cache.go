// Package cache provides a size-bounded LRU cache with expiry and a sweeper
// that purges expired entries in the background.
package cache

import (
	"context"
	"sync"
	"time"

	"moneyflow/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches whose entries expire.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically purges expired entries from registered caches.
type Manager struct {
	mu      sync.Mutex
	caches  []Cleaner
	logger  *log.Logger
	stop    chan struct{}
	done    chan struct{}
	started bool
	stopped bool
}

// NewManager creates a new cache manager
func NewManager(logger *log.Logger) *Manager {
	return &Manager{
		logger: logger.WithComponent(log.ComponentCache),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, c)
}

// Sweep cleans every registered cache once and returns the number of
// removed entries.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

// Run sweeps every interval until ctx is cancelled or Stop is called. Only
// the first call runs; later calls and calls after Stop return at once.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	m.mu.Lock()
	if m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("Expired cache entries removed", "count", n)
			}
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		}
	}
}

// Stop ends Run and waits for it to return. It is safe to call when Run
// was never started and to call more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	started := m.started
	m.mu.Unlock()

	close(m.stop)
	if started {
		<-m.done
	}
}
