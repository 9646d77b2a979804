package cache

import (
	"bytes"
	"context"
	"strconv"
	"testing"
	"time"

	"moneyflow/internal/log"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *clock) {
	clk := &clock{t: time.Date(2026, 1, 8, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	if _, ok := c.Get("rev-1"); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	c.Set("rev-1", "summary")
	got, ok := c.Get("rev-1")
	if !ok || got != "summary" {
		t.Fatalf("Get() = %q, %v", got, ok)
	}

	c.Set("rev-1", "updated")
	if got, _ := c.Get("rev-1"); got != "updated" {
		t.Errorf("Get() after overwrite = %q", got)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}

	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should still be cached")
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", c.Stats().Evictions)
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	for i := range 3 {
		c.Set(strconv.Itoa(i), "v")
	}
	clk.t = clk.t.Add(30 * time.Second)
	c.Set("fresh", "v")

	clk.t = clk.t.Add(45 * time.Second)
	if _, ok := c.Get("0"); ok {
		t.Error("expired entry returned")
	}
	if n := c.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired() = %d, want 2", n)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCache_DeleteAndPurge(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	c.Delete("a")
	c.Delete("missing")
	if c.Size() != 1 {
		t.Errorf("Size() after Delete = %d", c.Size())
	}

	c.Purge()
	if c.Size() != 0 {
		t.Errorf("Size() after Purge = %d", c.Size())
	}
	c.Set("c", "3")
	if _, ok := c.Get("c"); !ok {
		t.Error("cache unusable after Purge")
	}
}

func TestManager(t *testing.T) {
	c, clk := newTestCache(10, time.Second)
	c.Set("a", "1")
	clk.t = clk.t.Add(2 * time.Second)

	m := NewManager(log.New(log.Config{Output: &bytes.Buffer{}}))
	m.Register(c)
	if n := m.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx, time.Hour)
	cancel()
	<-m.done
}

func TestManagerStopWithoutRun(t *testing.T) {
	m := NewManager(log.New(log.Config{Output: &bytes.Buffer{}}))

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		m.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a manager that never ran")
	}

	// Run after Stop must not start a sweeper.
	ran := make(chan struct{})
	go func() {
		m.Run(context.Background(), time.Millisecond)
		close(ran)
	}()
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("Run kept running after Stop")
	}
}
