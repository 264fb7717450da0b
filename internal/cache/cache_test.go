package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/septivank/running-hours-ledger/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newCache(t *testing.T) (*cache.UtilizationRateCache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)}
	return cache.NewUtilizationRateCache(15*time.Minute, clock.Now), clock
}

func TestGet_EmptyCacheMisses(t *testing.T) {
	c, _ := newCache(t)

	_, ok, _ := c.Get("ME-1")
	assert.False(t, ok)
}

func TestSetThenGet_WithinWindow(t *testing.T) {
	c, clock := newCache(t)

	_, _, gen := c.Get("ME-1")
	require.True(t, c.Set("ME-1", 18.5, gen))

	clock.Advance(14*time.Minute + 59*time.Second)
	rate, ok, _ := c.Get("ME-1")
	require.True(t, ok)
	assert.Equal(t, 18.5, rate)
}

func TestGet_ExpiresAfterWindow(t *testing.T) {
	c, clock := newCache(t)

	_, _, gen := c.Get("ME-1")
	c.Set("ME-1", 18.5, gen)

	clock.Advance(15 * time.Minute)
	_, ok, _ := c.Get("ME-1")
	assert.False(t, ok)
}

func TestSharedTimestampGatesAllEntries(t *testing.T) {
	c, clock := newCache(t)

	_, _, gen := c.Get("ME-1")
	c.Set("ME-1", 18.5, gen)
	populated := c.Timestamp()

	clock.Advance(10 * time.Minute)
	c.Set("AE-2", 6.0, gen)
	assert.Equal(t, populated, c.Timestamp(), "a second entry must not restamp a fresh cache")

	clock.Advance(5 * time.Minute)
	_, ok, _ := c.Get("AE-2")
	assert.False(t, ok, "entry added late expires with the shared timestamp")
}

func TestSet_RestampsExpiredCache(t *testing.T) {
	c, clock := newCache(t)

	_, _, gen := c.Get("ME-1")
	c.Set("ME-1", 18.5, gen)

	clock.Advance(20 * time.Minute)
	c.Set("AE-2", 6.0, gen)

	assert.Equal(t, clock.Now(), c.Timestamp())
	assert.Equal(t, 1, c.Len(), "stale entries are dropped on restamp")
}

func TestInvalidate_ClearsEverything(t *testing.T) {
	c, _ := newCache(t)

	_, _, gen := c.Get("ME-1")
	c.Set("ME-1", 18.5, gen)
	c.Set("AE-2", 6.0, gen)

	c.Invalidate()

	_, ok, _ := c.Get("ME-1")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
	assert.True(t, c.Timestamp().IsZero())
}

func TestSet_DroppedWhenInvalidatedDuringComputation(t *testing.T) {
	c, _ := newCache(t)

	_, _, gen := c.Get("ME-1")
	c.Invalidate()

	assert.False(t, c.Set("ME-1", 18.5, gen))
	_, ok, _ := c.Get("ME-1")
	assert.False(t, ok)
}

func TestSweep(t *testing.T) {
	c, clock := newCache(t)

	assert.False(t, c.Sweep(), "nothing to sweep")

	_, _, gen := c.Get("ME-1")
	c.Set("ME-1", 18.5, gen)
	assert.False(t, c.Sweep(), "fresh cache is kept")

	clock.Advance(16 * time.Minute)
	assert.True(t, c.Sweep())
	assert.Zero(t, c.Len())
}

func TestNewUtilizationRateCache_DefaultTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)}
	c := cache.NewUtilizationRateCache(0, clock.Now)

	_, _, gen := c.Get("ME-1")
	c.Set("ME-1", 1, gen)

	clock.Advance(cache.DefaultTTL - time.Second)
	_, ok, _ := c.Get("ME-1")
	assert.True(t, ok)
}
