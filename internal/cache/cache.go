package cache

import (
	"sync"
	"time"
)

// DefaultTTL is how long a populated utilization cache stays valid
const DefaultTTL = 15 * time.Minute

// UtilizationRateCache maps component ids to utilization rates (hours/day).
// All entries share one timestamp: the cache is fresh or stale as a whole.
type UtilizationRateCache struct {
	mu         sync.RWMutex
	ttl        time.Duration
	now        func() time.Time
	rates      map[string]float64
	timestamp  time.Time
	generation uint64
}

// NewUtilizationRateCache creates an empty cache
func NewUtilizationRateCache(ttl time.Duration, now func() time.Time) *UtilizationRateCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &UtilizationRateCache{
		ttl:   ttl,
		now:   now,
		rates: make(map[string]float64),
	}
}

func (c *UtilizationRateCache) fresh(at time.Time) bool {
	return !c.timestamp.IsZero() && at.Sub(c.timestamp) < c.ttl
}

// Get returns the cached rate for componentID and the generation the lookup
// observed. Pass the generation back to Set after recomputing.
func (c *UtilizationRateCache) Get(componentID string) (float64, bool, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.fresh(c.now()) {
		return 0, false, c.generation
	}
	rate, ok := c.rates[componentID]
	return rate, ok, c.generation
}

// Set stores a recomputed rate. It is dropped when the cache was invalidated
// after generation was observed. An expired cache is reset and restamped.
func (c *UtilizationRateCache) Set(componentID string, rate float64, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return false
	}

	now := c.now()
	if !c.fresh(now) {
		c.rates = make(map[string]float64)
		c.timestamp = now
	}
	c.rates[componentID] = rate
	return true
}

// Invalidate clears every entry
func (c *UtilizationRateCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rates = make(map[string]float64)
	c.timestamp = time.Time{}
	c.generation++
}

// Sweep releases an expired cache and reports whether it did
func (c *UtilizationRateCache) Sweep() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timestamp.IsZero() || c.fresh(c.now()) {
		return false
	}
	c.rates = make(map[string]float64)
	c.timestamp = time.Time{}
	return true
}

// Timestamp returns when the cache was populated, zero when empty
func (c *UtilizationRateCache) Timestamp() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timestamp
}

// Len returns the number of entries, fresh or not
func (c *UtilizationRateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rates)
}
