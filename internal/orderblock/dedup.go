package orderblock

import (
	"fmt"
	"sync"
)

// DefaultDedupCap bounds how many recently alerted zones are remembered
// per symbol
const DefaultDedupCap = 10

// ZoneKey derives the deterministic dedup key for a candidate zone. Bounds
// are rounded to four decimals so float jitter between detections of the
// same zone maps to one key.
func ZoneKey(zoneLow, zoneHigh float64) string {
	return fmt.Sprintf("%.4f-%.4f", zoneLow, zoneHigh)
}

// DedupCache holds a bounded FIFO of recently alerted zone keys per symbol.
// Insertions and evictions are serialized so concurrent validator calls on
// the same symbol cannot lose updates.
type DedupCache struct {
	mu    sync.Mutex
	cap   int
	zones map[string][]string
}

// NewDedupCache creates a dedup cache with the given per-symbol cap
func NewDedupCache(capacity int) *DedupCache {
	if capacity <= 0 {
		capacity = DefaultDedupCap
	}
	return &DedupCache{
		cap:   capacity,
		zones: make(map[string][]string),
	}
}

// Contains reports whether a zone key was recently alerted for the symbol
func (c *DedupCache) Contains(symbol, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range c.zones[symbol] {
		if k == key {
			return true
		}
	}
	return false
}

// Add records a zone key, evicting the oldest entry once the per-symbol
// cap is exceeded. Re-adding an existing key is a no-op.
func (c *DedupCache) Add(symbol, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.zones[symbol]
	for _, k := range keys {
		if k == key {
			return
		}
	}

	keys = append(keys, key)
	if len(keys) > c.cap {
		keys = keys[len(keys)-c.cap:]
	}
	c.zones[symbol] = keys
}

// Len returns how many zone keys are held for a symbol
func (c *DedupCache) Len(symbol string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.zones[symbol])
}

// Reset clears all remembered zones
func (c *DedupCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zones = make(map[string][]string)
}
