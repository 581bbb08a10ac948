package market

import (
	"fmt"
	"sync"
	"time"
)

// BarCache provides TTL caching for candle data so one symbol's history is
// fetched at most once per cycle across every alert registered on it
type BarCache struct {
	data map[string]*cacheEntry
	mu   sync.RWMutex
}

type cacheEntry struct {
	bars      []Kline
	expiresAt time.Time
}

// NewBarCache creates a new bar cache
func NewBarCache() *BarCache {
	return &BarCache{
		data: make(map[string]*cacheEntry),
	}
}

// Get retrieves cached bars if not expired
func (c *BarCache) Get(key string) []Kline {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.data[key]
	if !exists {
		return nil
	}

	if time.Now().After(entry.expiresAt) {
		return nil
	}

	return entry.bars
}

// Set stores bars in cache with expiration
func (c *BarCache) Set(key string, bars []Kline, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &cacheEntry{
		bars:      bars,
		expiresAt: time.Now().Add(ttl),
	}
}

// CleanupExpired removes expired entries from cache
func (c *BarCache) CleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if now.After(entry.expiresAt) {
			delete(c.data, key)
		}
	}
}

// CachedProvider wraps a Provider with a per-(symbol, timeframe) bar cache
type CachedProvider struct {
	inner Provider
	cache *BarCache
}

// NewCachedProvider creates a caching wrapper around a market-data provider
func NewCachedProvider(inner Provider) *CachedProvider {
	return &CachedProvider{
		inner: inner,
		cache: NewBarCache(),
	}
}

// GetQuote passes through to the underlying provider; quotes are never cached
func (p *CachedProvider) GetQuote(symbol string) (*Quote, error) {
	return p.inner.GetQuote(symbol)
}

// GetBars fetches bars with caching
func (p *CachedProvider) GetBars(symbol, timeframe string, limit int) ([]Kline, error) {
	cacheKey := fmt.Sprintf("%s:%s:%d", symbol, timeframe, limit)

	if cached := p.cache.Get(cacheKey); cached != nil {
		return cached, nil
	}

	bars, err := p.inner.GetBars(symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}

	p.cache.Set(cacheKey, bars, cacheTTL(timeframe))

	return bars, nil
}

// cacheTTL returns the appropriate cache TTL for a timeframe
func cacheTTL(timeframe string) time.Duration {
	switch timeframe {
	case "1m":
		return 30 * time.Second
	case "5m":
		return 2 * time.Minute
	case "15m":
		return 5 * time.Minute
	case "1h":
		return 30 * time.Minute
	case "4h":
		return 2 * time.Hour
	case "1d":
		return 12 * time.Hour
	default:
		return 1 * time.Minute
	}
}
