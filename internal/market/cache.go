package market

import (
	"sync"
	"time"
)

type cacheKey struct {
	Symbol   string
	Interval string
	Kind     string // "candles" | "price"
}

type cacheEntry struct {
	candles []Candle
	price   float64
	expires time.Time
}

// ttlCache is a short-lived response cache. Entries live for tens of
// seconds, just long enough to absorb overlapping cycles hitting the
// same symbol.
type ttlCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[cacheKey]cacheEntry
	clock   func() time.Time
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{
		ttl:     ttl,
		entries: make(map[cacheKey]cacheEntry),
		clock:   time.Now,
	}
}

func (c *ttlCache) getCandles(symbol, interval string) ([]Candle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[cacheKey{symbol, interval, "candles"}]
	if !ok || c.clock().After(e.expires) {
		return nil, false
	}
	return e.candles, true
}

func (c *ttlCache) setCandles(symbol, interval string, candles []Candle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{symbol, interval, "candles"}] = cacheEntry{
		candles: candles,
		expires: c.clock().Add(c.ttl),
	}
}

func (c *ttlCache) getPrice(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[cacheKey{symbol, "", "price"}]
	if !ok || c.clock().After(e.expires) {
		return 0, false
	}
	return e.price, true
}

func (c *ttlCache) setPrice(symbol string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{symbol, "", "price"}] = cacheEntry{
		price:   price,
		expires: c.clock().Add(c.ttl),
	}
}
