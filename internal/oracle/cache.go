package oracle

import (
	"strings"
	"sync"
	"time"
)

// priceCache is a read-mostly per-symbol memo. Every served price is written
// back with its timestamp, so a later partial feed failure can reuse a recent
// real price instead of jumping straight to the static fallback.
type priceCache struct {
	mu      sync.RWMutex
	entries map[string]USDPrice
}

func newPriceCache() *priceCache {
	return &priceCache{entries: make(map[string]USDPrice)}
}

func (c *priceCache) get(symbol string, now time.Time, ttl time.Duration) (USDPrice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[strings.ToUpper(symbol)]
	if !ok {
		return USDPrice{}, false
	}
	if now.Sub(entry.FetchedAt) > ttl {
		return USDPrice{}, false
	}
	return entry, true
}

func (c *priceCache) put(price USDPrice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[strings.ToUpper(price.Symbol)] = price
}
