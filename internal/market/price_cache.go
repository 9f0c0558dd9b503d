package market

import (
	"strings"
	"sync"
	"time"
)

// PriceCache holds the latest quote per asset. Quotes older than the
// staleness window are not served; a stale USD price is worse than none.
type PriceCache struct {
	mu     sync.RWMutex
	latest map[string]cachedPrice
}

type cachedPrice struct {
	price float64
	asOf  time.Time
}

const staleAfter = 15 * time.Minute

func NewPriceCache() *PriceCache {
	return &PriceCache{latest: make(map[string]cachedPrice)}
}

func (c *PriceCache) Set(asset string, price float64, asOf time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest[strings.ToUpper(asset)] = cachedPrice{price: price, asOf: asOf}
}

// GetLatestPrice returns the freshest price for the asset, or (0, false)
// when there is none or it has gone stale.
func (c *PriceCache) GetLatestPrice(asset string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.latest[strings.ToUpper(asset)]
	if !ok || time.Since(p.asOf) > staleAfter {
		return 0, false
	}
	return p.price, true
}
