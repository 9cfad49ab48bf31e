// internal/monitor/price_cache.go
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// PriceCache throttles lookups against a PriceSource: a quote younger than
// ttl is served from memory and concurrent misses for one mint share a
// single upstream request. Failures are not cached.
type PriceCache struct {
	source PriceSource
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	entries map[solana.PublicKey]cachedPrice

	hits   uint64
	misses uint64
}

type cachedPrice struct {
	price float64
	at    time.Time
}

// NewPriceCache wraps source.
func NewPriceCache(source PriceSource, ttl time.Duration, logger *zap.Logger) *PriceCache {
	return &PriceCache{
		source:  source,
		ttl:     ttl,
		logger:  logger.Named("price-cache"),
		now:     time.Now,
		entries: make(map[solana.PublicKey]cachedPrice),
	}
}

// Price implements PriceSource.
func (c *PriceCache) Price(ctx context.Context, mint solana.PublicKey) (float64, error) {
	c.mu.Lock()
	if e, ok := c.entries[mint]; ok && c.now().Sub(e.at) < c.ttl {
		c.hits++
		c.mu.Unlock()
		return e.price, nil
	}
	c.misses++
	c.mu.Unlock()

	v, err, shared := c.group.Do(mint.String(), func() (interface{}, error) {
		price, err := c.source.Price(ctx, mint)
		if err != nil {
			return 0.0, err
		}
		c.mu.Lock()
		c.entries[mint] = cachedPrice{price: price, at: c.now()}
		c.mu.Unlock()
		return price, nil
	})
	if err != nil {
		return 0, err
	}
	if shared {
		c.logger.Debug("Price request shared", zap.String("token", mint.String()))
	}
	return v.(float64), nil
}

// Forget drops the cached quote for mint.
func (c *PriceCache) Forget(mint solana.PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, mint)
}

// Stats returns cache hits and misses.
func (c *PriceCache) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
