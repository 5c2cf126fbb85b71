// Package price decorates a price oracle with an in-process cache: current
// prices expire after a short TTL, historical prices never change and are
// memoized for the process lifetime.
package price

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// CurrentPriceTTL bounds how stale a cached current price may be.
const CurrentPriceTTL = 30 * time.Second

// Oracle supplies unit prices for an asset.
type Oracle interface {
	CurrentPrice(ctx context.Context, asset string) (decimal.Decimal, error)
	HistoricalPrice(ctx context.Context, asset string, date time.Time) (decimal.Decimal, error)
}

type cachedPrice struct {
	price   decimal.Decimal
	fetched time.Time
}

// Cache is a caching Oracle. It is safe for concurrent use.
type Cache struct {
	oracle Oracle
	now    func() time.Time

	mu         sync.Mutex
	current    map[string]cachedPrice
	historical map[string]decimal.Decimal
}

// NewCache wraps an oracle with caching.
func NewCache(oracle Oracle) *Cache {
	return &Cache{
		oracle:     oracle,
		now:        time.Now,
		current:    make(map[string]cachedPrice),
		historical: make(map[string]decimal.Decimal),
	}
}

// CurrentPrice returns the asset's current unit price, consulting the oracle
// at most once per TTL window.
func (c *Cache) CurrentPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	c.mu.Lock()
	if cached, ok := c.current[asset]; ok && c.now().Sub(cached.fetched) < CurrentPriceTTL {
		c.mu.Unlock()
		return cached.price, nil
	}
	c.mu.Unlock()

	price, err := c.oracle.CurrentPrice(ctx, asset)
	if err != nil {
		return decimal.Zero, err
	}

	c.mu.Lock()
	c.current[asset] = cachedPrice{price: price, fetched: c.now()}
	c.mu.Unlock()
	return price, nil
}

// HistoricalPrice returns the asset's unit price on a date, memoized
// indefinitely.
func (c *Cache) HistoricalPrice(ctx context.Context, asset string, date time.Time) (decimal.Decimal, error) {
	key := asset + ":" + date.Format("2006-01-02")

	c.mu.Lock()
	if price, ok := c.historical[key]; ok {
		c.mu.Unlock()
		return price, nil
	}
	c.mu.Unlock()

	price, err := c.oracle.HistoricalPrice(ctx, asset, date)
	if err != nil {
		return decimal.Zero, err
	}

	c.mu.Lock()
	c.historical[key] = price
	c.mu.Unlock()
	return price, nil
}
