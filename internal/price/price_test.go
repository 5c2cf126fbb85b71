package price

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingOracle struct {
	currentCalls    int
	historicalCalls int
	price           decimal.Decimal
}

func (o *countingOracle) CurrentPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	o.currentCalls++
	return o.price, nil
}

func (o *countingOracle) HistoricalPrice(_ context.Context, _ string, _ time.Time) (decimal.Decimal, error) {
	o.historicalCalls++
	return o.price, nil
}

func TestCurrentPriceTTL(t *testing.T) {
	oracle := &countingOracle{price: decimal.RequireFromString("1.50")}
	cache := NewCache(oracle)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	p, err := cache.CurrentPrice(ctx, "SOL")
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("1.50")))

	// Within the TTL window the oracle is not consulted again.
	_, err = cache.CurrentPrice(ctx, "SOL")
	require.NoError(t, err)
	assert.Equal(t, 1, oracle.currentCalls)

	// Just inside the window.
	now = now.Add(29 * time.Second)
	_, err = cache.CurrentPrice(ctx, "SOL")
	require.NoError(t, err)
	assert.Equal(t, 1, oracle.currentCalls)

	// Expired.
	now = now.Add(2 * time.Second)
	_, err = cache.CurrentPrice(ctx, "SOL")
	require.NoError(t, err)
	assert.Equal(t, 2, oracle.currentCalls)
}

func TestCurrentPricePerAsset(t *testing.T) {
	oracle := &countingOracle{price: decimal.NewFromInt(1)}
	cache := NewCache(oracle)

	ctx := context.Background()
	_, _ = cache.CurrentPrice(ctx, "SOL")
	_, _ = cache.CurrentPrice(ctx, "USDC")
	assert.Equal(t, 2, oracle.currentCalls, "assets cache independently")
}

func TestHistoricalPriceMemoized(t *testing.T) {
	oracle := &countingOracle{price: decimal.NewFromInt(2)}
	cache := NewCache(oracle)

	ctx := context.Background()
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := cache.HistoricalPrice(ctx, "SOL", date)
	require.NoError(t, err)
	_, err = cache.HistoricalPrice(ctx, "SOL", date)
	require.NoError(t, err)
	assert.Equal(t, 1, oracle.historicalCalls, "historical prices never expire")

	_, err = cache.HistoricalPrice(ctx, "SOL", date.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, oracle.historicalCalls)
}
