package asset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg := Default()
	assert.NotEmpty(t, reg.All())

	sol, ok := reg.Get("SOL")
	require.True(t, ok)
	assert.True(t, sol.Native())
	assert.False(t, sol.FiatFungible)

	usdc, ok := reg.Get("usdc")
	require.True(t, ok, "symbol lookup is case-insensitive")
	assert.True(t, usdc.FiatFungible)
	assert.Equal(t, int32(6), usdc.Decimals)
}

func TestByMint(t *testing.T) {
	reg := Default()

	a, ok := reg.ByMint("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	require.True(t, ok)
	assert.Equal(t, "USDC", a.Symbol)

	_, ok = reg.ByMint("nope")
	assert.False(t, ok)
}

func TestMustGet(t *testing.T) {
	reg := Default()

	_, err := reg.MustGet("SOL")
	require.NoError(t, err)

	_, err = reg.MustGet("DOGE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOGE")
}
