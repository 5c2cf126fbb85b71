package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssertLotBalance(t *testing.T) {
	acct := TrackedAccount{
		Address:           "addr1",
		Asset:             "SOL",
		LastUpdateBalance: 150,
		Lots: []Lot{
			{Number: 1, Amount: 100},
			{Number: 2, Amount: 50},
		},
	}
	require.NoError(t, acct.AssertLotBalance())

	acct.LastUpdateBalance = 151
	err := acct.AssertLotBalance()
	require.Error(t, err)
	var inv *InvariantError
	assert.ErrorAs(t, err, &inv)
}

func TestLotSplit(t *testing.T) {
	lot := Lot{
		Number: 7,
		Acquisition: Acquisition{
			When:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			Price: decimal.RequireFromString("1.50"),
			Kind:  AcquireTransaction,
		},
		Amount: 100,
	}

	detached := lot.Split(30)
	assert.Equal(t, uint64(70), lot.Amount)
	assert.Equal(t, uint64(30), detached.Amount)
	assert.Equal(t, lot.Number, detached.Number)
	assert.Equal(t, lot.Acquisition, detached.Acquisition)
}

func TestAssetAmountConversion(t *testing.T) {
	sol := Asset{Symbol: "SOL", Decimals: 9}
	assert.Equal(t, "1.5", sol.UIAmount(1_500_000_000).String())
	assert.Equal(t, uint64(1_500_000_000), sol.Amount(decimal.RequireFromString("1.5")))

	usdc := Asset{Symbol: "USDC", Mint: "EPjFW", Decimals: 6, FiatFungible: true}
	assert.False(t, usdc.Native())
	assert.Equal(t, "0.000001", usdc.UIAmount(1).String())
}
