package model

import "github.com/shopspring/decimal"

// Asset identifies one fungible token tracked by the ledger, either the
// chain's native token or a member of the closed wrapped-token set.
type Asset struct {
	Symbol   string
	Mint     string // on-chain mint address, empty for the native token
	Decimals int32
	// FiatFungible marks stablecoins and fiat: disposals of these assets
	// skip gain/loss accounting.
	FiatFungible bool
}

// Native reports whether the asset is the chain's native token.
func (a Asset) Native() bool {
	return a.Mint == ""
}

// UIAmount converts a smallest-unit amount to its human-readable value.
func (a Asset) UIAmount(amount uint64) decimal.Decimal {
	return decimal.NewFromUint64(amount).Shift(-a.Decimals)
}

// Amount converts a human-readable value to smallest units, truncating any
// excess precision.
func (a Asset) Amount(ui decimal.Decimal) uint64 {
	return uint64(ui.Shift(a.Decimals).Truncate(0).IntPart())
}

func (a Asset) String() string {
	return a.Symbol
}
