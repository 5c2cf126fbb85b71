// Package gains computes cost basis, income, and capital gain for lots.
package gains

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lotkeep-dev/lotkeep/internal/model"
)

// longTermHold is the holding period at which a gain becomes long-term.
const longTermHold = 365 * 24 * time.Hour

// Basis returns the fiat value of the lot at acquisition.
func Basis(asset model.Asset, lot model.Lot) decimal.Decimal {
	return asset.UIAmount(lot.Amount).Mul(lot.Acquisition.Price)
}

// Income returns the fiat income realized at acquisition: the full basis for
// income-bearing acquisition kinds (rewards, in-kind income), zero otherwise.
func Income(asset model.Asset, lot model.Lot) decimal.Decimal {
	if lot.Acquisition.Kind.IncomeBearing() {
		return Basis(asset, lot)
	}
	return decimal.Zero
}

// CapGain returns the capital gain of the lot against the given unit price
// (disposal price for disposed lots, current price for unrealized gain).
func CapGain(asset model.Asset, lot model.Lot, price decimal.Decimal) decimal.Decimal {
	return asset.UIAmount(lot.Amount).Mul(price).Sub(Basis(asset, lot))
}

// IsLongTerm reports whether a holding period of acquisition..disposal
// qualifies as long-term. Exactly 365 days qualifies.
func IsLongTerm(acquisition, disposal time.Time) bool {
	return disposal.Sub(acquisition) >= longTermHold
}

// DisposedBasis returns the fiat value of a disposed lot at acquisition.
func DisposedBasis(asset model.Asset, dl model.DisposedLot) decimal.Decimal {
	return asset.UIAmount(dl.Amount).Mul(dl.Acquisition.Price)
}

// DisposedGain returns the realized capital gain of a disposed lot.
func DisposedGain(asset model.Asset, dl model.DisposedLot) decimal.Decimal {
	return asset.UIAmount(dl.Amount).Mul(dl.Price).Sub(DisposedBasis(asset, dl))
}
