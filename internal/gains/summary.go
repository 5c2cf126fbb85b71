package gains

import (
	"github.com/shopspring/decimal"

	"github.com/lotkeep-dev/lotkeep/internal/model"
)

// Summary aggregates realized totals over a set of disposed lots.
type Summary struct {
	Amount        uint64 // smallest units disposed
	Basis         decimal.Decimal
	Proceeds      decimal.Decimal
	Income        decimal.Decimal
	ShortTermGain decimal.Decimal
	LongTermGain  decimal.Decimal
}

// Gain returns the total realized capital gain.
func (s Summary) Gain() decimal.Decimal {
	return s.ShortTermGain.Add(s.LongTermGain)
}

// Tax returns the estimated tax liability under the given rates.
func (s Summary) Tax(rate model.TaxRate) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	tax := s.Income.Mul(rate.Income).Div(hundred)
	tax = tax.Add(s.ShortTermGain.Mul(rate.ShortTerm).Div(hundred))
	return tax.Add(s.LongTermGain.Mul(rate.LongTerm).Div(hundred))
}

// Summarize folds disposed lots of one asset into realized totals. Disposals
// of fiat-fungible assets contribute amount and proceeds but no gain or
// income.
func Summarize(asset model.Asset, disposed []model.DisposedLot) Summary {
	s := Summary{
		Basis:         decimal.Zero,
		Proceeds:      decimal.Zero,
		Income:        decimal.Zero,
		ShortTermGain: decimal.Zero,
		LongTermGain:  decimal.Zero,
	}
	for _, dl := range disposed {
		s.Amount += dl.Amount
		s.Proceeds = s.Proceeds.Add(asset.UIAmount(dl.Amount).Mul(dl.Price))
		if asset.FiatFungible {
			continue
		}
		s.Basis = s.Basis.Add(DisposedBasis(asset, dl))
		if dl.Acquisition.Kind.IncomeBearing() {
			s.Income = s.Income.Add(DisposedBasis(asset, dl))
		}
		gain := DisposedGain(asset, dl)
		if IsLongTerm(dl.Acquisition.When, dl.When) {
			s.LongTermGain = s.LongTermGain.Add(gain)
		} else {
			s.ShortTermGain = s.ShortTermGain.Add(gain)
		}
	}
	return s
}
