package importer

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lotkeep-dev/lotkeep/internal/asset"
	"github.com/lotkeep-dev/lotkeep/internal/lots"
	"github.com/lotkeep-dev/lotkeep/internal/model"
	"github.com/lotkeep-dev/lotkeep/internal/store"
)

// ApplyResult summarizes what an import changed.
type ApplyResult struct {
	LotsCreated int
	Disposed    []model.DisposedLot
}

// Apply records fills against the tracked account at address. Buys become
// exchange-fill lots; sells dispose FIFO at the fill price. Fills for assets
// the registry does not know are rejected before anything is written.
func Apply(st *store.Store, assets *asset.Registry, address string, fills []model.Fill) (ApplyResult, error) {
	var result ApplyResult

	for _, fill := range fills {
		if _, err := assets.MustGet(fill.Asset); err != nil {
			return ApplyResult{}, err
		}
	}

	for _, fill := range fills {
		a, _ := assets.MustGet(fill.Asset)
		amount := a.Amount(fill.Amount)
		when := midnight(fill.When)

		switch fill.Side {
		case model.FillBuy:
			if err := applyBuy(st, address, a, amount, when, fill); err != nil {
				return ApplyResult{}, err
			}
			result.LotsCreated++

		case model.FillSell:
			disposed, err := st.RecordDisposal(store.DisposalRequest{
				Address: address,
				Asset:   a.Symbol,
				Amount:  amount,
				Method:  lots.FIFO,
				When:    when,
				Price:   fill.Price,
				Kind:    model.DisposeSale,
			})
			if err != nil {
				return ApplyResult{}, fmt.Errorf("sell fill %s: %w", fill.OrderID, err)
			}
			result.Disposed = append(result.Disposed, disposed...)

		default:
			return ApplyResult{}, fmt.Errorf("fill %s: unknown side %q", fill.OrderID, fill.Side)
		}
	}
	return result, nil
}

func applyBuy(st *store.Store, address string, a model.Asset, amount uint64, when time.Time, fill model.Fill) error {
	account, err := st.GetAccount(address, a.Symbol)
	if err != nil {
		if !isNotFound(err) {
			return err
		}
		account = model.TrackedAccount{
			Address:     address,
			Asset:       a.Symbol,
			Description: fmt.Sprintf("%s fills", fill.Exchange),
		}
		if err := st.AddAccount(account); err != nil {
			return err
		}
	}

	lotNumber, err := st.NextLotNumber()
	if err != nil {
		return err
	}
	account.Lots = append(account.Lots, model.Lot{
		Number: lotNumber,
		Acquisition: model.Acquisition{
			When:     when,
			Price:    fill.Price,
			Kind:     model.AcquireExchangeFill,
			Exchange: fill.Exchange,
			OrderID:  fill.OrderID,
		},
		Amount: amount,
	})
	account.LastUpdateBalance += amount

	log.Info().
		Str("address", address).
		Str("asset", a.Symbol).
		Str("orderID", fill.OrderID).
		Uint64("amount", amount).
		Msg("exchange fill lot recorded")
	return st.UpdateAccount(account)
}

func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
