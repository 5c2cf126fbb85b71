package store

import (
	"time"

	"github.com/dgraph-io/badger"
	"github.com/shopspring/decimal"

	"github.com/lotkeep-dev/lotkeep/internal/lots"
	"github.com/lotkeep-dev/lotkeep/internal/model"
)

// DisposalRequest describes one disposal against a single tracked account.
type DisposalRequest struct {
	Address    string
	Asset      string
	Amount     uint64 // smallest units
	Method     lots.SelectionMethod
	LotNumbers []uint64 // for Manual selection
	When       time.Time
	Price      decimal.Decimal // fiat per UI unit at disposal
	Kind       model.DisposalKind
	Fee        uint64
	Signature  string
}

// RecordDisposal consumes lots from the account to realize the disposal and
// appends the resulting immutable records to disposal history. Partially
// consumed lots keep their number and acquisition with the reduced amount. A
// zero-amount request disposes nothing. The whole disposal applies
// atomically or not at all.
func (s *Store) RecordDisposal(req DisposalRequest) ([]model.DisposedLot, error) {
	var disposed []model.DisposedLot
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		disposed, err = recordDisposal(txn, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return disposed, nil
}

func recordDisposal(txn *badger.Txn, req DisposalRequest) ([]model.DisposedLot, error) {
	var account model.TrackedAccount
	if err := getJSON(txn, accountKey(req.Address, req.Asset), &account); err != nil {
		return nil, err
	}
	if err := account.AssertLotBalance(); err != nil {
		return nil, err
	}

	ext, err := lots.Extract(account.Lots, req.Amount, req.Method, req.LotNumbers)
	if err != nil {
		return nil, err
	}

	account.Lots = ext.Remaining
	account.LastUpdateBalance -= req.Amount
	if err := updateAccount(txn, &account); err != nil {
		return nil, err
	}

	disposed := make([]model.DisposedLot, 0, len(ext.Extracted))
	fee := req.Fee
	for _, lot := range ext.Extracted {
		dl := model.DisposedLot{
			LotNumber:   lot.Number,
			Asset:       req.Asset,
			Acquisition: lot.Acquisition,
			Amount:      lot.Amount,
			When:        req.When,
			Price:       req.Price,
			Kind:        req.Kind,
			Fee:         fee,
			Signature:   req.Signature,
		}
		// The fee is paid once per disposal, so only the first record carries it.
		fee = 0
		if err := appendDisposed(txn, dl); err != nil {
			return nil, err
		}
		disposed = append(disposed, dl)
	}
	return disposed, nil
}

// DropLots is the same pipeline as RecordDisposal without price or gain
// semantics: it removes lots and discards their value to correct bookkeeping
// errors.
func (s *Store) DropLots(address, asset string, amount uint64, method lots.SelectionMethod, lotNumbers []uint64, when time.Time) ([]model.DisposedLot, error) {
	return s.RecordDisposal(DisposalRequest{
		Address:    address,
		Asset:      asset,
		Amount:     amount,
		Method:     method,
		LotNumbers: lotNumbers,
		When:       when,
		Price:      decimal.Zero,
		Kind:       model.DisposeDrop,
	})
}

// DisposedLots returns the full disposal history in append order.
func (s *Store) DisposedLots() ([]model.DisposedLot, error) {
	var disposed []model.DisposedLot
	err := s.db.View(func(txn *badger.Txn) error {
		return listPrefix(txn, []byte(disposedPrefix), func(val []byte) error {
			var dl model.DisposedLot
			if err := unmarshalValue(val, &dl); err != nil {
				return err
			}
			disposed = append(disposed, dl)
			return nil
		})
	})
	return disposed, err
}

func appendDisposed(txn *badger.Txn, dl model.DisposedLot) error {
	seq, err := nextCounter(txn, []byte(disposedCounterKey))
	if err != nil {
		return err
	}
	return setJSON(txn, disposedKey(seq), &dl)
}

func lotWasDisposed(txn *badger.Txn, lotNumber uint64) (bool, error) {
	found := false
	err := listPrefix(txn, []byte(disposedPrefix), func(val []byte) error {
		var dl model.DisposedLot
		if err := unmarshalValue(val, &dl); err != nil {
			return err
		}
		if dl.LotNumber == lotNumber {
			found = true
		}
		return nil
	})
	return found, err
}
