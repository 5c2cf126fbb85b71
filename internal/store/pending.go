package store

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/lotkeep-dev/lotkeep/internal/lots"
	"github.com/lotkeep-dev/lotkeep/internal/model"
)

// Pending operations move Pending -> Confirmed or Pending -> Cancelled.
// Confirmation applies the operation's ledger mutation and removes the
// record; cancellation only removes the record. Terminal records are gone,
// not archived.

// recordPending writes a new pending record, refusing to race an existing
// one on the same key. Two pending records under one signature mean the
// caller's bookkeeping has already diverged from reality, which is fatal.
func recordPending(txn *badger.Txn, key []byte, v any) error {
	present, err := exists(txn, key)
	if err != nil {
		return err
	}
	if present {
		return &model.InvariantError{Reason: fmt.Sprintf("pending record %s already exists", key)}
	}
	return setJSON(txn, key, v)
}

func deletePending(txn *badger.Txn, key []byte) error {
	present, err := exists(txn, key)
	if err != nil {
		return err
	}
	if !present {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return txn.Delete(key)
}

// RecordDeposit opens a pending deposit for a submitted transaction.
func (s *Store) RecordDeposit(dep model.PendingDeposit) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return recordPending(txn, pendingDepositKey(dep.Signature), &dep)
	})
}

// ConfirmDeposit applies a confirmed deposit: the destination account is
// created if needed, its balance grows, and a new lot dated at the deposit
// is attached at the given acquisition price.
func (s *Store) ConfirmDeposit(signature string, when time.Time, price decimal.Decimal) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := pendingDepositKey(signature)
		var dep model.PendingDeposit
		if err := getJSON(txn, key, &dep); err != nil {
			return err
		}

		account, err := loadOrInitAccount(txn, dep.ToAddress, dep.Asset,
			fmt.Sprintf("%s deposit", dep.Exchange))
		if err != nil {
			return err
		}

		lotNumber, err := nextCounter(txn, []byte(lotCounterKey))
		if err != nil {
			return err
		}
		account.Lots = append(account.Lots, model.Lot{
			Number: lotNumber,
			Acquisition: model.Acquisition{
				When:      when,
				Price:     price,
				Kind:      model.AcquireTransaction,
				Signature: signature,
			},
			Amount: dep.Amount,
		})
		account.LastUpdateBalance += dep.Amount

		if err := createOrUpdateAccount(txn, account); err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// CancelDeposit discards a pending deposit with no ledger effect: the source
// side was never debited by this subsystem.
func (s *Store) CancelDeposit(signature string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return deletePending(txn, pendingDepositKey(signature))
	})
}

// PendingDeposits lists open deposits.
func (s *Store) PendingDeposits() ([]model.PendingDeposit, error) {
	var deps []model.PendingDeposit
	err := s.db.View(func(txn *badger.Txn) error {
		return listPrefix(txn, []byte(pendingDepositPrefix), func(val []byte) error {
			var dep model.PendingDeposit
			if err := unmarshalValue(val, &dep); err != nil {
				return err
			}
			deps = append(deps, dep)
			return nil
		})
	})
	return deps, err
}

// RecordWithdrawal opens a pending exchange withdrawal. The backing lots are
// selected now, but stay live in the source account until confirmation; the
// record only marks them.
func (s *Store) RecordWithdrawal(w model.PendingWithdrawal) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var source model.TrackedAccount
		if err := getJSON(txn, accountKey(w.FromAddress, w.Asset), &source); err != nil {
			return err
		}
		ext, err := lots.Extract(source.Lots, w.Amount, lots.FIFO, nil)
		if err != nil {
			return err
		}
		w.Lots = ext.Extracted
		return recordPending(txn, pendingWithdrawalKey(w.Tag), &w)
	})
}

// ConfirmWithdrawal applies a completed withdrawal: the marked lots leave
// the exchange account; the withdrawn amount (net of fee) moves to the
// destination account preserving lot numbers and acquisitions, and the fee
// portion is disposed as consumed.
func (s *Store) ConfirmWithdrawal(tag string, when time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := pendingWithdrawalKey(tag)
		var w model.PendingWithdrawal
		if err := getJSON(txn, key, &w); err != nil {
			return err
		}

		var source model.TrackedAccount
		if err := getJSON(txn, accountKey(w.FromAddress, w.Asset), &source); err != nil {
			return err
		}

		numbers := make([]uint64, 0, len(w.Lots))
		for _, lot := range w.Lots {
			numbers = append(numbers, lot.Number)
		}
		ext, err := lots.Extract(source.Lots, w.Amount, lots.Manual, numbers)
		if err != nil {
			return err
		}
		source.Lots = ext.Remaining
		source.LastUpdateBalance -= w.Amount
		if err := updateAccount(txn, &source); err != nil {
			return err
		}

		// Peel the fee off the tail of the extraction; the rest arrives at
		// the destination intact.
		moved, err := lots.Extract(ext.Extracted, w.Amount-w.Fee, lots.FIFO, nil)
		if err != nil {
			return err
		}
		for _, feeLot := range moved.Remaining {
			if err := appendDisposed(txn, model.DisposedLot{
				LotNumber:   feeLot.Number,
				Asset:       w.Asset,
				Acquisition: feeLot.Acquisition,
				Amount:      feeLot.Amount,
				When:        when,
				Price:       decimal.Zero,
				Kind:        model.DisposeWithdrawalFee,
				Fee:         feeLot.Amount,
			}); err != nil {
				return err
			}
		}

		dest, err := loadOrInitAccount(txn, w.ToAddress, w.Asset,
			fmt.Sprintf("%s withdrawal", w.Exchange))
		if err != nil {
			return err
		}
		for _, lot := range moved.Extracted {
			dest.Lots = append(dest.Lots, lot)
			dest.LastUpdateBalance += lot.Amount
		}
		if err := createOrUpdateAccount(txn, dest); err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// CancelWithdrawal discards a pending withdrawal. Nothing needs restoring:
// the marked lots never left the source account.
func (s *Store) CancelWithdrawal(tag string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return deletePending(txn, pendingWithdrawalKey(tag))
	})
}

// PendingWithdrawals lists open withdrawals.
func (s *Store) PendingWithdrawals() ([]model.PendingWithdrawal, error) {
	var ws []model.PendingWithdrawal
	err := s.db.View(func(txn *badger.Txn) error {
		return listPrefix(txn, []byte(pendingWithdrawalPrefix), func(val []byte) error {
			var w model.PendingWithdrawal
			if err := unmarshalValue(val, &w); err != nil {
				return err
			}
			ws = append(ws, w)
			return nil
		})
	})
	return ws, err
}

// RecordTransfer opens a pending transfer. The source must already be
// tracked; the destination need not be.
func (s *Store) RecordTransfer(t model.PendingTransfer) error {
	return s.db.Update(func(txn *badger.Txn) error {
		present, err := exists(txn, accountKey(t.FromAddress, t.FromAsset))
		if err != nil {
			return err
		}
		if !present {
			return fmt.Errorf("source account %s:%s: %w", t.FromAddress, t.FromAsset, ErrNotFound)
		}
		return recordPending(txn, pendingTransferKey(t.Signature), &t)
	})
}

// ConfirmTransfer moves the transferred lots from source to destination,
// creating the destination account if needed. amount overrides the recorded
// amount for transfers whose size was unknown until confirmation (sweep
// everything); if both are absent the whole source balance moves.
func (s *Store) ConfirmTransfer(signature string, when time.Time, amount *uint64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := pendingTransferKey(signature)
		var t model.PendingTransfer
		if err := getJSON(txn, key, &t); err != nil {
			return err
		}

		var source model.TrackedAccount
		if err := getJSON(txn, accountKey(t.FromAddress, t.FromAsset), &source); err != nil {
			return err
		}

		moveAmount := source.LotTotal()
		switch {
		case amount != nil:
			moveAmount = *amount
		case t.Amount != nil:
			moveAmount = *t.Amount
		}

		method, err := lots.ParseMethod(t.SelectionMethod)
		if err != nil {
			return err
		}
		ext, err := lots.Extract(source.Lots, moveAmount, method, t.LotNumbers)
		if err != nil {
			return err
		}

		source.Lots = ext.Remaining
		source.LastUpdateBalance -= moveAmount
		if err := updateAccount(txn, &source); err != nil {
			return err
		}

		dest, err := loadOrInitAccount(txn, t.ToAddress, t.ToAsset,
			fmt.Sprintf("transfer from %s", t.FromAddress))
		if err != nil {
			return err
		}
		// Ownership changes; lot numbers and acquisition histories do not.
		dest.Lots = append(dest.Lots, ext.Extracted...)
		dest.LastUpdateBalance += moveAmount
		if err := createOrUpdateAccount(txn, dest); err != nil {
			return err
		}

		log.Debug().
			Str("signature", signature).
			Str("date", when.Format("2006-01-02")).
			Uint64("amount", moveAmount).
			Msg("transfer confirmed")
		return txn.Delete(key)
	})
}

// CancelTransfer discards a pending transfer with no ledger effect.
func (s *Store) CancelTransfer(signature string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return deletePending(txn, pendingTransferKey(signature))
	})
}

// PendingTransfers lists open transfers.
func (s *Store) PendingTransfers() ([]model.PendingTransfer, error) {
	var ts []model.PendingTransfer
	err := s.db.View(func(txn *badger.Txn) error {
		return listPrefix(txn, []byte(pendingTransferPrefix), func(val []byte) error {
			var t model.PendingTransfer
			if err := unmarshalValue(val, &t); err != nil {
				return err
			}
			ts = append(ts, t)
			return nil
		})
	})
	return ts, err
}

// RecordSwap opens a pending asset-to-asset swap.
func (s *Store) RecordSwap(sw model.PendingSwap) error {
	return s.db.Update(func(txn *badger.Txn) error {
		present, err := exists(txn, accountKey(sw.Address, sw.FromAsset))
		if err != nil {
			return err
		}
		if !present {
			return fmt.Errorf("account %s:%s: %w", sw.Address, sw.FromAsset, ErrNotFound)
		}
		return recordPending(txn, pendingSwapKey(sw.Signature), &sw)
	})
}

// ConfirmSwap applies a confirmed swap: the realized from-amount is disposed
// at the from-asset price, and a new to-asset lot is created at the to-asset
// price, both dated at confirmation.
func (s *Store) ConfirmSwap(signature string, when time.Time, fromAmount, toAmount uint64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := pendingSwapKey(signature)
		var sw model.PendingSwap
		if err := getJSON(txn, key, &sw); err != nil {
			return err
		}

		method, err := lots.ParseMethod(sw.SelectionMethod)
		if err != nil {
			return err
		}
		if _, err := recordDisposal(txn, DisposalRequest{
			Address:    sw.Address,
			Asset:      sw.FromAsset,
			Amount:     fromAmount,
			Method:     method,
			LotNumbers: sw.LotNumbers,
			When:       when,
			Price:      sw.FromPrice,
			Kind:       model.DisposeSwap,
			Signature:  signature,
		}); err != nil {
			return err
		}

		dest, err := loadOrInitAccount(txn, sw.Address, sw.ToAsset,
			fmt.Sprintf("swapped from %s", sw.FromAsset))
		if err != nil {
			return err
		}
		lotNumber, err := nextCounter(txn, []byte(lotCounterKey))
		if err != nil {
			return err
		}
		dest.Lots = append(dest.Lots, model.Lot{
			Number: lotNumber,
			Acquisition: model.Acquisition{
				When:      when,
				Price:     sw.ToPrice,
				Kind:      model.AcquireSwap,
				Signature: signature,
			},
			Amount: toAmount,
		})
		dest.LastUpdateBalance += toAmount
		if err := createOrUpdateAccount(txn, dest); err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// CancelSwap discards a pending swap with no ledger effect.
func (s *Store) CancelSwap(signature string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return deletePending(txn, pendingSwapKey(signature))
	})
}

// PendingSwaps lists open swaps.
func (s *Store) PendingSwaps() ([]model.PendingSwap, error) {
	var sws []model.PendingSwap
	err := s.db.View(func(txn *badger.Txn) error {
		return listPrefix(txn, []byte(pendingSwapPrefix), func(val []byte) error {
			var sw model.PendingSwap
			if err := unmarshalValue(val, &sw); err != nil {
				return err
			}
			sws = append(sws, sw)
			return nil
		})
	})
	return sws, err
}

// loadOrInitAccount returns the tracked account, or a fresh zero-balance
// account with the given description when (address, asset) is untracked.
func loadOrInitAccount(txn *badger.Txn, address, asset, description string) (*model.TrackedAccount, error) {
	var account model.TrackedAccount
	err := getJSON(txn, accountKey(address, asset), &account)
	switch {
	case err == nil:
		return &account, nil
	case isNotFound(err):
		return &model.TrackedAccount{
			Address:     address,
			Asset:       asset,
			Description: description,
		}, nil
	default:
		return nil, err
	}
}
