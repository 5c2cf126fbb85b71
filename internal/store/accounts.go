package store

import (
	"fmt"
	"sort"

	"github.com/dgraph-io/badger"

	"github.com/lotkeep-dev/lotkeep/internal/model"
)

// AddAccount begins tracking a new (address, asset) account.
func (s *Store) AddAccount(account model.TrackedAccount) error {
	if err := account.AssertLotBalance(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := accountKey(account.Address, account.Asset)
		present, err := exists(txn, key)
		if err != nil {
			return err
		}
		if present {
			return fmt.Errorf("account %s:%s: %w", account.Address, account.Asset, ErrAlreadyExists)
		}
		return setJSON(txn, key, &account)
	})
}

// GetAccount returns the tracked account for (address, asset).
func (s *Store) GetAccount(address, asset string) (model.TrackedAccount, error) {
	var account model.TrackedAccount
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, accountKey(address, asset), &account)
	})
	return account, err
}

// GetAccountTokens returns every tracked account for one address, across all
// assets.
func (s *Store) GetAccountTokens(address string) ([]model.TrackedAccount, error) {
	var accounts []model.TrackedAccount
	err := s.db.View(func(txn *badger.Txn) error {
		return collectAccounts(txn, accountAddressPrefix(address), &accounts)
	})
	return accounts, err
}

// GetAccounts returns all tracked accounts, ordered by (address, asset).
func (s *Store) GetAccounts() ([]model.TrackedAccount, error) {
	var accounts []model.TrackedAccount
	err := s.db.View(func(txn *badger.Txn) error {
		return collectAccounts(txn, []byte(accountPrefix), &accounts)
	})
	return accounts, err
}

func collectAccounts(txn *badger.Txn, prefix []byte, out *[]model.TrackedAccount) error {
	return listPrefix(txn, prefix, func(val []byte) error {
		var account model.TrackedAccount
		if err := unmarshalValue(val, &account); err != nil {
			return err
		}
		*out = append(*out, account)
		return nil
	})
}

// UpdateAccount replaces a tracked account wholesale. The caller must have
// preserved the lot-balance invariant.
func (s *Store) UpdateAccount(account model.TrackedAccount) error {
	if err := account.AssertLotBalance(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return updateAccount(txn, &account)
	})
}

// updateAccount writes an existing account inside a transaction, re-checking
// the balance invariant at the write boundary.
func updateAccount(txn *badger.Txn, account *model.TrackedAccount) error {
	if err := account.AssertLotBalance(); err != nil {
		return err
	}
	key := accountKey(account.Address, account.Asset)
	present, err := exists(txn, key)
	if err != nil {
		return err
	}
	if !present {
		return fmt.Errorf("account %s: %w", account.Key(), ErrNotFound)
	}
	return setJSON(txn, key, account)
}

// createOrUpdateAccount writes an account whether or not it is already
// tracked, for confirmation paths that implicitly start tracking a
// destination.
func createOrUpdateAccount(txn *badger.Txn, account *model.TrackedAccount) error {
	if err := account.AssertLotBalance(); err != nil {
		return err
	}
	return setJSON(txn, accountKey(account.Address, account.Asset), account)
}

// RemoveAccount stops tracking an account. Accounts that still hold lots are
// refused unless force is set.
func (s *Store) RemoveAccount(address, asset string, force bool) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := accountKey(address, asset)
		var account model.TrackedAccount
		if err := getJSON(txn, key, &account); err != nil {
			return err
		}
		if len(account.Lots) > 0 && !force {
			return fmt.Errorf("account %s:%s: %w", address, asset, ErrAccountNotEmpty)
		}
		return txn.Delete(key)
	})
}

// NextLotNumber reserves and returns the next lot number. Numbers are
// strictly increasing, persisted, and never reused.
func (s *Store) NextLotNumber() (uint64, error) {
	var n uint64
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		n, err = nextCounter(txn, []byte(lotCounterKey))
		return err
	})
	return n, err
}

// SwapLots exchanges which accounts hold the two lots, leaving lot numbers
// and acquisition histories untouched.
func (s *Store) SwapLots(lotNumberA, lotNumberB uint64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		holderA, err := findLotHolder(txn, lotNumberA)
		if err != nil {
			return err
		}
		holderB, err := findLotHolder(txn, lotNumberB)
		if err != nil {
			return err
		}
		if holderA.Key() == holderB.Key() {
			return nil
		}

		lotA := *holderA.Lot(lotNumberA)
		lotB := *holderB.Lot(lotNumberB)

		holderA.RemoveLot(lotNumberA)
		holderB.RemoveLot(lotNumberB)
		holderA.Lots = append(holderA.Lots, lotB)
		holderB.Lots = append(holderB.Lots, lotA)
		holderA.LastUpdateBalance = holderA.LastUpdateBalance - lotA.Amount + lotB.Amount
		holderB.LastUpdateBalance = holderB.LastUpdateBalance - lotB.Amount + lotA.Amount

		if err := updateAccount(txn, holderA); err != nil {
			return err
		}
		return updateAccount(txn, holderB)
	})
}

// MoveLot reassigns a lot to a different tracked account of the same asset.
func (s *Store) MoveLot(lotNumber uint64, newAddress string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		holder, err := findLotHolder(txn, lotNumber)
		if err != nil {
			return err
		}
		if holder.Address == newAddress {
			return nil
		}

		var dest model.TrackedAccount
		if err := getJSON(txn, accountKey(newAddress, holder.Asset), &dest); err != nil {
			return fmt.Errorf("destination %s:%s: %w", newAddress, holder.Asset, err)
		}

		lot := *holder.Lot(lotNumber)
		holder.RemoveLot(lotNumber)
		holder.LastUpdateBalance -= lot.Amount
		dest.Lots = append(dest.Lots, lot)
		dest.LastUpdateBalance += lot.Amount

		if err := updateAccount(txn, holder); err != nil {
			return err
		}
		return updateAccount(txn, &dest)
	})
}

// DeleteLot erases a live lot. Lots referenced by disposal history are
// immutable and refused.
func (s *Store) DeleteLot(lotNumber uint64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		disposed, err := lotWasDisposed(txn, lotNumber)
		if err != nil {
			return err
		}
		if disposed {
			return fmt.Errorf("lot %d: %w", lotNumber, ErrLotDisposed)
		}

		holder, err := findLotHolder(txn, lotNumber)
		if err != nil {
			return err
		}
		lot := *holder.Lot(lotNumber)
		holder.RemoveLot(lotNumber)
		holder.LastUpdateBalance -= lot.Amount
		return updateAccount(txn, holder)
	})
}

// findLotHolder scans tracked accounts for the one holding the lot.
func findLotHolder(txn *badger.Txn, lotNumber uint64) (*model.TrackedAccount, error) {
	var accounts []model.TrackedAccount
	if err := collectAccounts(txn, []byte(accountPrefix), &accounts); err != nil {
		return nil, err
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Key() < accounts[j].Key()
	})
	for i := range accounts {
		if accounts[i].Lot(lotNumber) != nil {
			return &accounts[i], nil
		}
	}
	return nil, fmt.Errorf("lot %d: %w", lotNumber, ErrNotFound)
}
