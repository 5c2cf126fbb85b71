package store

import (
	"fmt"
	"sort"

	"github.com/dgraph-io/badger"
	"github.com/shopspring/decimal"

	"github.com/lotkeep-dev/lotkeep/internal/model"
)

// DefaultTaxRate is used until the owner configures their own rates.
func DefaultTaxRate() model.TaxRate {
	return model.TaxRate{
		Income:    decimal.NewFromInt(30),
		ShortTerm: decimal.NewFromInt(30),
		LongTerm:  decimal.NewFromInt(15),
	}
}

// TaxRate returns the configured tax rates, or the defaults when unset.
func (s *Store) TaxRate() (model.TaxRate, error) {
	var rate model.TaxRate
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(taxRateKey), &rate)
	})
	if isNotFound(err) {
		return DefaultTaxRate(), nil
	}
	return rate, err
}

// SetTaxRate stores the tax rates.
func (s *Store) SetTaxRate(rate model.TaxRate) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, []byte(taxRateKey), &rate)
	})
}

// SweepAccount returns the configured sweep destination.
func (s *Store) SweepAccount() (model.SweepAccount, error) {
	var sweep model.SweepAccount
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(sweepAccountKey), &sweep)
	})
	return sweep, err
}

// SetSweepAccount stores the sweep destination and its authority reference.
func (s *Store) SetSweepAccount(sweep model.SweepAccount) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, []byte(sweepAccountKey), &sweep)
	})
}

// TransitorySweepAddresses lists the in-flight transitory sweep addresses.
func (s *Store) TransitorySweepAddresses() ([]string, error) {
	var addrs []string
	err := s.db.View(func(txn *badger.Txn) error {
		err := getJSON(txn, []byte(transitorySweepKey), &addrs)
		if isNotFound(err) {
			return nil
		}
		return err
	})
	return addrs, err
}

// AddTransitorySweepAddress records a transitory address awaiting
// consolidation into the sweep account.
func (s *Store) AddTransitorySweepAddress(address string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var addrs []string
		if err := getJSON(txn, []byte(transitorySweepKey), &addrs); err != nil && !isNotFound(err) {
			return err
		}
		for _, a := range addrs {
			if a == address {
				return fmt.Errorf("transitory sweep address %s: %w", address, ErrAlreadyExists)
			}
		}
		addrs = append(addrs, address)
		sort.Strings(addrs)
		return setJSON(txn, []byte(transitorySweepKey), addrs)
	})
}

// RemoveTransitorySweepAddress drops a consolidated (or abandoned)
// transitory address.
func (s *Store) RemoveTransitorySweepAddress(address string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var addrs []string
		if err := getJSON(txn, []byte(transitorySweepKey), &addrs); err != nil {
			return err
		}
		kept := addrs[:0]
		found := false
		for _, a := range addrs {
			if a == address {
				found = true
				continue
			}
			kept = append(kept, a)
		}
		if !found {
			return fmt.Errorf("transitory sweep address %s: %w", address, ErrNotFound)
		}
		return setJSON(txn, []byte(transitorySweepKey), kept)
	})
}
