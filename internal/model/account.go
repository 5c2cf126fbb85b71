package model

import "fmt"

// TrackedAccount is one (address, asset) pair whose lots the ledger tracks.
type TrackedAccount struct {
	Address     string `json:"address"`
	Asset       string `json:"asset"` // symbol
	Description string `json:"description"`
	// LastUpdateEpoch is the high-water mark of chain synchronization:
	// epochs up to and including it have been scanned for rewards.
	LastUpdateEpoch uint64 `json:"lastUpdateEpoch"`
	// LastUpdateBalance mirrors the sum of lot amounts at all times.
	LastUpdateBalance uint64 `json:"lastUpdateBalance"`
	Lots              []Lot  `json:"lots"`
	// NoSync accounts are maintained by hand and never reconciled against
	// chain truth.
	NoSync bool `json:"noSync,omitempty"`
}

// Key returns the unique (address, asset) identity of the account.
func (a *TrackedAccount) Key() string {
	return a.Address + ":" + a.Asset
}

// LotTotal returns the sum of all live lot amounts.
func (a *TrackedAccount) LotTotal() uint64 {
	var total uint64
	for _, lot := range a.Lots {
		total += lot.Amount
	}
	return total
}

// Lot returns the live lot with the given number, or nil.
func (a *TrackedAccount) Lot(number uint64) *Lot {
	for i := range a.Lots {
		if a.Lots[i].Number == number {
			return &a.Lots[i]
		}
	}
	return nil
}

// RemoveLot deletes the live lot with the given number. It reports whether
// the lot was present.
func (a *TrackedAccount) RemoveLot(number uint64) bool {
	for i := range a.Lots {
		if a.Lots[i].Number == number {
			a.Lots = append(a.Lots[:i], a.Lots[i+1:]...)
			return true
		}
	}
	return false
}

// AssertLotBalance verifies the core account invariant: the recorded balance
// equals the sum of live lot amounts. A mismatch means the store's guarantee
// has already been broken outside this subsystem and is fatal.
func (a *TrackedAccount) AssertLotBalance() error {
	if total := a.LotTotal(); total != a.LastUpdateBalance {
		return &InvariantError{
			Reason: fmt.Sprintf("account %s: lot total %d != recorded balance %d",
				a.Key(), total, a.LastUpdateBalance),
		}
	}
	return nil
}

// InvariantError reports a broken ledger invariant. Unlike the recoverable
// sentinel errors, callers must treat it as fatal and stop mutating the
// store.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return "ledger invariant violated: " + e.Reason
}
