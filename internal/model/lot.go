package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AcquisitionKind records how a lot came to exist.
type AcquisitionKind string

const (
	// AcquireTransaction: received by an ordinary on-chain transaction.
	AcquireTransaction AcquisitionKind = "transaction"
	// AcquireEpochReward: staking reward credited at an epoch boundary.
	AcquireEpochReward AcquisitionKind = "epoch-reward"
	// AcquireExchangeFill: bought on an exchange (order fill).
	AcquireExchangeFill AcquisitionKind = "exchange-fill"
	// AcquireSwap: received as the to-side of an asset swap.
	AcquireSwap AcquisitionKind = "swap"
	// AcquireFiatPurchase: bought directly with fiat.
	AcquireFiatPurchase AcquisitionKind = "fiat-purchase"
	// AcquireIncome: received as in-kind income.
	AcquireIncome AcquisitionKind = "income"
	// AcquireUnknown: provenance could not be determined (balance found
	// during reconciliation with no matching operation).
	AcquireUnknown AcquisitionKind = "unknown"
)

// IncomeBearing reports whether lots of this kind count as income at
// acquisition time.
func (k AcquisitionKind) IncomeBearing() bool {
	return k == AcquireEpochReward || k == AcquireIncome
}

// Acquisition describes when, at what price, and by what means a lot was
// acquired. It never changes after the lot is created.
type Acquisition struct {
	When  time.Time       `json:"when"`
	Price decimal.Decimal `json:"price"` // fiat per UI unit
	Kind  AcquisitionKind `json:"kind"`

	// Kind-specific detail. Only the fields relevant to Kind are set.
	Signature string `json:"signature,omitempty"`
	Epoch     uint64 `json:"epoch,omitempty"`
	Slot      uint64 `json:"slot,omitempty"`
	Exchange  string `json:"exchange,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
}

// Lot is a discrete quantity of an asset acquired at one date and price.
// Everything but Amount is immutable; Amount shrinks when part of the lot is
// disposed and may grow when reconciliation folds unexplained balance into it.
type Lot struct {
	Number      uint64      `json:"lotNumber"`
	Acquisition Acquisition `json:"acquisition"`
	Amount      uint64      `json:"amount"` // smallest units
}

// Split detaches amount units from the lot, returning the detached portion as
// a transient lot carrying the same number and acquisition. The receiver is
// reduced in place. amount must not exceed l.Amount.
func (l *Lot) Split(amount uint64) Lot {
	l.Amount -= amount
	return Lot{Number: l.Number, Acquisition: l.Acquisition, Amount: amount}
}

// DisposalKind records why a lot left the ledger.
type DisposalKind string

const (
	// DisposeSale: sold for fiat or sent out of tracked ownership.
	DisposeSale DisposalKind = "sale"
	// DisposeWithdrawalFee: consumed as an exchange withdrawal fee.
	DisposeWithdrawalFee DisposalKind = "withdrawal-fee"
	// DisposeSwap: consumed as the from-side of an asset swap.
	DisposeSwap DisposalKind = "swap"
	// DisposeDrop: manually dropped to correct bookkeeping, not an
	// economic event.
	DisposeDrop DisposalKind = "drop"
)

// DisposedLot is the immutable record of a (possibly partial) lot disposal.
type DisposedLot struct {
	LotNumber   uint64          `json:"lotNumber"`
	Asset       string          `json:"asset"` // symbol
	Acquisition Acquisition     `json:"acquisition"`
	Amount      uint64          `json:"amount"` // smallest units disposed
	When        time.Time       `json:"when"`
	Price       decimal.Decimal `json:"price"` // fiat per UI unit at disposal
	Kind        DisposalKind    `json:"kind"`
	// Fee is the smallest-unit fee consumed, for withdrawal-fee disposals.
	Fee uint64 `json:"fee,omitempty"`
	// Signature of the disposing transaction, when there is one.
	Signature string `json:"signature,omitempty"`
}
