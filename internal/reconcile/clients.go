package reconcile

import (
	"context"
	"errors"
	"time"
)

// ErrChainInconclusive means a collaborator could not answer. The caller
// decides whether to retry; no ledger state was touched.
var ErrChainInconclusive = errors.New("chain client inconclusive")

// ErrNoDepositHistory is returned by exchange clients that provide no
// deposit-history API; such deposits can only be confirmed blind.
var ErrNoDepositHistory = errors.New("exchange provides no deposit history")

// ChainResult is the terminal fact for a submitted transaction.
type ChainResult struct {
	Failed bool
	Reason string
}

// EpochReward is a staking reward credited at an epoch boundary.
type EpochReward struct {
	Amount uint64 // smallest units
	Slot   uint64 // effective slot, used to date edge lots
}

// SwapOutcome holds the realized amounts of a confirmed swap, derived from
// the transaction's pre/post balances.
type SwapOutcome struct {
	When       time.Time
	FromAmount uint64
	ToAmount   uint64
}

// ChainClient supplies chain facts. The ledger never talks to a network
// itself; it receives facts through this contract and emits mutations.
type ChainClient interface {
	CurrentHeight(ctx context.Context) (uint64, error)
	CurrentEpoch(ctx context.Context) (uint64, error)
	// Confirm returns the terminal status of a signature, or nil while the
	// outcome is still unknown.
	Confirm(ctx context.Context, signature string) (*ChainResult, error)
	SignatureDate(ctx context.Context, signature string) (time.Time, error)
	BlockDate(ctx context.Context, slot uint64) (time.Time, error)
	Balance(ctx context.Context, address, asset string) (uint64, error)
	// Reward returns the reward credited to address at epoch, or nil.
	Reward(ctx context.Context, address string, epoch uint64) (*EpochReward, error)
	// Swap returns the realized amounts of a confirmed swap transaction.
	Swap(ctx context.Context, signature, address, fromAsset, toAsset string) (*SwapOutcome, error)
}

// DepositFact reports a completed exchange deposit.
type DepositFact struct {
	When   time.Time
	Amount uint64
}

// WithdrawalFact reports a completed exchange withdrawal.
type WithdrawalFact struct {
	When  time.Time
	TxRef string
}

// ExchangeClient supplies completion facts for exchange operations. A nil
// fact with nil error means the operation is still in flight.
type ExchangeClient interface {
	DepositCompleted(ctx context.Context, tag string) (*DepositFact, error)
	WithdrawalCompleted(ctx context.Context, tag string) (*WithdrawalFact, error)
}
