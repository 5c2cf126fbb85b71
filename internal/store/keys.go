package store

import "fmt"

// Key layout. Every record is keyed uniquely and its JSON value round-trips
// losslessly.
//
//	account:{address}:{asset}    -> TrackedAccount
//	lot_counter                  -> uint64 (decimal string)
//	disposed_counter             -> uint64 (decimal string)
//	disposed:{seq}               -> DisposedLot
//	pending_deposit:{signature}  -> PendingDeposit
//	pending_withdrawal:{tag}     -> PendingWithdrawal
//	pending_transfer:{signature} -> PendingTransfer
//	pending_swap:{signature}     -> PendingSwap
//	config:tax_rate              -> TaxRate
//	config:sweep_account         -> SweepAccount
//	config:transitory_sweep      -> []string
const (
	accountPrefix           = "account:"
	disposedPrefix          = "disposed:"
	pendingDepositPrefix    = "pending_deposit:"
	pendingWithdrawalPrefix = "pending_withdrawal:"
	pendingTransferPrefix   = "pending_transfer:"
	pendingSwapPrefix       = "pending_swap:"

	lotCounterKey      = "lot_counter"
	disposedCounterKey = "disposed_counter"

	taxRateKey         = "config:tax_rate"
	sweepAccountKey    = "config:sweep_account"
	transitorySweepKey = "config:transitory_sweep"
)

func accountKey(address, asset string) []byte {
	return []byte(accountPrefix + address + ":" + asset)
}

func accountAddressPrefix(address string) []byte {
	return []byte(accountPrefix + address + ":")
}

// disposedKey orders disposal history by sequence number; the fixed width
// keeps lexicographic iteration in append order.
func disposedKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", disposedPrefix, seq))
}

func pendingDepositKey(signature string) []byte {
	return []byte(pendingDepositPrefix + signature)
}

func pendingWithdrawalKey(tag string) []byte {
	return []byte(pendingWithdrawalPrefix + tag)
}

func pendingTransferKey(signature string) []byte {
	return []byte(pendingTransferPrefix + signature)
}

func pendingSwapKey(signature string) []byte {
	return []byte(pendingSwapPrefix + signature)
}
