// Package reconcile drives pending operations to their terminal states and
// reconciles tracked accounts against chain truth, using facts supplied by
// the chain, price, and exchange collaborators.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/lotkeep-dev/lotkeep/internal/asset"
	"github.com/lotkeep-dev/lotkeep/internal/model"
	"github.com/lotkeep-dev/lotkeep/internal/price"
	"github.com/lotkeep-dev/lotkeep/internal/store"
)

// Reconciler applies collaborator facts to the ledger store.
type Reconciler struct {
	store     *store.Store
	assets    *asset.Registry
	chain     ChainClient
	prices    price.Oracle
	exchanges map[string]ExchangeClient
}

// New creates a Reconciler. exchanges maps exchange names to their clients
// and may be nil when no exchange operations are pending.
func New(st *store.Store, assets *asset.Registry, chain ChainClient, prices price.Oracle, exchanges map[string]ExchangeClient) *Reconciler {
	return &Reconciler{
		store:     st,
		assets:    assets,
		chain:     chain,
		prices:    prices,
		exchanges: exchanges,
	}
}

// SyncPendingTransfers confirms, fails, or expires every pending transfer.
// An explicit on-chain failure cancels; a missing status past the
// last-valid block height expires (an inference, not a chain fact).
func (r *Reconciler) SyncPendingTransfers(ctx context.Context) error {
	height, err := r.chain.CurrentHeight(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChainInconclusive, err)
	}

	transfers, err := r.store.PendingTransfers()
	if err != nil {
		return err
	}
	for _, t := range transfers {
		result, err := r.chain.Confirm(ctx, t.Signature)
		if err != nil {
			return fmt.Errorf("transfer %s: %w: %v", t.Signature, ErrChainInconclusive, err)
		}

		switch {
		case result == nil:
			if height > t.LastValidBlockHeight {
				log.Info().Str("signature", t.Signature).Msg("pending transfer expired, cancelling")
				if err := r.store.CancelTransfer(t.Signature); err != nil {
					return err
				}
				continue
			}
			log.Info().
				Str("signature", t.Signature).
				Uint64("blocksRemaining", t.LastValidBlockHeight-height).
				Msg("transfer still pending")

		case result.Failed:
			log.Warn().Str("signature", t.Signature).Str("reason", result.Reason).
				Msg("pending transfer failed on chain, cancelling")
			if err := r.store.CancelTransfer(t.Signature); err != nil {
				return err
			}

		default:
			when, err := r.chain.SignatureDate(ctx, t.Signature)
			if err != nil {
				return fmt.Errorf("transfer %s: %w: %v", t.Signature, ErrChainInconclusive, err)
			}
			log.Info().Str("signature", t.Signature).Msg("pending transfer confirmed")
			if err := r.store.ConfirmTransfer(t.Signature, when, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// SyncPendingSwaps confirms, fails, or expires every pending swap. Realized
// from/to amounts come from the confirmed transaction's balance changes.
func (r *Reconciler) SyncPendingSwaps(ctx context.Context) error {
	height, err := r.chain.CurrentHeight(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChainInconclusive, err)
	}

	swaps, err := r.store.PendingSwaps()
	if err != nil {
		return err
	}
	for _, sw := range swaps {
		result, err := r.chain.Confirm(ctx, sw.Signature)
		if err != nil {
			return fmt.Errorf("swap %s: %w: %v", sw.Signature, ErrChainInconclusive, err)
		}

		switch {
		case result == nil:
			if height > sw.LastValidBlockHeight {
				log.Info().Str("signature", sw.Signature).Msg("pending swap expired, cancelling")
				if err := r.store.CancelSwap(sw.Signature); err != nil {
					return err
				}
				continue
			}
			log.Info().
				Str("signature", sw.Signature).
				Uint64("blocksRemaining", sw.LastValidBlockHeight-height).
				Msg("swap still pending")

		case result.Failed:
			log.Warn().Str("signature", sw.Signature).Str("reason", result.Reason).
				Msg("pending swap failed on chain, cancelling")
			if err := r.store.CancelSwap(sw.Signature); err != nil {
				return err
			}

		default:
			outcome, err := r.chain.Swap(ctx, sw.Signature, sw.Address, sw.FromAsset, sw.ToAsset)
			if err != nil {
				return fmt.Errorf("swap %s: %w: %v", sw.Signature, ErrChainInconclusive, err)
			}
			log.Info().
				Str("signature", sw.Signature).
				Uint64("fromAmount", outcome.FromAmount).
				Uint64("toAmount", outcome.ToAmount).
				Msgf("swapped %s into %s", sw.FromAsset, sw.ToAsset)
			if err := r.store.ConfirmSwap(sw.Signature, outcome.When, outcome.FromAmount, outcome.ToAmount); err != nil {
				return err
			}
		}
	}
	return nil
}

// SyncDeposits confirms completed exchange deposits and expires abandoned
// ones. Exchanges with no deposit-history API confirm blind, but only for
// fiat-fungible assets: fiat has no basis implications, anything else is an
// accounting hole the owner must resolve.
func (r *Reconciler) SyncDeposits(ctx context.Context) error {
	height, err := r.chain.CurrentHeight(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChainInconclusive, err)
	}

	deposits, err := r.store.PendingDeposits()
	if err != nil {
		return err
	}
	for _, dep := range deposits {
		exch, ok := r.exchanges[dep.Exchange]
		if !ok {
			return fmt.Errorf("pending deposit %s: no client for exchange %q", dep.Signature, dep.Exchange)
		}

		fact, err := exch.DepositCompleted(ctx, dep.Tag)
		switch {
		case err == nil && fact != nil:
			a, err := r.assets.MustGet(dep.Asset)
			if err != nil {
				return err
			}
			unitPrice, err := r.historicalOrUnit(ctx, a, fact.When)
			if err != nil {
				return err
			}
			if fact.Amount != 0 && fact.Amount != dep.Amount {
				log.Warn().Str("signature", dep.Signature).Str("exchange", dep.Exchange).
					Uint64("recorded", dep.Amount).Uint64("reported", fact.Amount).
					Msg("exchange reported a different deposit amount, crediting the recorded one")
			}
			log.Info().Str("signature", dep.Signature).Str("exchange", dep.Exchange).
				Msg("pending deposit confirmed")
			if err := r.store.ConfirmDeposit(dep.Signature, fact.When, unitPrice); err != nil {
				return err
			}

		case err == nil:
			// Not completed yet; fall back to chain status for failure
			// or expiry.
			result, err := r.chain.Confirm(ctx, dep.Signature)
			if err != nil {
				return fmt.Errorf("deposit %s: %w: %v", dep.Signature, ErrChainInconclusive, err)
			}
			if result != nil && result.Failed {
				log.Warn().Str("signature", dep.Signature).Str("reason", result.Reason).
					Msg("pending deposit failed on chain, cancelling")
				if err := r.store.CancelDeposit(dep.Signature); err != nil {
					return err
				}
			} else if result == nil && height > dep.LastValidBlockHeight {
				log.Info().Str("signature", dep.Signature).Msg("pending deposit expired, cancelling")
				if err := r.store.CancelDeposit(dep.Signature); err != nil {
					return err
				}
			}

		case isNoDepositHistory(err):
			if err := r.confirmBlindDeposit(ctx, dep); err != nil {
				return err
			}

		default:
			return fmt.Errorf("deposit %s: %w: %v", dep.Signature, ErrChainInconclusive, err)
		}
	}
	return nil
}

// confirmBlindDeposit handles the no-deposit-history exchange: the funds
// arrived, but no completion fact will ever come.
func (r *Reconciler) confirmBlindDeposit(ctx context.Context, dep model.PendingDeposit) error {
	a, err := r.assets.MustGet(dep.Asset)
	if err != nil {
		return err
	}
	if !a.FiatFungible {
		return &model.InvariantError{
			Reason: fmt.Sprintf("blind deposit of non-fiat asset %s (signature %s) would lose cost basis",
				dep.Asset, dep.Signature),
		}
	}

	when, err := r.chain.SignatureDate(ctx, dep.Signature)
	if err != nil {
		return fmt.Errorf("deposit %s: %w: %v", dep.Signature, ErrChainInconclusive, err)
	}
	unitPrice, err := r.historicalOrUnit(ctx, a, when)
	if err != nil {
		return err
	}
	log.Warn().Str("signature", dep.Signature).Str("exchange", dep.Exchange).
		Msg("exchange has no deposit history, confirming blind (fiat-fungible)")
	return r.store.ConfirmDeposit(dep.Signature, when, unitPrice)
}

// SyncWithdrawals confirms completed exchange withdrawals. Withdrawals have
// no block-height budget, so they never expire; they complete or the owner
// cancels by hand.
func (r *Reconciler) SyncWithdrawals(ctx context.Context) error {
	withdrawals, err := r.store.PendingWithdrawals()
	if err != nil {
		return err
	}
	for _, w := range withdrawals {
		exch, ok := r.exchanges[w.Exchange]
		if !ok {
			return fmt.Errorf("pending withdrawal %s: no client for exchange %q", w.Tag, w.Exchange)
		}

		fact, err := exch.WithdrawalCompleted(ctx, w.Tag)
		if err != nil {
			return fmt.Errorf("withdrawal %s: %w: %v", w.Tag, ErrChainInconclusive, err)
		}
		if fact == nil {
			log.Info().Str("tag", w.Tag).Str("exchange", w.Exchange).Msg("withdrawal still pending")
			continue
		}
		log.Info().Str("tag", w.Tag).Str("txRef", fact.TxRef).Msg("pending withdrawal confirmed")
		if err := r.store.ConfirmWithdrawal(w.Tag, fact.When); err != nil {
			return err
		}
	}
	return nil
}

// historicalOrUnit prices an asset on a date: fiat-fungible assets are
// always 1, everything else asks the oracle.
func (r *Reconciler) historicalOrUnit(ctx context.Context, a model.Asset, when time.Time) (decimal.Decimal, error) {
	if a.FiatFungible {
		return decimal.NewFromInt(1), nil
	}
	p, err := r.prices.HistoricalPrice(ctx, a.Symbol, when)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price for %s: %w: %v", a.Symbol, ErrChainInconclusive, err)
	}
	return p, nil
}

// currentOrUnit is historicalOrUnit for the present moment.
func (r *Reconciler) currentOrUnit(ctx context.Context, a model.Asset) (decimal.Decimal, error) {
	if a.FiatFungible {
		return decimal.NewFromInt(1), nil
	}
	p, err := r.prices.CurrentPrice(ctx, a.Symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price for %s: %w: %v", a.Symbol, ErrChainInconclusive, err)
	}
	return p, nil
}

func isNoDepositHistory(err error) bool {
	return errors.Is(err, ErrNoDepositHistory)
}
