package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/lotkeep-dev/lotkeep/internal/model"
	"github.com/lotkeep-dev/lotkeep/internal/store"
)

// dustUI is the balance-change threshold below which an unexplained increase
// is ignored rather than lotted (rent and fee noise).
var dustUI = decimal.RequireFromString("0.005")

// SyncOptions controls one account synchronization pass.
type SyncOptions struct {
	// Address restricts the pass to one address's accounts (all assets).
	Address string
	// MaxEpochs caps how many reward epochs are scanned in one pass;
	// zero means no cap.
	MaxEpochs uint64
	// ReconcileNoSync opts manually-maintained accounts into surplus
	// reconciliation.
	ReconcileNoSync bool
	// ForceRescanBalances re-checks balances even when no new epoch has
	// completed.
	ForceRescanBalances bool
}

// SyncAccounts reconciles tracked accounts against chain truth: pending
// transfers first, then sweep consolidation, then epoch rewards and
// unexplained balance changes.
func (r *Reconciler) SyncAccounts(ctx context.Context, opts SyncOptions) error {
	if err := r.SyncPendingTransfers(ctx); err != nil {
		return err
	}
	if err := r.SyncSweep(ctx); err != nil {
		return err
	}

	accounts, err := r.accountsFor(opts.Address)
	if err != nil {
		return err
	}

	var synced, noSync []model.TrackedAccount
	for _, a := range accounts {
		if a.NoSync {
			noSync = append(noSync, a)
		} else {
			synced = append(synced, a)
		}
	}

	if opts.ReconcileNoSync {
		for i := range noSync {
			if err := r.reconcileNoSync(ctx, &noSync[i]); err != nil {
				return err
			}
		}
	}

	if len(synced) == 0 {
		return nil
	}

	currentEpoch, err := r.chain.CurrentEpoch(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChainInconclusive, err)
	}
	if currentEpoch == 0 {
		return nil
	}
	stopEpoch := currentEpoch - 1

	startEpoch := stopEpoch + 1
	for _, a := range synced {
		if a.LastUpdateEpoch+1 < startEpoch {
			startEpoch = a.LastUpdateEpoch + 1
		}
	}
	if startEpoch > stopEpoch && !opts.ForceRescanBalances {
		log.Info().Uint64("epoch", stopEpoch).Msg("already processed up to epoch")
		return nil
	}
	if opts.MaxEpochs > 0 && stopEpoch > startEpoch+opts.MaxEpochs-1 {
		stopEpoch = startEpoch + opts.MaxEpochs - 1
	}

	for epoch := startEpoch; epoch <= stopEpoch; epoch++ {
		log.Info().Uint64("epoch", epoch).Msg("processing epoch")
		for i := range synced {
			if err := r.creditEpochReward(ctx, &synced[i], epoch); err != nil {
				return err
			}
		}
	}

	for i := range synced {
		if err := r.reconcileBalance(ctx, &synced[i], stopEpoch); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) accountsFor(address string) ([]model.TrackedAccount, error) {
	if address == "" {
		return r.store.GetAccounts()
	}
	accounts, err := r.store.GetAccountTokens(address)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("address %s: %w", address, store.ErrNotFound)
	}
	return accounts, nil
}

// creditEpochReward attaches a reward lot for the epoch, if one exists. Only
// native-asset accounts earn inflationary rewards.
func (r *Reconciler) creditEpochReward(ctx context.Context, account *model.TrackedAccount, epoch uint64) error {
	if account.LastUpdateEpoch >= epoch {
		return nil
	}
	a, err := r.assets.MustGet(account.Asset)
	if err != nil {
		return err
	}
	if !a.Native() {
		return nil
	}

	reward, err := r.chain.Reward(ctx, account.Address, epoch)
	if err != nil {
		return fmt.Errorf("reward for %s epoch %d: %w: %v", account.Address, epoch, ErrChainInconclusive, err)
	}
	if reward == nil {
		return nil
	}

	when, err := r.chain.BlockDate(ctx, reward.Slot)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChainInconclusive, err)
	}
	unitPrice, err := r.historicalOrUnit(ctx, a, when)
	if err != nil {
		return err
	}

	lotNumber, err := r.store.NextLotNumber()
	if err != nil {
		return err
	}
	account.Lots = append(account.Lots, model.Lot{
		Number: lotNumber,
		Acquisition: model.Acquisition{
			When:  when,
			Price: unitPrice,
			Kind:  model.AcquireEpochReward,
			Epoch: epoch,
			Slot:  reward.Slot,
		},
		Amount: reward.Amount,
	})
	account.LastUpdateBalance += reward.Amount

	log.Info().
		Str("address", account.Address).
		Uint64("epoch", epoch).
		Uint64("amount", reward.Amount).
		Msg("epoch reward credited")
	return r.store.UpdateAccount(*account)
}

// reconcileBalance compares the tracked balance against chain truth. A
// shortfall only warns; a surplus above dust becomes an unknown-provenance
// lot at today's price, because no recorded operation explains it.
func (r *Reconciler) reconcileBalance(ctx context.Context, account *model.TrackedAccount, stopEpoch uint64) error {
	account.LastUpdateEpoch = stopEpoch

	current, err := r.chain.Balance(ctx, account.Address, account.Asset)
	if err != nil {
		return fmt.Errorf("balance of %s:%s: %w: %v", account.Address, account.Asset, ErrChainInconclusive, err)
	}
	a, err := r.assets.MustGet(account.Asset)
	if err != nil {
		return err
	}

	switch {
	case current < account.LastUpdateBalance:
		log.Warn().
			Str("address", account.Address).
			Str("asset", account.Asset).
			Str("actual", a.UIAmount(current).String()).
			Str("expected", a.UIAmount(account.LastUpdateBalance).String()).
			Msg("balance is less than expected")

	case current > account.LastUpdateBalance+a.Amount(dustUI):
		surplus := current - account.LastUpdateBalance
		unitPrice, err := r.currentOrUnit(ctx, a)
		if err != nil {
			return err
		}
		lotNumber, err := r.store.NextLotNumber()
		if err != nil {
			return err
		}
		account.Lots = append(account.Lots, model.Lot{
			Number: lotNumber,
			Acquisition: model.Acquisition{
				When:  today(),
				Price: unitPrice,
				Kind:  model.AcquireUnknown,
			},
			Amount: surplus,
		})
		account.LastUpdateBalance = current
		log.Info().
			Str("address", account.Address).
			Str("asset", account.Asset).
			Uint64("amount", surplus).
			Msg("unexplained balance increase recorded as unknown-provenance lot")
	}

	return r.store.UpdateAccount(*account)
}

// reconcileNoSync folds an observed surplus on a manually-maintained account
// into its lowest-basis lot; the lot grows, its acquisition stays.
func (r *Reconciler) reconcileNoSync(ctx context.Context, account *model.TrackedAccount) error {
	if len(account.Lots) == 0 {
		return nil
	}

	current, err := r.chain.Balance(ctx, account.Address, account.Asset)
	if err != nil {
		return fmt.Errorf("balance of %s:%s: %w: %v", account.Address, account.Asset, ErrChainInconclusive, err)
	}

	switch {
	case current < account.LastUpdateBalance:
		log.Warn().
			Str("address", account.Address).
			Str("asset", account.Asset).
			Msg("no-sync account balance is less than expected")

	case current > account.LastUpdateBalance:
		sort.Slice(account.Lots, func(i, j int) bool {
			return account.Lots[i].Acquisition.Price.Cmp(account.Lots[j].Acquisition.Price) < 0
		})
		surplus := current - account.LastUpdateBalance
		account.Lots[0].Amount += surplus
		account.LastUpdateBalance = current
		log.Info().
			Str("address", account.Address).
			Str("asset", account.Asset).
			Uint64("amount", surplus).
			Msg("no-sync surplus folded into lowest-basis lot")
		return r.store.UpdateAccount(*account)
	}
	return nil
}

// SweepSubmitter builds, signs, and submits a consolidation transaction.
// Instruction construction stays outside the ledger core; the reconciler
// only records and confirms the resulting transfer.
type SweepSubmitter interface {
	SubmitMerge(ctx context.Context, fromAddress, toAddress string) (signature string, lastValidBlockHeight uint64, err error)
}

// SyncSweep consolidates transitory sweep addresses into the configured
// sweep account. Vanished empty addresses are cleaned up; a vanished
// address whose tracked account still holds lots is a broken invariant.
func (r *Reconciler) SyncSweep(ctx context.Context) error {
	return r.syncSweep(ctx, nil)
}

// SyncSweepWith runs the sweep pass submitting new consolidation transfers
// through sub.
func (r *Reconciler) SyncSweepWith(ctx context.Context, sub SweepSubmitter) error {
	return r.syncSweep(ctx, sub)
}

func (r *Reconciler) syncSweep(ctx context.Context, sub SweepSubmitter) error {
	transitory, err := r.store.TransitorySweepAddresses()
	if err != nil {
		return err
	}
	if len(transitory) == 0 {
		return nil
	}

	sweep, err := r.store.SweepAccount()
	if err != nil {
		return fmt.Errorf("sweep account not configured: %w", err)
	}
	native := r.assets.Native()

	for _, addr := range transitory {
		balance, err := r.chain.Balance(ctx, addr, native.Symbol)
		if err != nil {
			return fmt.Errorf("balance of %s: %w: %v", addr, ErrChainInconclusive, err)
		}

		if balance == 0 {
			// The chain account is gone. A tracked account that still
			// claims lots for it means the ledger has drifted from
			// reality.
			tracked, err := r.store.GetAccount(addr, native.Symbol)
			switch {
			case err == nil:
				if tracked.LastUpdateBalance > 0 || len(tracked.Lots) > 0 {
					return &model.InvariantError{
						Reason: fmt.Sprintf("transitory sweep account %s vanished on chain but is not empty", addr),
					}
				}
				if err := r.store.RemoveAccount(addr, native.Symbol, false); err != nil {
					return err
				}
			case isNotFound(err):
			default:
				return err
			}
			log.Info().Str("address", addr).Msg("transitory sweep address vanished, removing")
			if err := r.store.RemoveTransitorySweepAddress(addr); err != nil {
				return err
			}
			continue
		}

		if sub == nil {
			log.Info().Str("address", addr).Msg("transitory sweep address awaiting consolidation")
			continue
		}

		signature, lastValid, err := sub.SubmitMerge(ctx, addr, sweep.Address)
		if err != nil {
			return fmt.Errorf("submitting sweep merge for %s: %w", addr, err)
		}
		if err := r.store.RecordTransfer(model.PendingTransfer{
			Signature:            signature,
			FromAddress:          addr,
			FromAsset:            native.Symbol,
			ToAddress:            sweep.Address,
			ToAsset:              native.Symbol,
			LastValidBlockHeight: lastValid,
			SelectionMethod:      "fifo",
		}); err != nil {
			return err
		}
		log.Info().Str("address", addr).Str("signature", signature).Msg("sweep merge submitted")
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// today returns the current date at UTC midnight, the ledger's date
// granularity.
func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
