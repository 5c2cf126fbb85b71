package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lotkeep-dev/lotkeep/internal/chain"
	"github.com/lotkeep-dev/lotkeep/internal/exchange"
	"github.com/lotkeep-dev/lotkeep/internal/notify"
	"github.com/lotkeep-dev/lotkeep/internal/price"
	"github.com/lotkeep-dev/lotkeep/internal/reconcile"
)

func newSyncCommand() *cobra.Command {
	var address string
	var maxEpochs uint64
	var reconcileNoSync, forceRescan bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile pending operations and account balances against the chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			r, err := newReconciler(e)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			notifier := notify.New(e.cfg.Notify.WebhookURL)

			if err := runSync(ctx, r, reconcile.SyncOptions{
				Address:             address,
				MaxEpochs:           maxEpochs,
				ReconcileNoSync:     reconcileNoSync,
				ForceRescanBalances: forceRescan,
			}); err != nil {
				if nerr := notifier.Send(ctx, fmt.Sprintf("lotkeep sync failed: %v", err)); nerr != nil {
					log.Warn().Err(nerr).Msg("notification failed")
				}
				return err
			}
			if err := notifier.Send(ctx, "lotkeep sync complete"); err != nil {
				log.Warn().Err(err).Msg("notification failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "sync a single address")
	cmd.Flags().Uint64Var(&maxEpochs, "max-epochs", 0, "limit epochs scanned per run")
	cmd.Flags().BoolVar(&reconcileNoSync, "reconcile-no-sync", false, "fold balance surpluses on no-sync accounts")
	cmd.Flags().BoolVar(&forceRescan, "force-rescan", false, "rescan balances even with no new epochs")

	return cmd
}

// runSync drains exchange-side operations first, then chain-side state.
// SyncAccounts itself handles pending transfers and the sweep pass.
func runSync(ctx context.Context, r *reconcile.Reconciler, opts reconcile.SyncOptions) error {
	if err := r.SyncDeposits(ctx); err != nil {
		return err
	}
	if err := r.SyncWithdrawals(ctx); err != nil {
		return err
	}
	if err := r.SyncPendingSwaps(ctx); err != nil {
		return err
	}
	return r.SyncAccounts(ctx, opts)
}

// newReconciler builds the reconciler from the ledger config: RPC chain
// client, cached price oracle, and per-exchange clients.
func newReconciler(e *env) (*reconcile.Reconciler, error) {
	timeout := 30 * time.Second
	if e.cfg.Chain.Timeout != "" {
		var err error
		timeout, err = time.ParseDuration(e.cfg.Chain.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parsing chain timeout: %w", err)
		}
	}
	chainClient := chain.New(e.cfg.Chain.RPCURL, timeout, e.assets)

	oracle := price.NewCache(price.NewCoinGecko(e.cfg.Prices.APIKey))

	exchanges := make(map[string]reconcile.ExchangeClient)
	for _, ex := range e.cfg.Exchanges {
		exchanges[ex.Name] = exchange.New(e.dataDir, ex)
	}

	return reconcile.New(e.store, e.assets, chainClient, oracle, exchanges), nil
}
