package commands

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/lotkeep-dev/lotkeep/internal/auditlog"
	"github.com/lotkeep-dev/lotkeep/internal/model"
)

func newPendingCommand() *cobra.Command {
	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "Pending operation management",
	}
	pendingCmd.AddCommand(newPendingListCommand())
	pendingCmd.AddCommand(newPendingCancelCommand())
	pendingCmd.AddCommand(newPendingDepositCommand())
	pendingCmd.AddCommand(newPendingWithdrawalCommand())
	pendingCmd.AddCommand(newPendingTransferCommand())
	pendingCmd.AddCommand(newPendingSwapCommand())
	return pendingCmd
}

func newPendingListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List pending operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			deposits, err := e.store.PendingDeposits()
			if err != nil {
				return err
			}
			for _, d := range deposits {
				cmd.Printf("deposit %s: %s %s to %s via %s\n",
					d.Signature, uiOrRaw(e, d.Asset, d.Amount), d.Asset, d.ToAddress, d.Exchange)
			}

			withdrawals, err := e.store.PendingWithdrawals()
			if err != nil {
				return err
			}
			for _, w := range withdrawals {
				cmd.Printf("withdrawal %s: %s %s from %s to %s\n",
					w.Tag, uiOrRaw(e, w.Asset, w.Amount), w.Asset, w.FromAddress, w.ToAddress)
			}

			transfers, err := e.store.PendingTransfers()
			if err != nil {
				return err
			}
			for _, t := range transfers {
				amount := "all"
				if t.Amount != nil {
					amount = uiOrRaw(e, t.FromAsset, *t.Amount)
				}
				cmd.Printf("transfer %s: %s %s from %s to %s\n",
					t.Signature, amount, t.FromAsset, t.FromAddress, t.ToAddress)
			}

			swaps, err := e.store.PendingSwaps()
			if err != nil {
				return err
			}
			for _, sw := range swaps {
				cmd.Printf("swap %s: %s into %s on %s\n",
					sw.Signature, sw.FromAsset, sw.ToAsset, sw.Address)
			}
			return nil
		},
	}
	return cmd
}

func newPendingCancelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <kind> <key>",
		Short: "Cancel a pending operation (kind: deposit, withdrawal, transfer, swap)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			kind, key := args[0], args[1]
			switch kind {
			case "deposit":
				err = e.store.CancelDeposit(key)
			case "withdrawal":
				err = e.store.CancelWithdrawal(key)
			case "transfer":
				err = e.store.CancelTransfer(key)
			case "swap":
				err = e.store.CancelSwap(key)
			default:
				return fmt.Errorf("unknown pending kind %q", kind)
			}
			if err != nil {
				return err
			}
			cmd.Printf("Cancelled %s %s\n", kind, key)
			return auditlog.Record(e.dataDir, "pending cancel", "", "", fmt.Sprintf("%s %s", kind, key), key)
		},
	}
	return cmd
}

func newPendingDepositCommand() *cobra.Command {
	var exchange, tag, fromAddress, toAddress, assetSym, amountStr string
	var lastValid uint64

	cmd := &cobra.Command{
		Use:   "deposit <signature>",
		Short: "Record an in-flight exchange deposit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			a, err := e.assets.MustGet(assetSym)
			if err != nil {
				return err
			}
			amount, err := parseUIAmount(a, amountStr)
			if err != nil {
				return err
			}

			if err := e.store.RecordDeposit(model.PendingDeposit{
				Signature:            args[0],
				Exchange:             exchange,
				Tag:                  tag,
				FromAddress:          fromAddress,
				ToAddress:            toAddress,
				Asset:                a.Symbol,
				Amount:               amount,
				LastValidBlockHeight: lastValid,
			}); err != nil {
				return err
			}
			cmd.Printf("Recorded pending deposit %s\n", args[0])
			return auditlog.Record(e.dataDir, "pending deposit", toAddress, a.Symbol, amountStr, args[0])
		},
	}

	cmd.Flags().StringVar(&exchange, "exchange", "", "destination exchange (required)")
	_ = cmd.MarkFlagRequired("exchange")
	cmd.Flags().StringVar(&tag, "tag", "", "exchange-side tracking tag")
	cmd.Flags().StringVar(&fromAddress, "from", "", "source address")
	cmd.Flags().StringVar(&toAddress, "to", "", "exchange deposit address (required)")
	_ = cmd.MarkFlagRequired("to")
	cmd.Flags().StringVar(&assetSym, "asset", "SOL", "asset symbol")
	cmd.Flags().StringVar(&amountStr, "amount", "", "amount in UI units (required)")
	_ = cmd.MarkFlagRequired("amount")
	cmd.Flags().Uint64Var(&lastValid, "last-valid-block-height", 0, "transaction block budget (required)")
	_ = cmd.MarkFlagRequired("last-valid-block-height")

	return cmd
}

func newPendingWithdrawalCommand() *cobra.Command {
	var exchange, fromAddress, toAddress, assetSym, amountStr, feeStr string

	cmd := &cobra.Command{
		Use:   "withdrawal <tag>",
		Short: "Record an in-flight exchange withdrawal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			a, err := e.assets.MustGet(assetSym)
			if err != nil {
				return err
			}
			amount, err := parseUIAmount(a, amountStr)
			if err != nil {
				return err
			}
			fee := uint64(0)
			if feeStr != "" {
				fee, err = parseUIAmount(a, feeStr)
				if err != nil {
					return err
				}
			}

			if err := e.store.RecordWithdrawal(model.PendingWithdrawal{
				Tag:         args[0],
				Exchange:    exchange,
				FromAddress: fromAddress,
				ToAddress:   toAddress,
				Asset:       a.Symbol,
				Amount:      amount,
				Fee:         fee,
			}); err != nil {
				return err
			}
			cmd.Printf("Recorded pending withdrawal %s\n", args[0])
			return auditlog.Record(e.dataDir, "pending withdrawal", fromAddress, a.Symbol, amountStr, args[0])
		},
	}

	cmd.Flags().StringVar(&exchange, "exchange", "", "source exchange (required)")
	_ = cmd.MarkFlagRequired("exchange")
	cmd.Flags().StringVar(&fromAddress, "from", "", "exchange account address (required)")
	_ = cmd.MarkFlagRequired("from")
	cmd.Flags().StringVar(&toAddress, "to", "", "destination address (required)")
	_ = cmd.MarkFlagRequired("to")
	cmd.Flags().StringVar(&assetSym, "asset", "SOL", "asset symbol")
	cmd.Flags().StringVar(&amountStr, "amount", "", "amount in UI units, fee included (required)")
	_ = cmd.MarkFlagRequired("amount")
	cmd.Flags().StringVar(&feeStr, "fee", "", "withdrawal fee in UI units")

	return cmd
}

func newPendingTransferCommand() *cobra.Command {
	var fromAddress, toAddress, fromAsset, toAsset, amountStr, methodStr string
	var lastValid uint64

	cmd := &cobra.Command{
		Use:   "transfer <signature>",
		Short: "Record an in-flight transfer between tracked accounts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			transfer := model.PendingTransfer{
				Signature:            args[0],
				FromAddress:          fromAddress,
				FromAsset:            fromAsset,
				ToAddress:            toAddress,
				ToAsset:              toAsset,
				LastValidBlockHeight: lastValid,
				SelectionMethod:      methodStr,
			}
			if amountStr != "" {
				a, err := e.assets.MustGet(fromAsset)
				if err != nil {
					return err
				}
				amount, err := parseUIAmount(a, amountStr)
				if err != nil {
					return err
				}
				transfer.Amount = &amount
			}

			if err := e.store.RecordTransfer(transfer); err != nil {
				return err
			}
			cmd.Printf("Recorded pending transfer %s\n", args[0])
			return auditlog.Record(e.dataDir, "pending transfer", fromAddress, fromAsset, amountStr, args[0])
		},
	}

	cmd.Flags().StringVar(&fromAddress, "from", "", "source address (required)")
	_ = cmd.MarkFlagRequired("from")
	cmd.Flags().StringVar(&toAddress, "to", "", "destination address (required)")
	_ = cmd.MarkFlagRequired("to")
	cmd.Flags().StringVar(&fromAsset, "from-asset", "SOL", "source asset symbol")
	cmd.Flags().StringVar(&toAsset, "to-asset", "SOL", "destination asset symbol")
	cmd.Flags().StringVar(&amountStr, "amount", "", "amount in UI units (default: whole balance)")
	cmd.Flags().StringVar(&methodStr, "method", "fifo", "lot selection method")
	cmd.Flags().Uint64Var(&lastValid, "last-valid-block-height", 0, "transaction block budget (required)")
	_ = cmd.MarkFlagRequired("last-valid-block-height")

	return cmd
}

func newPendingSwapCommand() *cobra.Command {
	var address, fromAsset, toAsset, fromPriceStr, toPriceStr, methodStr string
	var lastValid uint64

	cmd := &cobra.Command{
		Use:   "swap <signature>",
		Short: "Record an in-flight token swap",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			fromPrice, err := decimal.NewFromString(fromPriceStr)
			if err != nil {
				return fmt.Errorf("parsing from-price %q: %w", fromPriceStr, err)
			}
			toPrice, err := decimal.NewFromString(toPriceStr)
			if err != nil {
				return fmt.Errorf("parsing to-price %q: %w", toPriceStr, err)
			}

			if err := e.store.RecordSwap(model.PendingSwap{
				Signature:            args[0],
				Address:              address,
				FromAsset:            fromAsset,
				FromPrice:            fromPrice,
				ToAsset:              toAsset,
				ToPrice:              toPrice,
				LastValidBlockHeight: lastValid,
				SelectionMethod:      methodStr,
			}); err != nil {
				return err
			}
			cmd.Printf("Recorded pending swap %s\n", args[0])
			return auditlog.Record(e.dataDir, "pending swap", address, fromAsset, toAsset, args[0])
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "swapping account address (required)")
	_ = cmd.MarkFlagRequired("address")
	cmd.Flags().StringVar(&fromAsset, "from-asset", "", "asset sold (required)")
	_ = cmd.MarkFlagRequired("from-asset")
	cmd.Flags().StringVar(&toAsset, "to-asset", "", "asset bought (required)")
	_ = cmd.MarkFlagRequired("to-asset")
	cmd.Flags().StringVar(&fromPriceStr, "from-price", "", "sold asset price (required)")
	_ = cmd.MarkFlagRequired("from-price")
	cmd.Flags().StringVar(&toPriceStr, "to-price", "", "bought asset price (required)")
	_ = cmd.MarkFlagRequired("to-price")
	cmd.Flags().StringVar(&methodStr, "method", "fifo", "lot selection method")
	cmd.Flags().Uint64Var(&lastValid, "last-valid-block-height", 0, "transaction block budget (required)")
	_ = cmd.MarkFlagRequired("last-valid-block-height")

	return cmd
}

func uiOrRaw(e *env, symbol string, amount uint64) string {
	a, err := e.assets.MustGet(symbol)
	if err != nil {
		return fmt.Sprintf("%d", amount)
	}
	return a.UIAmount(amount).String()
}

func parseUIAmount(a model.Asset, s string) (uint64, error) {
	ui, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return a.Amount(ui), nil
}
