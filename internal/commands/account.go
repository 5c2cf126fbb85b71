package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/lotkeep-dev/lotkeep/internal/auditlog"
	"github.com/lotkeep-dev/lotkeep/internal/gains"
	"github.com/lotkeep-dev/lotkeep/internal/lots"
	"github.com/lotkeep-dev/lotkeep/internal/model"
	"github.com/lotkeep-dev/lotkeep/internal/store"
)

const dateFormat = "2006-01-02"

func newAccountCommand() *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Tracked account operations",
	}
	accountCmd.AddCommand(newAccountAddCommand())
	accountCmd.AddCommand(newAccountListCommand())
	accountCmd.AddCommand(newAccountRemoveCommand())
	accountCmd.AddCommand(newAccountDisposeCommand())
	accountCmd.AddCommand(newAccountDropCommand())
	accountCmd.AddCommand(newAccountMoveLotCommand())
	accountCmd.AddCommand(newAccountSwapLotsCommand())
	return accountCmd
}

func newAccountAddCommand() *cobra.Command {
	var assetSym, description string
	var noSync bool
	var amountStr, priceStr, whenStr string

	cmd := &cobra.Command{
		Use:   "add <address>",
		Short: "Track an account",
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

			account := model.TrackedAccount{
				Address:     args[0],
				Asset:       a.Symbol,
				Description: description,
				NoSync:      noSync,
			}

			// An initial lot seeds accounts whose history predates the
			// ledger.
			if amountStr != "" {
				ui, err := decimal.NewFromString(amountStr)
				if err != nil {
					return fmt.Errorf("parsing amount %q: %w", amountStr, err)
				}
				price, err := decimal.NewFromString(priceStr)
				if err != nil {
					return fmt.Errorf("parsing price %q: %w", priceStr, err)
				}
				when, err := parseDate(whenStr)
				if err != nil {
					return err
				}
				lotNumber, err := e.store.NextLotNumber()
				if err != nil {
					return err
				}
				account.Lots = append(account.Lots, model.Lot{
					Number: lotNumber,
					Acquisition: model.Acquisition{
						When:  when,
						Price: price,
						Kind:  model.AcquireTransaction,
					},
					Amount: a.Amount(ui),
				})
				account.LastUpdateBalance = account.LotTotal()
			}

			if err := e.store.AddAccount(account); err != nil {
				return err
			}
			if err := auditlog.Record(e.dataDir, "account add", account.Address, account.Asset, description, ""); err != nil {
				return err
			}
			cmd.Printf("Tracking %s (%s)\n", account.Address, account.Asset)
			return nil
		},
	}

	cmd.Flags().StringVar(&assetSym, "asset", "SOL", "asset symbol")
	cmd.Flags().StringVar(&description, "description", "", "account description")
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "exclude from chain sync")
	cmd.Flags().StringVar(&amountStr, "amount", "", "initial lot amount in UI units")
	cmd.Flags().StringVar(&priceStr, "price", "", "initial lot acquisition price")
	cmd.Flags().StringVar(&whenStr, "when", "", "initial lot acquisition date (YYYY-MM-DD, default today)")

	return cmd
}

func newAccountListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [address]",
		Short: "List tracked accounts and their lots",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			var accounts []model.TrackedAccount
			if len(args) > 0 {
				accounts, err = e.store.GetAccountTokens(args[0])
			} else {
				accounts, err = e.store.GetAccounts()
			}
			if err != nil {
				return err
			}

			for _, account := range accounts {
				a, err := e.assets.MustGet(account.Asset)
				if err != nil {
					return err
				}
				cmd.Printf("%s (%s): %s  %s\n",
					account.Address, account.Asset,
					a.UIAmount(account.LastUpdateBalance), account.Description)
				for _, lot := range account.Lots {
					cmd.Printf("  lot %d: %s %s acquired %s at %s (%s)\n",
						lot.Number, a.UIAmount(lot.Amount), account.Asset,
						lot.Acquisition.When.Format(dateFormat),
						lot.Acquisition.Price, lot.Acquisition.Kind)
				}
			}
			return nil
		},
	}
	return cmd
}

func newAccountRemoveCommand() *cobra.Command {
	var assetSym string
	var force bool

	cmd := &cobra.Command{
		Use:   "rm <address>",
		Short: "Stop tracking an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.store.RemoveAccount(args[0], assetSym, force); err != nil {
				return err
			}
			if err := auditlog.Record(e.dataDir, "account rm", args[0], assetSym, "", ""); err != nil {
				return err
			}
			cmd.Printf("Removed %s (%s)\n", args[0], assetSym)
			return nil
		},
	}

	cmd.Flags().StringVar(&assetSym, "asset", "SOL", "asset symbol")
	cmd.Flags().BoolVar(&force, "force", false, "remove even if lots remain")

	return cmd
}

func newAccountDisposeCommand() *cobra.Command {
	var assetSym, amountStr, priceStr, whenStr, methodStr, signature string
	var lotNumbers []uint

	cmd := &cobra.Command{
		Use:   "dispose <address>",
		Short: "Dispose of holdings at a price, realizing gains",
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
			ui, err := decimal.NewFromString(amountStr)
			if err != nil {
				return fmt.Errorf("parsing amount %q: %w", amountStr, err)
			}
			price, err := decimal.NewFromString(priceStr)
			if err != nil {
				return fmt.Errorf("parsing price %q: %w", priceStr, err)
			}
			when, err := parseDate(whenStr)
			if err != nil {
				return err
			}
			method, err := lots.ParseMethod(methodStr)
			if err != nil {
				return err
			}

			disposed, err := e.store.RecordDisposal(store.DisposalRequest{
				Address:    args[0],
				Asset:      a.Symbol,
				Amount:     a.Amount(ui),
				Method:     method,
				LotNumbers: toUint64(lotNumbers),
				When:       when,
				Price:      price,
				Kind:       model.DisposeSale,
				Signature:  signature,
			})
			if err != nil {
				return err
			}

			for _, dl := range disposed {
				gain := gains.DisposedGain(a, dl)
				term := "short-term"
				if gains.IsLongTerm(dl.Acquisition.When, dl.When) {
					term = "long-term"
				}
				cmd.Printf("lot %d: disposed %s %s, gain %s (%s)\n",
					dl.LotNumber, a.UIAmount(dl.Amount), a.Symbol, gain.StringFixed(2), term)
			}
			details := fmt.Sprintf("disposed %s at %s", ui, price)
			return auditlog.Record(e.dataDir, "dispose", args[0], a.Symbol, details, signature)
		},
	}

	cmd.Flags().StringVar(&assetSym, "asset", "SOL", "asset symbol")
	cmd.Flags().StringVar(&amountStr, "amount", "", "amount in UI units (required)")
	_ = cmd.MarkFlagRequired("amount")
	cmd.Flags().StringVar(&priceStr, "price", "", "disposal price per UI unit (required)")
	_ = cmd.MarkFlagRequired("price")
	cmd.Flags().StringVar(&whenStr, "when", "", "disposal date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&methodStr, "method", "fifo", "lot selection method (fifo, lifo, lowest-basis, highest-basis, manual)")
	cmd.Flags().UintSliceVar(&lotNumbers, "lots", nil, "lot numbers for manual selection")
	cmd.Flags().StringVar(&signature, "signature", "", "disposing transaction signature")

	return cmd
}

func newAccountDropCommand() *cobra.Command {
	var assetSym, amountStr, methodStr string
	var lotNumbers []uint

	cmd := &cobra.Command{
		Use:   "drop <address>",
		Short: "Remove holdings without proceeds (lost or seized funds)",
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
			ui, err := decimal.NewFromString(amountStr)
			if err != nil {
				return fmt.Errorf("parsing amount %q: %w", amountStr, err)
			}
			method, err := lots.ParseMethod(methodStr)
			if err != nil {
				return err
			}

			disposed, err := e.store.DropLots(args[0], a.Symbol, a.Amount(ui), method, toUint64(lotNumbers), today())
			if err != nil {
				return err
			}
			cmd.Printf("Dropped %d lot(s)\n", len(disposed))
			details := fmt.Sprintf("dropped %s", ui)
			return auditlog.Record(e.dataDir, "drop", args[0], a.Symbol, details, "")
		},
	}

	cmd.Flags().StringVar(&assetSym, "asset", "SOL", "asset symbol")
	cmd.Flags().StringVar(&amountStr, "amount", "", "amount in UI units (required)")
	_ = cmd.MarkFlagRequired("amount")
	cmd.Flags().StringVar(&methodStr, "method", "fifo", "lot selection method")
	cmd.Flags().UintSliceVar(&lotNumbers, "lots", nil, "lot numbers for manual selection")

	return cmd
}

func newAccountMoveLotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move-lot <lot-number> <address>",
		Short: "Move a lot to another tracked account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lotNumber, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parsing lot number %q: %w", args[0], err)
			}

			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.store.MoveLot(lotNumber, args[1]); err != nil {
				return err
			}
			cmd.Printf("Moved lot %d to %s\n", lotNumber, args[1])
			return auditlog.Record(e.dataDir, "move-lot", args[1], "", fmt.Sprintf("lot %d", lotNumber), "")
		},
	}
	return cmd
}

func newAccountSwapLotsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap-lots <lot-number> <lot-number>",
		Short: "Exchange the holders of two lots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lotA, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parsing lot number %q: %w", args[0], err)
			}
			lotB, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("parsing lot number %q: %w", args[1], err)
			}

			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.store.SwapLots(lotA, lotB); err != nil {
				return err
			}
			cmd.Printf("Swapped lots %d and %d\n", lotA, lotB)
			return auditlog.Record(e.dataDir, "swap-lots", "", "", fmt.Sprintf("lots %d and %d", lotA, lotB), "")
		},
	}
	return cmd
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return today(), nil
	}
	when, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return when, nil
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func toUint64(ns []uint) []uint64 {
	var out []uint64
	for _, n := range ns {
		out = append(out, uint64(n))
	}
	return out
}
