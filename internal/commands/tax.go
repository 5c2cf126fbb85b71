package commands

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/lotkeep-dev/lotkeep/internal/export"
	"github.com/lotkeep-dev/lotkeep/internal/model"
)

func newTaxCommand() *cobra.Command {
	taxCmd := &cobra.Command{
		Use:   "tax",
		Short: "Tax rates and realized-gain reporting",
	}
	taxCmd.AddCommand(newTaxSetCommand())
	taxCmd.AddCommand(newTaxShowCommand())
	return taxCmd
}

func newTaxSetCommand() *cobra.Command {
	var incomeStr, shortTermStr, longTermStr string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set estimated tax rates (percent)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			rate, err := e.store.TaxRate()
			if err != nil {
				return err
			}
			if incomeStr != "" {
				if rate.Income, err = parsePercent(incomeStr); err != nil {
					return err
				}
			}
			if shortTermStr != "" {
				if rate.ShortTerm, err = parsePercent(shortTermStr); err != nil {
					return err
				}
			}
			if longTermStr != "" {
				if rate.LongTerm, err = parsePercent(longTermStr); err != nil {
					return err
				}
			}

			if err := e.store.SetTaxRate(rate); err != nil {
				return err
			}
			printRates(cmd, rate)
			return nil
		},
	}

	cmd.Flags().StringVar(&incomeStr, "income", "", "income tax rate")
	cmd.Flags().StringVar(&shortTermStr, "short-term", "", "short-term capital gains rate")
	cmd.Flags().StringVar(&longTermStr, "long-term", "", "long-term capital gains rate")

	return cmd
}

func newTaxShowCommand() *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show rates and realized gains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			rate, err := e.store.TaxRate()
			if err != nil {
				return err
			}
			printRates(cmd, rate)

			disposed, err := e.store.DisposedLots()
			if err != nil {
				return err
			}
			reports, err := export.BuildReport(e.assets, rate, disposed, year)
			if err != nil {
				return err
			}

			total := decimal.Zero
			for _, r := range reports {
				cmd.Printf("%s: income %s, short-term %s, long-term %s, est. tax %s\n",
					r.Asset,
					r.Summary.Income.StringFixed(2),
					r.Summary.ShortTermGain.StringFixed(2),
					r.Summary.LongTermGain.StringFixed(2),
					r.Tax.StringFixed(2))
				total = total.Add(r.Tax)
			}
			cmd.Printf("Estimated tax: %s\n", total.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "limit to one calendar year")

	return cmd
}

func printRates(cmd *cobra.Command, rate model.TaxRate) {
	cmd.Printf("Rates: income %s%%, short-term %s%%, long-term %s%%\n",
		rate.Income, rate.ShortTerm, rate.LongTerm)
}

func parsePercent(s string) (decimal.Decimal, error) {
	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing rate %q: %w", s, err)
	}
	if p.IsNegative() || p.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("rate %s out of range", p)
	}
	return p, nil
}
