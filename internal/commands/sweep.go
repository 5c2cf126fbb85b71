package commands

import (
	"github.com/spf13/cobra"

	"github.com/lotkeep-dev/lotkeep/internal/model"
)

func newSweepCommand() *cobra.Command {
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Sweep-account configuration",
	}
	sweepCmd.AddCommand(newSweepSetCommand())
	sweepCmd.AddCommand(newSweepShowCommand())
	sweepCmd.AddCommand(newSweepAddTransitoryCommand())
	sweepCmd.AddCommand(newSweepRemoveTransitoryCommand())
	return sweepCmd
}

func newSweepSetCommand() *cobra.Command {
	var authority string

	cmd := &cobra.Command{
		Use:   "set <address>",
		Short: "Set the sweep destination account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.store.SetSweepAccount(model.SweepAccount{
				Address:   args[0],
				Authority: authority,
			}); err != nil {
				return err
			}
			cmd.Printf("Sweep account set to %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&authority, "authority", "", "path to the authority keypair")

	return cmd
}

func newSweepShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show sweep configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			sweep, err := e.store.SweepAccount()
			if err != nil {
				return err
			}
			cmd.Printf("Sweep account: %s\n", sweep.Address)

			transitory, err := e.store.TransitorySweepAddresses()
			if err != nil {
				return err
			}
			for _, addr := range transitory {
				cmd.Printf("  transitory: %s\n", addr)
			}
			return nil
		},
	}
	return cmd
}

func newSweepAddTransitoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-transitory <address>",
		Short: "Register a transitory address awaiting consolidation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.store.AddTransitorySweepAddress(args[0]); err != nil {
				return err
			}
			cmd.Printf("Added transitory sweep address %s\n", args[0])
			return nil
		},
	}
	return cmd
}

func newSweepRemoveTransitoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm-transitory <address>",
		Short: "Unregister a transitory sweep address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.store.RemoveTransitorySweepAddress(args[0]); err != nil {
				return err
			}
			cmd.Printf("Removed transitory sweep address %s\n", args[0])
			return nil
		},
	}
	return cmd
}
