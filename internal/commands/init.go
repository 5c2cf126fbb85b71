package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lotkeep-dev/lotkeep/internal/config"
	"github.com/lotkeep-dev/lotkeep/internal/store"
)

func newInitCommand() *cobra.Command {
	var rpcURL string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, err := dataDirFlag(cmd)
			if err != nil {
				return err
			}
			return runInit(cmd, dataDir, rpcURL)
		},
	}

	cmd.Flags().StringVar(&rpcURL, "url", "", "chain RPC endpoint (default mainnet)")

	return cmd
}

func runInit(cmd *cobra.Command, dataDir, rpcURL string) error {
	cfgPath := config.DefaultPath(dataDir)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("ledger already initialized at %s", dataDir)
	}

	dirs := []string{
		"logs",
		"import",
		filepath.Join("import", "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dataDir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default(dataDir)
	if rpcURL != "" {
		cfg.Chain.RPCURL = rpcURL
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Open once so the database exists and the directory lock works.
	st, err := store.Open(storeDir(dataDir))
	if err != nil {
		return fmt.Errorf("creating ledger store: %w", err)
	}
	if err := st.Close(); err != nil {
		return err
	}

	cmd.Printf("Initialized ledger in %s\n", dataDir)
	return nil
}
