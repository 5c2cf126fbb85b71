package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lotkeep-dev/lotkeep/internal/asset"
	"github.com/lotkeep-dev/lotkeep/internal/config"
	"github.com/lotkeep-dev/lotkeep/internal/store"
)

// env bundles what most commands need: the config, the open store, and the
// asset registry.
type env struct {
	dataDir string
	cfg     *config.Config
	store   *store.Store
	assets  *asset.Registry
}

func openEnv(cmd *cobra.Command) (*env, error) {
	dataDir, err := dataDirFlag(cmd)
	if err != nil {
		return nil, err
	}

	cfgPath := config.DefaultPath(dataDir)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no ledger at %s, run lotkeep init first", dataDir)
		}
		return nil, err
	}

	st, err := store.Open(storeDir(dataDir))
	if err != nil {
		return nil, err
	}

	return &env{
		dataDir: dataDir,
		cfg:     cfg,
		store:   st,
		assets:  asset.Default(),
	}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

func storeDir(dataDir string) string {
	return filepath.Join(dataDir, "db")
}
