package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lotkeep-dev/lotkeep/internal/auditlog"
	"github.com/lotkeep-dev/lotkeep/internal/importer"
)

func newImportCommand() *cobra.Command {
	var format, address string
	var keep bool

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Import exchange fill exports from files or the import directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			registry := importer.DefaultRegistry()
			parser := registry.Get(format)
			if parser == nil {
				return fmt.Errorf("unknown import format %q (have: %v)", format, registry.Formats())
			}

			files := args
			fromScan := false
			if len(files) == 0 {
				scanned, err := importer.Scan(e.dataDir)
				if err != nil {
					return err
				}
				for _, f := range scanned {
					files = append(files, f.Path)
				}
				fromScan = true
			}
			if len(files) == 0 {
				cmd.Println("Nothing to import")
				return nil
			}

			for _, path := range files {
				if err := importFile(cmd, e, parser, address, path); err != nil {
					return err
				}
				if fromScan && !keep {
					name := filepath.Base(path)
					if err := importer.MarkProcessed(e.dataDir, name); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "coinbase", "fill export format")
	cmd.Flags().StringVar(&address, "address", "", "account address receiving the fills (required)")
	_ = cmd.MarkFlagRequired("address")
	cmd.Flags().BoolVar(&keep, "keep", false, "do not move scanned files to import/processed")

	return cmd
}

func importFile(cmd *cobra.Command, e *env, parser importer.Parser, address, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	fills, err := parser.Parse(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(fills) == 0 {
		cmd.Printf("%s: no fills\n", path)
		return nil
	}

	result, err := importer.Apply(e.store, e.assets, address, fills)
	if err != nil {
		return fmt.Errorf("applying %s: %w", path, err)
	}
	cmd.Printf("%s: %d lot(s) created, %d disposal(s)\n", path, result.LotsCreated, len(result.Disposed))

	details := fmt.Sprintf("%s: %d fills", filepath.Base(path), len(fills))
	return auditlog.Record(e.dataDir, "import", address, "", details, "")
}
