package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lotkeep-dev/lotkeep/internal/export"
)

func newExportCommand() *cobra.Command {
	var out string
	var year int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export disposal history as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			disposed, err := e.store.DisposedLots()
			if err != nil {
				return err
			}
			if year != 0 {
				filtered := disposed[:0]
				for _, dl := range disposed {
					if dl.When.Year() == year {
						filtered = append(filtered, dl)
					}
				}
				disposed = filtered
			}

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("creating %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			if err := export.WriteDisposed(w, e.assets, disposed); err != nil {
				return err
			}
			if out != "" {
				cmd.Printf("Wrote %d disposal(s) to %s\n", len(disposed), out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	cmd.Flags().IntVar(&year, "year", 0, "limit to one calendar year")

	return cmd
}
