package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd(o *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export users, projects and memories as JSON",
		Long:  "Export a full snapshot, expired memories included. Writes to stdout unless --out is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			snap, err := m.Export(cmd.Context())
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("export: %w", err)
				}
				defer f.Close()
				w = f
			}
			return printJSON(w, snap)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the snapshot to this file")
	return cmd
}
