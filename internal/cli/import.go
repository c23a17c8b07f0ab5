package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/recall/internal/store"
)

func newImportCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Import a snapshot produced by export",
		Long:  "Import a snapshot from a file or stdin. Rows are upserted by id in one transaction.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("import: %w", err)
				}
				defer f.Close()
				r = f
			}

			var snap store.Snapshot
			if err := json.NewDecoder(r).Decode(&snap); err != nil {
				return fmt.Errorf("parse json: %w", err)
			}

			m, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			res, err := m.Import(cmd.Context(), &snap)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			if o.text() {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d users, %d projects, %d memories\n",
					res.Users, res.Projects, res.Memories)
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}
