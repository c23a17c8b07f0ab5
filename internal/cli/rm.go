package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRmCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			id := args[0]
			existed, err := m.Forget(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("rm: %w", err)
			}
			if !existed {
				return fmt.Errorf("rm: memory %s not found", id)
			}
			if o.text() {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"id":%q}`+"\n", id)
			return err
		},
	}
}
