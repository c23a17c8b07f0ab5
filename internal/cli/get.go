package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGetCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Retrieve a memory and record the access",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			mem, err := m.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
			if mem == nil {
				return fmt.Errorf("get: memory %s not found", args[0])
			}
			if o.text() {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), renderMemory(mem))
				return err
			}
			return printJSON(cmd.OutOrStdout(), mem)
		},
	}
}
