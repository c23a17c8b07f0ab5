package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/rcliao/recall/internal/model"
)

func newStatsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			st, err := m.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			if o.text() {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), renderStats(st))
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
}

func newPruneCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired memories and trim each type to its limit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			res, err := m.Cleanup(cmd.Context())
			if err != nil {
				return fmt.Errorf("prune: %w", err)
			}
			if o.text() {
				t := table.NewWriter()
				t.AppendHeader(table.Row{"Removed", "Count"})
				t.AppendRow(table.Row{"expired", res.Expired})
				for _, mt := range model.MemoryTypes {
					if n := res.Pruned[mt]; n > 0 {
						t.AppendRow(table.Row{"over limit: " + string(mt), n})
					}
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}
