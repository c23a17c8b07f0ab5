package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newContextCmd(o *rootOptions) *cobra.Command {
	var (
		maxChars      int
		noCorrections bool
		noPreferences bool
		noProject     bool
		noHistory     bool
	)
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Assemble memories into a prompt context block",
		Long: "Assemble corrections, preferences, project context and recent history " +
			"into a block that never exceeds the character budget.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			opts := m.DefaultContextOptions()
			if cmd.Flags().Changed("max-chars") {
				opts.MaxChars = maxChars
			}
			opts.IncludeCorrections = !noCorrections
			opts.IncludePreferences = !noPreferences
			opts.IncludeProject = !noProject
			opts.IncludeHistory = !noHistory

			res, err := m.BuildContext(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("context: %w", err)
			}
			if o.text() {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Text)
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().IntVarP(&maxChars, "max-chars", "m", 0, "Character budget (default: limits.max_context_chars)")
	cmd.Flags().BoolVar(&noCorrections, "no-corrections", false, "Leave out learned corrections")
	cmd.Flags().BoolVar(&noPreferences, "no-preferences", false, "Leave out user preferences")
	cmd.Flags().BoolVar(&noProject, "no-project", false, "Leave out project context")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Leave out conversation history")
	return cmd
}
