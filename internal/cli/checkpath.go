package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/recall/internal/config"
	"github.com/rcliao/recall/internal/safety"
)

func newCheckPathCmd(o *rootOptions) *cobra.Command {
	var wd string
	cmd := &cobra.Command{
		Use:   "check-path <path>",
		Short: "Check whether a path stays inside the working directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.WithConfigFile(o.configPath), config.WithStoragePath(o.dbPath))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if wd == "" {
				if wd, err = os.Getwd(); err != nil {
					return err
				}
			}

			res := safety.NewGuard(cfg.Safety, nil).ValidatePath(args[0], wd)
			if o.text() {
				if res.IsSafe {
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "safe: %s\n", res.NormalizedPath)
				} else {
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "unsafe: %s\n", res.Error)
				}
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&wd, "working-dir", "w", "", "Sandbox root (default: current directory)")
	return cmd
}
