// Package cli implements the recall CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/recall/internal/config"
	"github.com/rcliao/recall/internal/logger"
	"github.com/rcliao/recall/internal/manager"
)

const (
	formatJSON = "json"
	formatText = "text"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	dbPath     string
	configPath string
	format     string
	user       string
	project    string
	debug      bool
}

// NewRootCmd builds the command tree. Each call returns an independent tree
// with its own flag state.
func NewRootCmd() *cobra.Command {
	o := &rootOptions{}
	root := &cobra.Command{
		Use:           "recall",
		Short:         "Persistent memory for AI agents",
		Long:          "Scoped, expiring agent memory with a bounded context builder. SQLite-backed, single binary.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if o.format != formatJSON && o.format != formatText {
				return fmt.Errorf("invalid --format %q: want json or text", o.format)
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&o.dbPath, "db", "d", "", "Database path (default: $RECALL_MEMORY_PATH or the XDG data dir)")
	pf.StringVarP(&o.configPath, "config", "c", "", "Config file (default: $XDG_CONFIG_HOME/recall/config.yaml)")
	pf.StringVarP(&o.format, "format", "f", formatJSON, "Output format: json or text")
	pf.StringVarP(&o.user, "user", "u", "", "User name (default: configured default_user)")
	pf.StringVarP(&o.project, "project", "p", "", "Project directory to scope memories to")
	pf.BoolVar(&o.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newRememberCmd(o),
		newContextCmd(o),
		newRecentCmd(o),
		newListCmd(o),
		newGetCmd(o),
		newRmCmd(o),
		newStatsCmd(o),
		newPruneCmd(o),
		newExportCmd(o),
		newImportCmd(o),
		newCheckPathCmd(o),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// open loads configuration, opens the store and applies the --user and
// --project flags. The caller must Close the returned manager.
func (o *rootOptions) open(cmd *cobra.Command) (*manager.Manager, error) {
	cfg, err := config.Load(
		config.WithConfigFile(o.configPath),
		config.WithStoragePath(o.dbPath),
	)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logOpts := []logger.Option{
		logger.WithQuiet(),
		logger.WithWriter(cmd.ErrOrStderr()),
		logger.WithFormat(cfg.Log.Format),
	}
	if o.debug || cfg.Log.Debug {
		logOpts = append(logOpts, logger.WithDebug())
	}
	log := logger.New(logOpts...)
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	ctx := logger.WithLogger(cmd.Context(), log)
	m, err := manager.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if o.user != "" {
		u, err := m.GetOrCreateUser(ctx, o.user)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("resolve user: %w", err)
		}
		m.SetCurrentUser(u)
	}
	if o.project != "" {
		if _, err := m.UseProject(ctx, o.project); err != nil {
			m.Close()
			return nil, fmt.Errorf("resolve project: %w", err)
		}
	}
	return m, nil
}

func (o *rootOptions) text() bool { return o.format == formatText }
