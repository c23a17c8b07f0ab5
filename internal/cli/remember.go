package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/recall/internal/manager"
	"github.com/rcliao/recall/internal/model"
)

type rememberOptions struct {
	importance float64
	tags       []string
	source     string
	failed     bool
}

func (r *rememberOptions) writeOptions(cmd *cobra.Command) []manager.WriteOption {
	var opts []manager.WriteOption
	if cmd.Flags().Changed("importance") {
		opts = append(opts, manager.WithImportance(r.importance))
	}
	if cmd.Flags().Changed("tags") {
		opts = append(opts, manager.WithTags(r.tags...))
	}
	opts = append(opts, manager.WithSource(r.source))
	return opts
}

// storeFunc writes one memory from positional arguments.
type storeFunc func(ctx context.Context, m *manager.Manager, args []string, opts []manager.WriteOption) (*model.Memory, error)

func newRememberCmd(o *rootOptions) *cobra.Command {
	r := &rememberOptions{}
	cmd := &cobra.Command{
		Use:   "remember",
		Short: "Store a memory",
		Long:  "Store a memory of the given kind. Content is sanitized before it is written.",
	}
	pf := cmd.PersistentFlags()
	pf.Float64Var(&r.importance, "importance", 0, "Importance between 0.0 and 1.0 (default: per memory type)")
	pf.StringSliceVarP(&r.tags, "tags", "t", nil, "Tags, replacing the defaults (comma-separated)")
	pf.StringVar(&r.source, "source", "cli", "Where the memory came from")

	single := func(fn func(*manager.Manager, context.Context, string, ...manager.WriteOption) (*model.Memory, error)) storeFunc {
		return func(ctx context.Context, m *manager.Manager, args []string, opts []manager.WriteOption) (*model.Memory, error) {
			return fn(m, ctx, args[0], opts...)
		}
	}

	cmd.AddCommand(
		rememberSub(o, r, "preference [text]", "Store a user preference", 0,
			single((*manager.Manager).StoreUserPreference)),
		rememberSub(o, r, "project [text]", "Store context about the active project", 0,
			single((*manager.Manager).StoreProjectContext)),
		rememberSub(o, r, "correction <original> <correction>", "Store a learned correction", 2,
			func(ctx context.Context, m *manager.Manager, args []string, opts []manager.WriteOption) (*model.Memory, error) {
				return m.StoreLearnedCorrection(ctx, args[0], args[1], opts...)
			}),
		rememberSub(o, r, "conversation <user-message> <assistant-response>", "Store a conversation turn", 2,
			func(ctx context.Context, m *manager.Manager, args []string, opts []manager.WriteOption) (*model.Memory, error) {
				return m.StoreConversation(ctx, args[0], args[1], opts...)
			}),
		rememberSub(o, r, "tool <tool-name> <pattern>", "Store a global tool usage pattern", 2,
			func(ctx context.Context, m *manager.Manager, args []string, opts []manager.WriteOption) (*model.Memory, error) {
				return m.StoreToolPattern(ctx, args[0], args[1], !r.failed, opts...)
			}),
		rememberSub(o, r, "task <task> <result>", "Store a task outcome", 2,
			func(ctx context.Context, m *manager.Manager, args []string, opts []manager.WriteOption) (*model.Memory, error) {
				return m.StoreTaskResult(ctx, args[0], args[1], !r.failed, opts...)
			}),
	)
	return cmd
}

// rememberSub builds one remember subcommand. nargs == 0 takes free text
// from the arguments or stdin.
func rememberSub(o *rootOptions, r *rememberOptions, use, short string, nargs int, fn storeFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if nargs == 0 {
				content, err := readContent(cmd.InOrStdin(), args)
				if err != nil {
					return err
				}
				if content == "" {
					return errors.New("content is required (positional arg or stdin)")
				}
				args = []string{content}
			}

			m, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			mem, err := fn(cmd.Context(), m, args, r.writeOptions(cmd))
			if err != nil {
				return fmt.Errorf("remember: %w", err)
			}
			if o.text() {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), mem.ID)
				return err
			}
			return printJSON(cmd.OutOrStdout(), mem)
		},
	}
	if nargs > 0 {
		cmd.Args = cobra.ExactArgs(nargs)
	}
	if cmd.Name() == "tool" || cmd.Name() == "task" {
		cmd.Flags().BoolVar(&r.failed, "failed", false, "Record the outcome as a failure")
	}
	return cmd
}
