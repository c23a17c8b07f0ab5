package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/recall/internal/model"
)

func newRecentCmd(o *rootOptions) *cobra.Command {
	var (
		limit       int
		projectOnly bool
	)
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show recent conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			memories, err := m.GetRecentConversations(cmd.Context(), limit, projectOnly)
			if err != nil {
				return fmt.Errorf("recent: %w", err)
			}
			return writeMemories(cmd, o, memories)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "Max results")
	cmd.Flags().BoolVar(&projectOnly, "project-only", false, "Only conversations in the --project")
	return cmd
}

func newListCmd(o *rootOptions) *cobra.Command {
	var (
		types          []string
		scopes         []string
		retention      []string
		tags           []string
		source         string
		limit          int
		offset         int
		orderBy        string
		asc            bool
		includeExpired bool
		allUsers       bool
		since          time.Duration
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories",
		Long:  "List memories of the current user (and --project, if given). Filters combine with AND; tags match any.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer m.Close()

			q := model.MemoryQuery{
				Tags:           tags,
				Source:         source,
				Limit:          limit,
				Offset:         offset,
				OrderBy:        model.OrderField(orderBy),
				OrderAsc:       asc,
				IncludeExpired: includeExpired,
			}
			for _, t := range types {
				q.MemoryTypes = append(q.MemoryTypes, model.MemoryType(t))
			}
			for _, s := range scopes {
				q.Scopes = append(q.Scopes, model.Scope(s))
			}
			for _, r := range retention {
				q.RetentionPolicies = append(q.RetentionPolicies, model.RetentionPolicy(r))
			}
			// Global memories have no owner to filter on.
			if !allUsers && !globalOnly(q.Scopes) {
				q.UserID = m.CurrentUser().ID
			}
			if p := m.CurrentProject(); p != nil && !globalOnly(q.Scopes) {
				q.ProjectID = p.ID
			}
			if since > 0 {
				after := time.Now().Add(-since)
				q.CreatedAfter = &after
			}

			memories, err := m.Query(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			return writeMemories(cmd, o, memories)
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&types, "type", nil, "Filter by memory type (comma-separated)")
	f.StringSliceVar(&scopes, "scope", nil, "Filter by scope: user, project, global")
	f.StringSliceVar(&retention, "retention", nil, "Filter by retention policy")
	f.StringSliceVarP(&tags, "tags", "t", nil, "Filter by tags, any match (comma-separated)")
	f.StringVar(&source, "source", "", "Filter by source")
	f.IntVarP(&limit, "limit", "l", 20, "Max results (0 for no limit)")
	f.IntVar(&offset, "offset", 0, "Skip this many results")
	f.StringVar(&orderBy, "order-by", "created_at", "Order by created_at, updated_at, importance or access_count")
	f.BoolVar(&asc, "asc", false, "Ascending order")
	f.BoolVar(&includeExpired, "include-expired", false, "Include expired memories")
	f.BoolVar(&allUsers, "all-users", false, "Do not restrict to the current user")
	f.DurationVar(&since, "since", 0, "Only memories created within this duration")
	return cmd
}

func writeMemories(cmd *cobra.Command, o *rootOptions, memories []model.Memory) error {
	if o.text() {
		if len(memories) == 0 {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "no memories")
			return err
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), renderMemories(memories, time.Now()))
		return err
	}
	return printJSON(cmd.OutOrStdout(), memories)
}

func globalOnly(scopes []model.Scope) bool {
	for _, s := range scopes {
		if s != model.ScopeGlobal {
			return false
		}
	}
	return len(scopes) > 0
}
