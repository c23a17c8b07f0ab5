package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/recall/internal/model"
)

func contents(ms []model.Memory) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Content
	}
	return out
}

// seedQueryFixture stores five memories with distinct creation times,
// oldest first: m0..m4.
func seedQueryFixture(t *testing.T, s *SQLiteStore) (userID, projectID string) {
	t.Helper()
	ctx := context.Background()
	userID, projectID = seedOwners(t, s)
	t0 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	past := time.Now().Add(-time.Hour)

	fixture := []model.MemoryParams{
		{Content: "m0", MemoryType: model.TypeConversation, Scope: model.ScopeUser, UserID: userID, Importance: 0.1, Tags: []string{"chat"}},
		{Content: "m1", MemoryType: model.TypeUserPreference, Scope: model.ScopeUser, UserID: userID, Importance: 0.8, RetentionPolicy: model.RetentionLongTerm, Tags: []string{"preference", "style"}},
		{Content: "m2", MemoryType: model.TypeProjectContext, Scope: model.ScopeProject, ProjectID: projectID, UserID: userID, Importance: 0.5, RetentionPolicy: model.RetentionMediumTerm, Tags: []string{"context"}, Source: "cli"},
		{Content: "m3", MemoryType: model.TypeToolPattern, Scope: model.ScopeGlobal, Importance: 0.5, RetentionPolicy: model.RetentionMediumTerm, Tags: []string{"tool", "pattern"}},
		{Content: "m4", MemoryType: model.TypeConversation, Scope: model.ScopeUser, UserID: userID, Importance: 0.2, ExpiresAt: &past},
	}
	for i, p := range fixture {
		p.CreatedAt = t0.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.Store(ctx, newMem(t, p)))
	}
	return userID, projectID
}

func TestQuery_Filters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	userID, projectID := seedQueryFixture(t, s)
	t0 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	after := t0.Add(30 * time.Minute)
	before := t0.Add(150 * time.Minute)

	tests := []struct {
		name  string
		query model.MemoryQuery
		want  []string
	}{
		{name: "everything unexpired newest first", query: model.MemoryQuery{}, want: []string{"m3", "m2", "m1", "m0"}},
		{name: "include expired", query: model.MemoryQuery{IncludeExpired: true}, want: []string{"m4", "m3", "m2", "m1", "m0"}},
		{name: "by user", query: model.MemoryQuery{UserID: userID}, want: []string{"m2", "m1", "m0"}},
		{name: "by project", query: model.MemoryQuery{ProjectID: projectID}, want: []string{"m2"}},
		{name: "by type", query: model.MemoryQuery{MemoryTypes: []model.MemoryType{model.TypeConversation}, IncludeExpired: true}, want: []string{"m4", "m0"}},
		{name: "by types", query: model.MemoryQuery{MemoryTypes: []model.MemoryType{model.TypeUserPreference, model.TypeToolPattern}}, want: []string{"m3", "m1"}},
		{name: "by scopes", query: model.MemoryQuery{Scopes: []model.Scope{model.ScopeGlobal, model.ScopeProject}}, want: []string{"m3", "m2"}},
		{name: "by retention", query: model.MemoryQuery{RetentionPolicies: []model.RetentionPolicy{model.RetentionMediumTerm}}, want: []string{"m3", "m2"}},
		{name: "tag match any", query: model.MemoryQuery{Tags: []string{"style", "tool"}}, want: []string{"m3", "m1"}},
		{name: "tag no match", query: model.MemoryQuery{Tags: []string{"nope"}}, want: []string{}},
		{name: "by source", query: model.MemoryQuery{Source: "cli"}, want: []string{"m2"}},
		{name: "created window", query: model.MemoryQuery{CreatedAfter: &after, CreatedBefore: &before}, want: []string{"m2", "m1"}},
		{name: "combined", query: model.MemoryQuery{UserID: userID, Scopes: []model.Scope{model.ScopeUser}, MemoryTypes: []model.MemoryType{model.TypeConversation}}, want: []string{"m0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, contents(got))

			n, err := s.Count(ctx, &tt.query)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), n)
		})
	}
}

func TestQuery_OrderAndPaging(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedQueryFixture(t, s)

	tests := []struct {
		name  string
		query model.MemoryQuery
		want  []string
	}{
		{name: "ascending", query: model.MemoryQuery{OrderAsc: true}, want: []string{"m0", "m1", "m2", "m3"}},
		{name: "by importance desc", query: model.MemoryQuery{OrderBy: model.OrderImportance}, want: []string{"m1", "m3", "m2", "m0"}},
		{name: "limit", query: model.MemoryQuery{Limit: 2}, want: []string{"m3", "m2"}},
		{name: "limit offset", query: model.MemoryQuery{Limit: 2, Offset: 1}, want: []string{"m2", "m1"}},
		{name: "offset only", query: model.MemoryQuery{Offset: 3}, want: []string{"m0"}},
		{name: "offset past end", query: model.MemoryQuery{Offset: 10}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(ctx, tt.query)
			require.NoError(t, err)
			// Ties on importance break on id, which follows insertion order
			// here, so m3 sorts before m2 descending.
			assert.Equal(t, tt.want, contents(got))
		})
	}
}

func TestQuery_Invalid(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	bad := []model.MemoryQuery{
		{OrderBy: "content; DROP TABLE memories"},
		{Limit: -1},
		{Offset: -1},
		{MemoryTypes: []model.MemoryType{"bogus"}},
		{Scopes: []model.Scope{"bogus"}},
		{RetentionPolicies: []model.RetentionPolicy{"bogus"}},
	}
	for _, q := range bad {
		_, err := s.Query(ctx, q)
		assert.ErrorIs(t, err, ErrInvalidQuery, "%+v", q)
	}
}

func TestDeleteByQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	userID, _ := seedQueryFixture(t, s)

	n, err := s.DeleteByQuery(ctx, model.MemoryQuery{
		UserID:         userID,
		MemoryTypes:    []model.MemoryType{model.TypeConversation},
		IncludeExpired: true,
		Limit:          1, // ignored
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := s.Query(ctx, model.MemoryQuery{IncludeExpired: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"m3", "m2", "m1"}, contents(left))

	n, err = s.DeleteByQuery(ctx, model.MemoryQuery{Tags: []string{"nothing"}})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBuildConditions(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	where, args, err := buildConditions(model.MemoryQuery{IncludeExpired: true}, now)
	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args, err = buildConditions(model.MemoryQuery{
		UserID: "usr_1",
		Scopes: []model.Scope{model.ScopeUser, model.ScopeGlobal},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, " WHERE user_id = ? AND scope IN (?, ?) AND (expires_at IS NULL OR expires_at > ?)", where)
	assert.Equal(t, []any{"usr_1", "user", "global", "2026-01-01T00:00:00.000000000Z"}, args)
}
