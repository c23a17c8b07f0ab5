package manager

import (
	"context"

	"github.com/rcliao/recall/internal/model"
)

const (
	defaultRecentLimit     = 10
	defaultCorrectionLimit = 10
)

// GetRecentConversations returns the session user's latest conversations,
// newest first. With includeProject and an active project, only that
// project's conversations are returned.
func (m *Manager) GetRecentConversations(ctx context.Context, limit int, includeProject bool) ([]model.Memory, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	q := model.MemoryQuery{
		UserID:      m.CurrentUser().ID,
		MemoryTypes: []model.MemoryType{model.TypeConversation},
		Limit:       limit,
	}
	if includeProject && m.project != nil {
		q.ProjectID = m.project.ID
	}
	return m.store.Query(ctx, q)
}

// GetUserPreferences returns the session user's preferences, newest first.
func (m *Manager) GetUserPreferences(ctx context.Context) ([]model.Memory, error) {
	return m.store.Query(ctx, model.MemoryQuery{
		UserID:      m.CurrentUser().ID,
		MemoryTypes: []model.MemoryType{model.TypeUserPreference},
		Limit:       m.cfg.Limits.MaxMemoriesInContext,
	})
}

// GetProjectContext returns context for the active project; it is empty when
// no project is active.
func (m *Manager) GetProjectContext(ctx context.Context) ([]model.Memory, error) {
	if m.project == nil {
		return []model.Memory{}, nil
	}
	return m.store.Query(ctx, model.MemoryQuery{
		UserID:      m.CurrentUser().ID,
		ProjectID:   m.project.ID,
		MemoryTypes: []model.MemoryType{model.TypeProjectContext},
		Limit:       m.cfg.Limits.MaxMemoriesInContext,
	})
}

// GetRelevantCorrections returns the session user's latest corrections.
func (m *Manager) GetRelevantCorrections(ctx context.Context, limit int) ([]model.Memory, error) {
	if limit <= 0 {
		limit = defaultCorrectionLimit
	}
	return m.store.Query(ctx, model.MemoryQuery{
		UserID:      m.CurrentUser().ID,
		MemoryTypes: []model.MemoryType{model.TypeLearnedCorrection},
		Limit:       limit,
	})
}

// GetToolPatterns returns global tool patterns, optionally for one tool.
func (m *Manager) GetToolPatterns(ctx context.Context, toolName string, limit int) ([]model.Memory, error) {
	q := model.MemoryQuery{
		Scopes:      []model.Scope{model.ScopeGlobal},
		MemoryTypes: []model.MemoryType{model.TypeToolPattern},
		Limit:       limit,
	}
	if toolName != "" {
		q.Tags = []string{toolName}
	}
	return m.store.Query(ctx, q)
}

// Query runs q against the store unchanged.
func (m *Manager) Query(ctx context.Context, q model.MemoryQuery) ([]model.Memory, error) {
	return m.store.Query(ctx, q)
}

// Get returns a memory by id and records the access. A missing memory
// yields nil.
func (m *Manager) Get(ctx context.Context, id string) (*model.Memory, error) {
	return m.store.GetAndTrack(ctx, id)
}

// Forget deletes a memory by id and reports whether it existed.
func (m *Manager) Forget(ctx context.Context, id string) (bool, error) {
	return m.store.Delete(ctx, id)
}
