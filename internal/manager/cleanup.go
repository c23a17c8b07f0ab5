package manager

import (
	"context"
	"fmt"

	"github.com/rcliao/recall/internal/model"
	"github.com/rcliao/recall/internal/store"
)

// CleanupResult counts what Cleanup removed.
type CleanupResult struct {
	Expired int                      `json:"expired"`
	Pruned  map[model.MemoryType]int `json:"pruned"`
}

// Cleanup deletes expired memories, then prunes every type back under its
// count limit.
func (m *Manager) Cleanup(ctx context.Context) (*CleanupResult, error) {
	expired, err := m.store.DeleteExpired(ctx)
	if err != nil {
		return nil, err
	}
	pruned, err := m.Prune(ctx)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range pruned {
		total += n
	}
	m.log.Info("cleanup finished", "expired", expired, "pruned", total)

	if limit := m.cfg.Limits.MaxTotalStorageMB; limit > 0 {
		if st, err := m.store.Stats(ctx); err == nil && st.DBSizeBytes > int64(limit)*1024*1024 {
			m.log.Warn("database exceeds storage limit", "size_bytes", st.DBSizeBytes, "limit_mb", limit)
		}
	}

	return &CleanupResult{Expired: expired, Pruned: pruned}, nil
}

// Prune keeps the newest memories of each type up to the configured cap and
// deletes the rest. User-owned types are capped for the session user,
// project-owned types for the active project and tool patterns globally.
func (m *Manager) Prune(ctx context.Context) (map[model.MemoryType]int, error) {
	pruned := map[model.MemoryType]int{}
	for _, t := range model.MemoryTypes {
		limit := m.cfg.Limits.Cap(t)
		if limit <= 0 {
			continue
		}
		q, ok := m.pruneScope(t)
		if !ok {
			continue
		}
		q.MemoryTypes = []model.MemoryType{t}
		q.IncludeExpired = true
		q.Offset = limit

		excess, err := m.store.Query(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("prune %s: %w", t, err)
		}
		for _, mem := range excess {
			if _, err := m.store.Delete(ctx, mem.ID); err != nil {
				return nil, fmt.Errorf("prune %s: %w", t, err)
			}
		}
		if len(excess) > 0 {
			pruned[t] = len(excess)
			m.log.Debug("pruned memories", "memory_type", t, "count", len(excess), "limit", limit)
		}
	}
	return pruned, nil
}

func (m *Manager) pruneScope(t model.MemoryType) (model.MemoryQuery, bool) {
	switch t {
	case model.TypeConversation, model.TypeUserPreference, model.TypeLearnedCorrection:
		return model.MemoryQuery{UserID: m.CurrentUser().ID}, true
	case model.TypeProjectContext, model.TypeTaskResult:
		if m.project == nil {
			return model.MemoryQuery{}, false
		}
		return model.MemoryQuery{ProjectID: m.project.ID}, true
	case model.TypeToolPattern:
		return model.MemoryQuery{Scopes: []model.Scope{model.ScopeGlobal}}, true
	}
	return model.MemoryQuery{}, false
}

// Stats returns aggregate store statistics.
func (m *Manager) Stats(ctx context.Context) (*store.Stats, error) {
	return m.store.Stats(ctx)
}

// snapshotter is implemented by stores that can export and import their
// full contents.
type snapshotter interface {
	ExportAll(ctx context.Context) (*store.Snapshot, error)
	Import(ctx context.Context, snap *store.Snapshot) (store.ImportResult, error)
}

// Export returns a snapshot of the whole store.
func (m *Manager) Export(ctx context.Context) (*store.Snapshot, error) {
	s, ok := m.store.(snapshotter)
	if !ok {
		return nil, ErrUnsupported
	}
	return s.ExportAll(ctx)
}

// Import upserts a snapshot into the store.
func (m *Manager) Import(ctx context.Context, snap *store.Snapshot) (store.ImportResult, error) {
	s, ok := m.store.(snapshotter)
	if !ok {
		return store.ImportResult{}, ErrUnsupported
	}
	return s.Import(ctx, snap)
}
