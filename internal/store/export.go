package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rcliao/recall/internal/model"
)

// SnapshotVersion is the current export format version.
const SnapshotVersion = 1

// Snapshot is a full, self-contained copy of a store.
type Snapshot struct {
	Version    int             `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Users      []model.User    `json:"users"`
	Projects   []model.Project `json:"projects"`
	Memories   []model.Memory  `json:"memories"`
}

// ImportResult counts the rows written by Import.
type ImportResult struct {
	Users    int `json:"users"`
	Projects int `json:"projects"`
	Memories int `json:"memories"`
}

// ExportAll returns every user, project and memory, expired memories included.
func (s *SQLiteStore) ExportAll(ctx context.Context) (*Snapshot, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := s.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	memories, err := s.Query(ctx, model.MemoryQuery{IncludeExpired: true, OrderAsc: true})
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: model.Timestamp(s.now()),
		Users:      users,
		Projects:   projects,
		Memories:   memories,
	}, nil
}

// Import upserts a snapshot by id in a single transaction. Owners are written
// before memories so references resolve.
func (s *SQLiteStore) Import(ctx context.Context, snap *Snapshot) (ImportResult, error) {
	var res ImportResult
	if err := s.ready(); err != nil {
		return res, err
	}
	if snap == nil {
		return res, nil
	}
	if snap.Version > SnapshotVersion {
		return res, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	for _, u := range snap.Users {
		if err := upsertUser(ctx, tx, u); err != nil {
			return ImportResult{}, err
		}
		res.Users++
	}
	for _, p := range snap.Projects {
		if err := upsertProject(ctx, tx, p); err != nil {
			return ImportResult{}, err
		}
		res.Projects++
	}
	for i := range snap.Memories {
		if err := upsertMemory(ctx, tx, &snap.Memories[i]); err != nil {
			return ImportResult{}, err
		}
		res.Memories++
	}

	if err := tx.Commit(); err != nil {
		return ImportResult{}, err
	}
	return res, nil
}
