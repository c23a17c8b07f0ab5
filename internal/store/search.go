package store

import (
	"context"

	"github.com/rcliao/recall/internal/model"
)

// SearchSimilar always returns an empty result: SQLite has no vector index.
func (s *SQLiteStore) SearchSimilar(ctx context.Context, text string, limit int, q *model.MemoryQuery) ([]model.Memory, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return []model.Memory{}, nil
}

func (s *SQLiteStore) SupportsSemanticSearch() bool {
	return false
}

var _ Store = (*SQLiteStore)(nil)
