// Package store provides the memory storage interface and SQLite implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rcliao/recall/internal/model"
)

var (
	// ErrNotInitialized is returned by data operations called before Initialize.
	ErrNotInitialized = errors.New("store not initialized: call Initialize first")

	// ErrInvalidQuery is returned when a MemoryQuery cannot be translated.
	ErrInvalidQuery = errors.New("invalid memory query")
)

// Stats summarizes the stored memories.
type Stats struct {
	DBPath      string                        `json:"db_path,omitempty"`
	DBSizeBytes int64                         `json:"db_size_bytes,omitempty"`
	Total       int                           `json:"total"`
	Expired     int                           `json:"expired"`
	Users       int                           `json:"users"`
	Projects    int                           `json:"projects"`
	ByType      map[model.MemoryType]int      `json:"by_type"`
	ByScope     map[model.Scope]int           `json:"by_scope"`
	ByRetention map[model.RetentionPolicy]int `json:"by_retention"`
	Oldest      *time.Time                    `json:"oldest,omitempty"`
	Newest      *time.Time                    `json:"newest,omitempty"`
}

// Store defines the memory storage interface. Lookups that find nothing
// return a nil value and a nil error.
type Store interface {
	// Initialize opens the backend and creates the schema if missing. It is
	// safe to call more than once.
	Initialize(ctx context.Context) error

	// Close releases the backend.
	Close() error

	// Store inserts or replaces a memory by id.
	Store(ctx context.Context, m *model.Memory) error

	// Get retrieves a memory by id.
	Get(ctx context.Context, id string) (*model.Memory, error)

	// GetAndTrack retrieves a memory and persists its access bookkeeping.
	GetAndTrack(ctx context.Context, id string) (*model.Memory, error)

	// Delete removes a memory by id and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)

	// Query returns the memories matching q in the requested order.
	Query(ctx context.Context, q model.MemoryQuery) ([]model.Memory, error)

	StoreUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByName(ctx context.Context, name string) (*model.User, error)

	StoreProject(ctx context.Context, p model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	GetProjectByPathHash(ctx context.Context, pathHash string) (*model.Project, error)

	// DeleteByQuery removes every memory matching q (ignoring limit, offset
	// and order) and returns how many were removed.
	DeleteByQuery(ctx context.Context, q model.MemoryQuery) (int, error)

	// Count returns the number of memories matching q; nil counts all rows,
	// expired or not.
	Count(ctx context.Context, q *model.MemoryQuery) (int, error)

	// DeleteExpired removes memories whose expiry is strictly in the past.
	DeleteExpired(ctx context.Context) (int, error)

	// Stats returns aggregate counts.
	Stats(ctx context.Context) (*Stats, error)

	// SearchSimilar is reserved for vector backends. Backends without
	// semantic search return an empty result.
	SearchSimilar(ctx context.Context, text string, limit int, q *model.MemoryQuery) ([]model.Memory, error)

	// SupportsSemanticSearch reports whether SearchSimilar is meaningful.
	SupportsSemanticSearch() bool
}
