package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rcliao/recall/internal/model"
)

// timeLayout is fixed width so that lexical order of stored timestamps equals
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const memoryColumns = `id, content, scope, memory_type, retention_policy, user_id, project_id,
	tags_json, metadata_json, created_at, updated_at, expires_at, last_accessed_at,
	access_count, importance, source`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	path string
	db   *sql.DB
	now  func() time.Time
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock sets the time source used for expiry checks and access tracking.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSQLiteStore returns a store for the database at dbPath. No I/O happens
// until Initialize.
func NewSQLiteStore(dbPath string, opts ...Option) *SQLiteStore {
	s := &SQLiteStore{path: dbPath, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenSQLiteStore creates and initializes a store.
func OpenSQLiteStore(ctx context.Context, dbPath string, opts ...Option) (*SQLiteStore, error) {
	s := NewSQLiteStore(dbPath, opts...)
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Initialize(ctx context.Context) error {
	if s.db == nil {
		dir := filepath.Dir(s.path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create db dir: %w", err)
		}

		db, err := sql.Open("sqlite", s.path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		db.SetMaxOpenConns(1)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return fmt.Errorf("open db: %w", err)
		}
		s.db = db
	}

	if err := s.migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		tags_json  TEXT NOT NULL DEFAULT '[]'
	);
	CREATE INDEX IF NOT EXISTS idx_users_name ON users(name);

	CREATE TABLE IF NOT EXISTS projects (
		id              TEXT PRIMARY KEY,
		path_hash       TEXT NOT NULL UNIQUE,
		name            TEXT NOT NULL,
		last_known_path TEXT NOT NULL DEFAULT '',
		created_at      TEXT NOT NULL,
		tags_json       TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS memories (
		id               TEXT PRIMARY KEY,
		content          TEXT NOT NULL,
		scope            TEXT NOT NULL,
		memory_type      TEXT NOT NULL,
		retention_policy TEXT NOT NULL,
		user_id          TEXT REFERENCES users(id),
		project_id       TEXT REFERENCES projects(id),
		tags_json        TEXT NOT NULL DEFAULT '[]',
		metadata_json    TEXT NOT NULL DEFAULT '{}',
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL,
		expires_at       TEXT,
		last_accessed_at TEXT,
		access_count     INTEGER NOT NULL DEFAULT 0,
		importance       REAL NOT NULL DEFAULT 0.5,
		source           TEXT NOT NULL DEFAULT 'unknown'
	);
	CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id);
	CREATE INDEX IF NOT EXISTS idx_memories_project ON memories(project_id);
	CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(memory_type);
	CREATE INDEX IF NOT EXISTS idx_memories_expires ON memories(expires_at);
	CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at DESC);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) ready() error {
	if s.db == nil {
		return ErrNotInitialized
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) Store(ctx context.Context, m *model.Memory) error {
	if err := s.ready(); err != nil {
		return err
	}
	return upsertMemory(ctx, s.db, m)
}

func upsertMemory(ctx context.Context, ex execer, m *model.Memory) error {
	if m == nil {
		return fmt.Errorf("%w: nil memory", model.ErrValidation)
	}
	if err := m.Validate(); err != nil {
		return err
	}

	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	meta := m.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	_, err = ex.ExecContext(ctx,
		`INSERT INTO memories (`+memoryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			scope = excluded.scope,
			memory_type = excluded.memory_type,
			retention_policy = excluded.retention_policy,
			user_id = excluded.user_id,
			project_id = excluded.project_id,
			tags_json = excluded.tags_json,
			metadata_json = excluded.metadata_json,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at,
			last_accessed_at = excluded.last_accessed_at,
			access_count = excluded.access_count,
			importance = excluded.importance,
			source = excluded.source`,
		m.ID, m.Content, string(m.Scope), string(m.MemoryType), string(m.RetentionPolicy),
		nullString(m.UserID), nullString(m.ProjectID),
		string(tagsJSON), string(metaJSON),
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
		formatTimePtr(m.ExpiresAt), formatTimePtr(m.LastAccessedAt),
		m.AccessCount, m.Importance, m.Source)
	if err != nil {
		return fmt.Errorf("store memory %s: %w", m.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Memory, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory %s: %w", id, err)
	}
	return &m, nil
}

func (s *SQLiteStore) GetAndTrack(ctx context.Context, id string) (*model.Memory, error) {
	m, err := s.Get(ctx, id)
	if err != nil || m == nil {
		return m, err
	}
	m.MarkAccessed(s.now())
	_, err = s.db.ExecContext(ctx,
		`UPDATE memories SET access_count = ?, last_accessed_at = ? WHERE id = ?`,
		m.AccessCount, formatTimePtr(m.LastAccessedAt), m.ID)
	if err != nil {
		return nil, fmt.Errorf("track access %s: %w", id, err)
	}
	return m, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete memory %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) Query(ctx context.Context, q model.MemoryQuery) ([]model.Memory, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	where, args, err := buildConditions(q, s.now())
	if err != nil {
		return nil, err
	}
	tail, tailArgs, err := orderAndPage(q)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + memoryColumns + ` FROM memories` + where + tail
	args = append(args, tailArgs...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	memories := []model.Memory{}
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var scope, memType, retention, tagsJSON, metaJSON, createdAt, updatedAt string
	var userID, projectID, expiresAt, lastAccessed sql.NullString

	err := row.Scan(
		&m.ID, &m.Content, &scope, &memType, &retention, &userID, &projectID,
		&tagsJSON, &metaJSON, &createdAt, &updatedAt, &expiresAt, &lastAccessed,
		&m.AccessCount, &m.Importance, &m.Source,
	)
	if err != nil {
		return m, err
	}

	m.Scope = model.Scope(scope)
	m.MemoryType = model.MemoryType(memType)
	m.RetentionPolicy = model.RetentionPolicy(retention)
	m.UserID = userID.String
	m.ProjectID = projectID.String

	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return m, err
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return m, err
	}
	if m.ExpiresAt, err = parseTimePtr(expiresAt); err != nil {
		return m, err
	}
	if m.LastAccessedAt, err = parseTimePtr(lastAccessed); err != nil {
		return m, err
	}

	m.Tags = []string{}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
			return m, fmt.Errorf("decode tags of %s: %w", m.ID, err)
		}
		if m.Tags == nil {
			m.Tags = []string{}
		}
	}
	m.Metadata = map[string]any{}
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &m.Metadata); err != nil {
			return m, fmt.Errorf("decode metadata of %s: %w", m.ID, err)
		}
		if m.Metadata == nil {
			m.Metadata = map[string]any{}
		}
	}
	return m, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Rows written by other tools may carry a plain RFC 3339 value.
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
		}
	}
	return model.Timestamp(t), nil
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
