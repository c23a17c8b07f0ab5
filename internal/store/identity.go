package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rcliao/recall/internal/model"
)

const (
	userColumns    = `id, name, created_at, tags_json`
	projectColumns = `id, path_hash, name, last_known_path, created_at, tags_json`
)

func (s *SQLiteStore) StoreUser(ctx context.Context, u model.User) error {
	if err := s.ready(); err != nil {
		return err
	}
	return upsertUser(ctx, s.db, u)
}

func upsertUser(ctx context.Context, ex execer, u model.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	tags, err := encodeTags(u.Tags)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			created_at = excluded.created_at,
			tags_json = excluded.tags_json`,
		u.ID, u.Name, formatTime(u.CreatedAt), tags)
	if err != nil {
		return fmt.Errorf("store user %s: %w", u.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByName returns the oldest user with the given name.
func (s *SQLiteStore) GetUserByName(ctx context.Context, name string) (*model.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE name = ? ORDER BY created_at, id LIMIT 1`, name)
}

func (s *SQLiteStore) getUser(ctx context.Context, query string, arg string) (*model.User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", arg, err)
	}
	return &u, nil
}

// ListUsers returns all users, oldest first.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]model.User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row scanner) (model.User, error) {
	var u model.User
	var createdAt, tagsJSON string
	if err := row.Scan(&u.ID, &u.Name, &createdAt, &tagsJSON); err != nil {
		return u, err
	}
	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return u, err
	}
	u.Tags, err = decodeTags(tagsJSON)
	return u, err
}

func (s *SQLiteStore) StoreProject(ctx context.Context, p model.Project) error {
	if err := s.ready(); err != nil {
		return err
	}
	return upsertProject(ctx, s.db, p)
}

func upsertProject(ctx context.Context, ex execer, p model.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	tags, err := encodeTags(p.Tags)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			path_hash = excluded.path_hash,
			name = excluded.name,
			last_known_path = excluded.last_known_path,
			created_at = excluded.created_at,
			tags_json = excluded.tags_json`,
		p.ID, p.PathHash, p.Name, p.LastKnownPath, formatTime(p.CreatedAt), tags)
	if err != nil {
		return fmt.Errorf("store project %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return s.getProject(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
}

func (s *SQLiteStore) GetProjectByPathHash(ctx context.Context, pathHash string) (*model.Project, error) {
	return s.getProject(ctx, `SELECT `+projectColumns+` FROM projects WHERE path_hash = ?`, pathHash)
}

func (s *SQLiteStore) getProject(ctx context.Context, query string, arg string) (*model.Project, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	p, err := scanProject(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project %q: %w", arg, err)
	}
	return &p, nil
}

// ListProjects returns all projects, oldest first.
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]model.Project, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func scanProject(row scanner) (model.Project, error) {
	var p model.Project
	var createdAt, tagsJSON string
	if err := row.Scan(&p.ID, &p.PathHash, &p.Name, &p.LastKnownPath, &createdAt, &tagsJSON); err != nil {
		return p, err
	}
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return p, err
	}
	p.Tags, err = decodeTags(tagsJSON)
	return p, err
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func decodeTags(s string) ([]string, error) {
	tags := []string{}
	if s == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}
