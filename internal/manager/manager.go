// Package manager is the agent-facing API over memory storage. It owns the
// rules for scope, retention and the context budget.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/rcliao/recall/internal/config"
	"github.com/rcliao/recall/internal/logger"
	"github.com/rcliao/recall/internal/model"
	"github.com/rcliao/recall/internal/safety"
	"github.com/rcliao/recall/internal/store"
)

var (
	// ErrNoProject is returned by project-scoped operations when no project
	// is active.
	ErrNoProject = errors.New("no active project")

	// ErrUnsupported is returned when the store lacks an optional capability.
	ErrUnsupported = errors.New("operation not supported by store")
)

// Deps are the collaborators of a Manager. Config and Store are required.
type Deps struct {
	Config *config.Config
	Store  store.Store
	Guard  *safety.Guard    // nil builds one from Config.Safety
	Logger *slog.Logger     // nil discards
	Now    func() time.Time // nil uses time.Now

	// User and Project preset the session identity.
	User    *model.User
	Project *model.Project
}

// Manager coordinates the safety guard and the store. It is not safe for
// concurrent use.
type Manager struct {
	cfg   *config.Config
	store store.Store
	guard *safety.Guard
	log   *slog.Logger
	now   func() time.Time

	user    *model.User
	project *model.Project

	ownsStore bool
}

// New builds a Manager and resolves the session user. A failure to resolve
// the user is returned as an error.
func New(ctx context.Context, deps Deps) (*Manager, error) {
	if deps.Config == nil {
		return nil, errors.New("manager: config is required")
	}
	if deps.Store == nil {
		return nil, errors.New("manager: store is required")
	}

	m := &Manager{
		cfg:     deps.Config,
		store:   deps.Store,
		guard:   deps.Guard,
		log:     logger.Component(deps.Logger, "manager"),
		now:     deps.Now,
		project: deps.Project,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.guard == nil {
		m.guard = safety.NewGuard(deps.Config.Safety, deps.Logger)
	}
	if deps.User != nil {
		u := *deps.User
		m.user = &u
	}

	if _, err := m.EnsureUser(ctx); err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	return m, nil
}

// Open initializes a SQLite store at cfg.StoragePath and builds a Manager
// that owns it.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Manager, error) {
	if cfg.Backend != "" && cfg.Backend != config.BackendSQLite {
		return nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
	}
	st, err := store.OpenSQLiteStore(ctx, cfg.StoragePath)
	if err != nil {
		return nil, err
	}
	m, err := New(ctx, Deps{Config: cfg, Store: st, Logger: log})
	if err != nil {
		st.Close()
		return nil, err
	}
	m.ownsStore = true
	return m, nil
}

// Close releases the store if the Manager opened it.
func (m *Manager) Close() error {
	if !m.ownsStore {
		return nil
	}
	return m.store.Close()
}

// Config returns the configuration in use.
func (m *Manager) Config() *config.Config { return m.cfg }

// Guard returns the safety guard in use.
func (m *Manager) Guard() *safety.Guard { return m.guard }

// Store returns the underlying store.
func (m *Manager) Store() store.Store { return m.store }

// EnsureUser returns the session user, creating the configured default user
// on first use.
func (m *Manager) EnsureUser(ctx context.Context) (model.User, error) {
	if m.user != nil {
		return *m.user, nil
	}
	u, err := m.GetOrCreateUser(ctx, m.cfg.DefaultUser)
	if err != nil {
		return model.User{}, err
	}
	m.user = &u
	return u, nil
}

// CurrentUser returns the session user. New guarantees it is set.
func (m *Manager) CurrentUser() model.User {
	if m.user == nil {
		return model.User{}
	}
	return *m.user
}

// SetCurrentUser overrides the session user.
func (m *Manager) SetCurrentUser(u model.User) {
	m.user = &u
}

// CurrentProject returns the active project, or nil when none is active.
func (m *Manager) CurrentProject() *model.Project {
	if m.project == nil {
		return nil
	}
	p := *m.project
	return &p
}

// SetCurrentProject sets the active project; nil clears it.
func (m *Manager) SetCurrentProject(p *model.Project) {
	if p == nil {
		m.project = nil
		return
	}
	cp := *p
	m.project = &cp
}

// GetOrCreateUser returns the user with the given name, creating it if
// missing.
func (m *Manager) GetOrCreateUser(ctx context.Context, name string) (model.User, error) {
	if name == "" {
		name = config.DefaultUserName
	}
	existing, err := m.store.GetUserByName(ctx, name)
	if err != nil {
		return model.User{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	u := model.NewUser(name)
	if err := m.store.StoreUser(ctx, u); err != nil {
		return model.User{}, err
	}
	m.log.Info("created user", "user_id", u.ID, "name", name)
	return u, nil
}

// GetOrCreateProject returns the project for path, creating it if missing.
// Projects are keyed by a hash of the cleaned absolute path, so the working
// directory only matters for relative paths.
func (m *Manager) GetOrCreateProject(ctx context.Context, path string) (model.Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return model.Project{}, fmt.Errorf("resolve project path %q: %w", path, err)
	}
	abs = filepath.Clean(abs)
	hash := m.guard.HashForID(abs)

	existing, err := m.store.GetProjectByPathHash(ctx, hash)
	if err != nil {
		return model.Project{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	p := model.NewProject(abs, hash)
	if err := m.store.StoreProject(ctx, p); err != nil {
		return model.Project{}, err
	}
	m.log.Info("created project", "project_id", p.ID, "name", p.Name)
	return p, nil
}

// UseProject resolves path to a project and makes it the active one.
func (m *Manager) UseProject(ctx context.Context, path string) (model.Project, error) {
	p, err := m.GetOrCreateProject(ctx, path)
	if err != nil {
		return model.Project{}, err
	}
	m.SetCurrentProject(&p)
	return p, nil
}

// AddUserTag tags the session user, persists the new value and makes it the
// session user.
func (m *Manager) AddUserTag(ctx context.Context, tag string) (model.User, error) {
	u, err := m.EnsureUser(ctx)
	if err != nil {
		return model.User{}, err
	}
	updated := u.WithTag(tag)
	if err := m.store.StoreUser(ctx, updated); err != nil {
		return model.User{}, err
	}
	m.user = &updated
	return updated, nil
}

// ValidatePath checks path against the guard's sandbox rules.
func (m *Manager) ValidatePath(path, workingDir string) safety.PathResult {
	return m.guard.ValidatePath(path, workingDir)
}
