package manager

import (
	"context"
	"fmt"

	"github.com/rcliao/recall/internal/model"
)

// Default importance per memory type.
const (
	ConversationImportance = 0.1
	PreferenceImportance   = 0.8
	ProjectImportance      = 0.5
	CorrectionImportance   = 0.9
	ToolPatternImportance  = 0.5
	TaskResultImportance   = 0.6
)

// retentionByType labels each memory type with a retention bucket.
var retentionByType = map[model.MemoryType]model.RetentionPolicy{
	model.TypeUserPreference:    model.RetentionLongTerm,
	model.TypeLearnedCorrection: model.RetentionLongTerm,
	model.TypeProjectContext:    model.RetentionMediumTerm,
	model.TypeToolPattern:       model.RetentionMediumTerm,
	model.TypeTaskResult:        model.RetentionShortTerm,
	model.TypeConversation:      model.RetentionShortTerm,
}

// RetentionFor returns the retention label of memory type t.
func RetentionFor(t model.MemoryType) model.RetentionPolicy {
	if p, ok := retentionByType[t]; ok {
		return p
	}
	return model.RetentionShortTerm
}

// WriteOption adjusts a single store call.
type WriteOption func(*writeOptions)

type writeOptions struct {
	importance *float64
	tags       []string
	tagsSet    bool
	metadata   map[string]any
	source     string
}

// WithImportance overrides the default importance.
func WithImportance(v float64) WriteOption {
	return func(o *writeOptions) { o.importance = &v }
}

// WithTags replaces the default tags.
func WithTags(tags ...string) WriteOption {
	return func(o *writeOptions) {
		o.tags = tags
		o.tagsSet = true
	}
}

// WithMetadata attaches metadata to the memory.
func WithMetadata(md map[string]any) WriteOption {
	return func(o *writeOptions) { o.metadata = md }
}

// WithSource records where the memory came from.
func WithSource(source string) WriteOption {
	return func(o *writeOptions) { o.source = source }
}

// StoreConversation records one exchange. It is project-scoped when a
// project is active, user-scoped otherwise.
func (m *Manager) StoreConversation(ctx context.Context, userMessage, assistantResponse string, opts ...WriteOption) (*model.Memory, error) {
	content := fmt.Sprintf("User: %s\nAssistant: %s", userMessage, assistantResponse)
	return m.remember(ctx, content, model.TypeConversation, m.sessionScope(),
		ConversationImportance, []string{"chat"}, opts)
}

// StoreUserPreference records a user-scoped preference that follows the user
// across projects.
func (m *Manager) StoreUserPreference(ctx context.Context, preference string, opts ...WriteOption) (*model.Memory, error) {
	return m.remember(ctx, preference, model.TypeUserPreference, model.ScopeUser,
		PreferenceImportance, []string{"preference", "personalization"}, opts)
}

// StoreProjectContext records facts about the active project.
func (m *Manager) StoreProjectContext(ctx context.Context, text string, opts ...WriteOption) (*model.Memory, error) {
	if m.project == nil {
		return nil, fmt.Errorf("store project context: %w", ErrNoProject)
	}
	return m.remember(ctx, text, model.TypeProjectContext, model.ScopeProject,
		ProjectImportance, []string{"context", "architecture"}, opts)
}

// StoreLearnedCorrection records a response the user corrected.
func (m *Manager) StoreLearnedCorrection(ctx context.Context, original, correction string, opts ...WriteOption) (*model.Memory, error) {
	content := fmt.Sprintf("Original: %s\nCorrection: %s", original, correction)
	return m.remember(ctx, content, model.TypeLearnedCorrection, model.ScopeUser,
		CorrectionImportance, []string{"correction", "learning"}, opts)
}

// StoreToolPattern records how a tool call went. Tool patterns are global:
// they are visible to every user and project.
func (m *Manager) StoreToolPattern(ctx context.Context, toolName, pattern string, success bool, opts ...WriteOption) (*model.Memory, error) {
	content := fmt.Sprintf("Tool: %s\nPattern: %s\nResult: %s", toolName, pattern, outcome(success))
	tags := []string{"tool", "pattern"}
	if toolName != "" {
		tags = append(tags, toolName)
	}
	return m.remember(ctx, content, model.TypeToolPattern, model.ScopeGlobal,
		ToolPatternImportance, tags, opts)
}

// StoreTaskResult records the outcome of a finished task, scoped like a
// conversation.
func (m *Manager) StoreTaskResult(ctx context.Context, task, result string, success bool, opts ...WriteOption) (*model.Memory, error) {
	content := fmt.Sprintf("Task: %s\nResult: %s\nOutcome: %s", task, result, outcome(success))
	return m.remember(ctx, content, model.TypeTaskResult, m.sessionScope(),
		TaskResultImportance, []string{"task", "result"}, opts)
}

func outcome(success bool) string {
	if success {
		return "Success"
	}
	return "Failure"
}

func (m *Manager) sessionScope() model.Scope {
	if m.project != nil {
		return model.ScopeProject
	}
	return model.ScopeUser
}

// remember is the single write path: sanitize, attach owners, compute expiry
// and retention, then persist.
func (m *Manager) remember(ctx context.Context, content string, memType model.MemoryType, scope model.Scope,
	importance float64, tags []string, opts []WriteOption) (*model.Memory, error) {

	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.importance != nil {
		importance = *o.importance
	}
	if o.tagsSet {
		tags = o.tags
	}

	res := m.guard.Sanitize(content, m.cfg.Limits.MaxContentLength)
	if res.RedactedCount > 0 {
		m.log.Warn("redacted sensitive data before storing", "memory_type", memType, "count", res.RedactedCount)
	} else if res.WasModified() {
		m.log.Debug("sanitized memory content", "memory_type", memType, "actions", res.Actions)
	}

	now := m.now()
	expires := now.Add(m.cfg.Retention.TTL(memType))

	p := model.MemoryParams{
		Content:         res.Content,
		MemoryType:      memType,
		Scope:           scope,
		RetentionPolicy: RetentionFor(memType),
		Importance:      importance,
		Tags:            tags,
		Source:          o.source,
		Metadata:        o.metadata,
		ExpiresAt:       &expires,
		CreatedAt:       now,
	}
	// Global memories carry no owner.
	if scope != model.ScopeGlobal {
		if m.user != nil {
			p.UserID = m.user.ID
		}
		if m.project != nil {
			p.ProjectID = m.project.ID
		}
	}

	mem, err := model.NewMemory(p)
	if err != nil {
		return nil, fmt.Errorf("build %s memory: %w", memType, err)
	}
	if err := m.store.Store(ctx, mem); err != nil {
		return nil, err
	}
	m.log.Debug("stored memory", "id", mem.ID, "memory_type", memType, "scope", scope)
	return mem, nil
}
