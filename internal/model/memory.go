// Package model defines the core memory data types.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrValidation is wrapped by every construction or decode failure caused by
// invalid field values.
var ErrValidation = errors.New("validation error")

// MemoryType categorizes what a memory records.
type MemoryType string

const (
	TypeConversation      MemoryType = "conversation"
	TypeUserPreference    MemoryType = "user_preference"
	TypeProjectContext    MemoryType = "project_context"
	TypeTaskResult        MemoryType = "task_result"
	TypeLearnedCorrection MemoryType = "learned_correction"
	TypeToolPattern       MemoryType = "tool_pattern"
)

// MemoryTypes lists every memory type in declaration order.
var MemoryTypes = []MemoryType{
	TypeConversation,
	TypeUserPreference,
	TypeProjectContext,
	TypeTaskResult,
	TypeLearnedCorrection,
	TypeToolPattern,
}

// Valid reports whether t is a known memory type.
func (t MemoryType) Valid() bool {
	for _, v := range MemoryTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Scope is the visibility tier of a memory.
type Scope string

const (
	ScopeUser    Scope = "user"
	ScopeProject Scope = "project"
	ScopeGlobal  Scope = "global"
)

// Scopes lists every scope.
var Scopes = []Scope{ScopeUser, ScopeProject, ScopeGlobal}

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	return s == ScopeUser || s == ScopeProject || s == ScopeGlobal
}

// RetentionPolicy is the coarse lifetime bucket of a memory.
type RetentionPolicy string

const (
	RetentionSession    RetentionPolicy = "session"
	RetentionShortTerm  RetentionPolicy = "short_term"
	RetentionMediumTerm RetentionPolicy = "medium_term"
	RetentionLongTerm   RetentionPolicy = "long_term"
	RetentionPermanent  RetentionPolicy = "permanent"
)

// ValidRetentionPolicies are the allowed retention policies.
var ValidRetentionPolicies = map[RetentionPolicy]bool{
	RetentionSession:    true,
	RetentionShortTerm:  true,
	RetentionMediumTerm: true,
	RetentionLongTerm:   true,
	RetentionPermanent:  true,
}

// Valid reports whether p is a known retention policy.
func (p RetentionPolicy) Valid() bool {
	return ValidRetentionPolicies[p]
}

// DefaultImportance is used when a caller does not supply one.
const DefaultImportance = 0.5

// Memory represents a stored memory entry.
type Memory struct {
	ID              string          `json:"id"`
	Content         string          `json:"content"`
	MemoryType      MemoryType      `json:"memory_type"`
	Scope           Scope           `json:"scope"`
	RetentionPolicy RetentionPolicy `json:"retention_policy"`
	UserID          string          `json:"user_id,omitempty"`
	ProjectID       string          `json:"project_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
	Importance      float64         `json:"importance"`
	AccessCount     int             `json:"access_count"`
	LastAccessedAt  *time.Time      `json:"last_accessed_at,omitempty"`
	Tags            []string        `json:"tags"`
	Source          string          `json:"source"`
	Metadata        map[string]any  `json:"metadata"`
}

// MemoryParams holds the inputs for NewMemory.
type MemoryParams struct {
	Content         string
	MemoryType      MemoryType
	Scope           Scope
	RetentionPolicy RetentionPolicy // empty means short_term
	UserID          string
	ProjectID       string
	Importance      float64
	Tags            []string
	Source          string // empty means "unknown"
	Metadata        map[string]any
	ExpiresAt       *time.Time
	CreatedAt       time.Time // zero means now
}

// NewMemory builds and validates a memory with a freshly generated id.
func NewMemory(p MemoryParams) (*Memory, error) {
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	created = Timestamp(created)

	policy := p.RetentionPolicy
	if policy == "" {
		policy = RetentionShortTerm
	}
	source := p.Source
	if source == "" {
		source = "unknown"
	}

	m := &Memory{
		ID:              NewMemoryID(),
		Content:         p.Content,
		MemoryType:      p.MemoryType,
		Scope:           p.Scope,
		RetentionPolicy: policy,
		UserID:          p.UserID,
		ProjectID:       p.ProjectID,
		CreatedAt:       created,
		UpdatedAt:       created,
		Importance:      p.Importance,
		Tags:            append([]string{}, p.Tags...),
		Source:          source,
		Metadata:        copyMetadata(p.Metadata),
	}
	if p.ExpiresAt != nil {
		t := Timestamp(*p.ExpiresAt)
		m.ExpiresAt = &t
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMemoryID returns a new, time-sortable memory id.
func NewMemoryID() string {
	return "mem_" + ulid.Make().String()
}

// Validate checks the field invariants of a memory.
func (m *Memory) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: id is required", ErrValidation)
	}
	if math.IsNaN(m.Importance) || m.Importance < 0.0 || m.Importance > 1.0 {
		return fmt.Errorf("%w: importance must be between 0.0 and 1.0, got %v", ErrValidation, m.Importance)
	}
	if !m.MemoryType.Valid() {
		return fmt.Errorf("%w: unknown memory type %q", ErrValidation, m.MemoryType)
	}
	if !m.RetentionPolicy.Valid() {
		return fmt.Errorf("%w: unknown retention policy %q", ErrValidation, m.RetentionPolicy)
	}
	if m.AccessCount < 0 {
		return fmt.Errorf("%w: access_count must be non-negative, got %d", ErrValidation, m.AccessCount)
	}

	switch m.Scope {
	case ScopeUser:
		if m.UserID == "" {
			return fmt.Errorf("%w: user-scoped memories must have a user_id", ErrValidation)
		}
	case ScopeProject:
		if m.ProjectID == "" {
			return fmt.Errorf("%w: project-scoped memories must have a project_id", ErrValidation)
		}
	case ScopeGlobal:
		if m.UserID != "" || m.ProjectID != "" {
			return fmt.Errorf("%w: global memories cannot have a user_id or project_id", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrValidation, m.Scope)
	}
	return nil
}

// MarkAccessed records a retrieval.
func (m *Memory) MarkAccessed(now time.Time) {
	m.AccessCount++
	t := Timestamp(now)
	m.LastAccessedAt = &t
}

// UpdateContent replaces the content and bumps UpdatedAt.
func (m *Memory) UpdateContent(content string, now time.Time) {
	m.Content = content
	m.UpdatedAt = Timestamp(now)
}

// IsExpired reports whether now is past the memory's expiry.
func (m *Memory) IsExpired(now time.Time) bool {
	return m.ExpiresAt != nil && now.After(*m.ExpiresAt)
}

// UnmarshalJSON decodes a memory and re-validates it.
func (m *Memory) UnmarshalJSON(data []byte) error {
	type alias Memory
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*m = Memory(a)
	m.normalize()
	return m.Validate()
}

func (m *Memory) normalize() {
	if m.Tags == nil {
		m.Tags = []string{}
	}
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	if m.RetentionPolicy == "" {
		m.RetentionPolicy = RetentionShortTerm
	}
	m.CreatedAt = Timestamp(m.CreatedAt)
	m.UpdatedAt = Timestamp(m.UpdatedAt)
	if m.ExpiresAt != nil {
		t := Timestamp(*m.ExpiresAt)
		m.ExpiresAt = &t
	}
	if m.LastAccessedAt != nil {
		t := Timestamp(*m.LastAccessedAt)
		m.LastAccessedAt = &t
	}
}

// Timestamp normalizes t to UTC without a monotonic clock reading.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Round(0)
}

func copyMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
