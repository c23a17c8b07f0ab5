package model

import "time"

// OrderField is a column memories can be ordered by.
type OrderField string

const (
	OrderCreatedAt   OrderField = "created_at"
	OrderUpdatedAt   OrderField = "updated_at"
	OrderImportance  OrderField = "importance"
	OrderAccessCount OrderField = "access_count"
)

// Valid reports whether f is an orderable column. The empty value is valid
// and means created_at.
func (f OrderField) Valid() bool {
	switch f {
	case "", OrderCreatedAt, OrderUpdatedAt, OrderImportance, OrderAccessCount:
		return true
	}
	return false
}

// MemoryQuery describes a filter over stored memories. Zero-valued fields do
// not filter; a zero MemoryQuery matches every unexpired memory.
type MemoryQuery struct {
	UserID    string
	ProjectID string

	MemoryTypes       []MemoryType
	Scopes            []Scope
	RetentionPolicies []RetentionPolicy

	Tags   []string // match any
	Source string

	CreatedAfter  *time.Time
	CreatedBefore *time.Time

	IncludeExpired bool

	Limit  int // 0 means no limit
	Offset int

	OrderBy  OrderField // empty means created_at
	OrderAsc bool       // default is descending
}
