package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/recall/internal/model"
)

// buildConditions translates the filter fields of q into a WHERE clause
// (with leading space, or empty) and its bound arguments.
func buildConditions(q model.MemoryQuery, now time.Time) (string, []any, error) {
	var where []string
	var args []interface{}

	if q.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, q.UserID)
	}
	if q.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, q.ProjectID)
	}

	if len(q.MemoryTypes) > 0 {
		vals := make([]interface{}, len(q.MemoryTypes))
		for i, t := range q.MemoryTypes {
			if !t.Valid() {
				return "", nil, fmt.Errorf("%w: unknown memory type %q", ErrInvalidQuery, t)
			}
			vals[i] = string(t)
		}
		where = append(where, "memory_type IN ("+placeholders(len(vals))+")")
		args = append(args, vals...)
	}
	if len(q.Scopes) > 0 {
		vals := make([]interface{}, len(q.Scopes))
		for i, sc := range q.Scopes {
			if !sc.Valid() {
				return "", nil, fmt.Errorf("%w: unknown scope %q", ErrInvalidQuery, sc)
			}
			vals[i] = string(sc)
		}
		where = append(where, "scope IN ("+placeholders(len(vals))+")")
		args = append(args, vals...)
	}
	if len(q.RetentionPolicies) > 0 {
		vals := make([]interface{}, len(q.RetentionPolicies))
		for i, p := range q.RetentionPolicies {
			if !p.Valid() {
				return "", nil, fmt.Errorf("%w: unknown retention policy %q", ErrInvalidQuery, p)
			}
			vals[i] = string(p)
		}
		where = append(where, "retention_policy IN ("+placeholders(len(vals))+")")
		args = append(args, vals...)
	}

	// Tag filtering matches any of the given tags.
	if len(q.Tags) > 0 {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(memories.tags_json) WHERE json_each.value IN ("+placeholders(len(q.Tags))+"))")
		for _, tag := range q.Tags {
			args = append(args, tag)
		}
	}

	if q.Source != "" {
		where = append(where, "source = ?")
		args = append(args, q.Source)
	}
	if q.CreatedAfter != nil {
		where = append(where, "created_at > ?")
		args = append(args, formatTime(*q.CreatedAfter))
	}
	if q.CreatedBefore != nil {
		where = append(where, "created_at < ?")
		args = append(args, formatTime(*q.CreatedBefore))
	}

	if !q.IncludeExpired {
		where = append(where, "(expires_at IS NULL OR expires_at > ?)")
		args = append(args, formatTime(now))
	}

	if len(where) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(where, " AND "), args, nil
}

// orderAndPage returns the ORDER BY / LIMIT / OFFSET tail for q.
func orderAndPage(q model.MemoryQuery) (string, []any, error) {
	if !q.OrderBy.Valid() {
		return "", nil, fmt.Errorf("%w: cannot order by %q", ErrInvalidQuery, q.OrderBy)
	}
	if q.Limit < 0 || q.Offset < 0 {
		return "", nil, fmt.Errorf("%w: limit and offset must be non-negative", ErrInvalidQuery)
	}

	col := q.OrderBy
	if col == "" {
		col = model.OrderCreatedAt
	}
	dir := "DESC"
	if q.OrderAsc {
		dir = "ASC"
	}
	tail := fmt.Sprintf(" ORDER BY %s %s, id %s", col, dir, dir)

	var args []interface{}
	switch {
	case q.Limit > 0:
		tail += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	case q.Offset > 0:
		tail += " LIMIT -1 OFFSET ?"
		args = append(args, q.Offset)
	}
	return tail, args, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
