package store

import (
	"context"
	"fmt"
	"os"

	"github.com/rcliao/recall/internal/model"
)

func (s *SQLiteStore) Count(ctx context.Context, q *model.MemoryQuery) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	query := `SELECT COUNT(*) FROM memories`
	var args []interface{}
	if q != nil {
		where, whereArgs, err := buildConditions(*q, s.now())
		if err != nil {
			return 0, err
		}
		query += where
		args = whereArgs
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) DeleteByQuery(ctx context.Context, q model.MemoryQuery) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	where, args, err := buildConditions(q, s.now())
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete memories: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memories WHERE expires_at IS NOT NULL AND expires_at < ?`, formatTime(s.now()))
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	st := &Stats{
		DBPath:      s.path,
		ByType:      map[model.MemoryType]int{},
		ByScope:     map[model.Scope]int{},
		ByRetention: map[model.RetentionPolicy]int{},
	}

	// DB file size
	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	counts := []struct {
		query string
		args  []interface{}
		dest  *int
	}{
		{`SELECT COUNT(*) FROM memories`, nil, &st.Total},
		{`SELECT COUNT(*) FROM memories WHERE expires_at IS NOT NULL AND expires_at < ?`, []interface{}{formatTime(s.now())}, &st.Expired},
		{`SELECT COUNT(*) FROM users`, nil, &st.Users},
		{`SELECT COUNT(*) FROM projects`, nil, &st.Projects},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
	}

	if err := s.groupCount(ctx, "memory_type", func(k string, n int) { st.ByType[model.MemoryType(k)] = n }); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, "scope", func(k string, n int) { st.ByScope[model.Scope(k)] = n }); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, "retention_policy", func(k string, n int) { st.ByRetention[model.RetentionPolicy(k)] = n }); err != nil {
		return nil, err
	}

	if st.Total > 0 {
		var oldest, newest string
		if err := s.db.QueryRowContext(ctx, `SELECT MIN(created_at), MAX(created_at) FROM memories`).Scan(&oldest, &newest); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
		o, err := parseTime(oldest)
		if err != nil {
			return nil, err
		}
		n, err := parseTime(newest)
		if err != nil {
			return nil, err
		}
		st.Oldest, st.Newest = &o, &n
	}

	return st, nil
}

// groupCount runs a COUNT(*) grouped by column, which must be a trusted
// column name.
func (s *SQLiteStore) groupCount(ctx context.Context, column string, add func(string, int)) error {
	rows, err := s.db.QueryContext(ctx, `SELECT `+column+`, COUNT(*) FROM memories GROUP BY `+column)
	if err != nil {
		return fmt.Errorf("stats by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return err
		}
		add(k, n)
	}
	return rows.Err()
}
