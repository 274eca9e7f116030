package database

import (
	"context"
	"fmt"

	"github.com/nao1215/torspider/internal/dedup"
)

var _ dedup.Cache = (*CrawlDB)(nil)

// Set returns the named dedup set stored in the set_members table.
func (cdb *CrawlDB) Set(name string) dedup.Set {
	return &sqliteSet{cdb: cdb, name: name}
}

type sqliteSet struct {
	cdb  *CrawlDB
	name string
}

// AddIfAbsent relies on the primary key: INSERT OR IGNORE affects no row
// when the member already exists.
func (s *sqliteSet) AddIfAbsent(ctx context.Context, member string) (bool, error) {
	res, err := s.cdb.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO set_members (set_name, member) VALUES (?, ?)", s.name, member)
	if err != nil {
		return false, dedup.Unavailable("sqlite add "+s.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dedup.Unavailable("sqlite add "+s.name, err)
	}
	return n == 1, nil
}

func (s *sqliteSet) Contains(ctx context.Context, member string) (bool, error) {
	var n int
	err := s.cdb.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM set_members WHERE set_name = ? AND member = ?", s.name, member).Scan(&n)
	if err != nil {
		return false, dedup.Unavailable("sqlite contains "+s.name, err)
	}
	return n > 0, nil
}

func (s *sqliteSet) Remove(ctx context.Context, member string) error {
	if _, err := s.cdb.db.ExecContext(ctx,
		"DELETE FROM set_members WHERE set_name = ? AND member = ?", s.name, member); err != nil {
		return dedup.Unavailable("sqlite remove "+s.name, err)
	}
	return nil
}

func (s *sqliteSet) Pop(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	members, err := s.pop(ctx, n)
	if err != nil {
		return nil, dedup.Unavailable("sqlite pop "+s.name, err)
	}
	return members, nil
}

func (s *sqliteSet) pop(ctx context.Context, n int) ([]string, error) {
	tx, err := s.cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	rows, err := tx.QueryContext(ctx,
		"SELECT member FROM set_members WHERE set_name = ? LIMIT ?", s.name, n)
	if err != nil {
		return nil, err
	}
	var members []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			rows.Close()
			return nil, err
		}
		members = append(members, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, m := range members {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM set_members WHERE set_name = ? AND member = ?", s.name, m); err != nil {
			return nil, fmt.Errorf("delete %q: %w", m, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *sqliteSet) Len(ctx context.Context) (int64, error) {
	var n int64
	if err := s.cdb.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM set_members WHERE set_name = ?", s.name).Scan(&n); err != nil {
		return 0, dedup.Unavailable("sqlite len "+s.name, err)
	}
	return n, nil
}
