// Package hhstore keeps the household array in SQLite for populations that
// do not fit in memory.
package hhstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/ctramp/core/household"
	"github.com/kilianp07/ctramp/core/model"
)

// SQLiteBackend implements household.Backend with one JSON row per
// household keyed by array position.
type SQLiteBackend struct {
	db *sql.DB

	mu sync.Mutex
	n  int
}

var _ household.Backend = (*SQLiteBackend)(nil)

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	schema := `CREATE TABLE IF NOT EXISTS households (
        idx INTEGER PRIMARY KEY,
        hh_id INTEGER NOT NULL UNIQUE,
        home_zone INTEGER NOT NULL,
        data TEXT NOT NULL
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM households`).Scan(&n); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteBackend{db: db, n: n}, nil
}

func (s *SQLiteBackend) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func (s *SQLiteBackend) Load(ctx context.Context, first, last int) ([]*model.Household, error) {
	if n := s.Len(); first < 0 || last < first || last >= n {
		return nil, fmt.Errorf("%w: %d..%d of %d", household.ErrOutOfRange, first, last, n)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT idx, data FROM households
        WHERE idx >= ? AND idx <= ? ORDER BY idx`, first, last)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]*model.Household, 0, last-first+1)
	for rows.Next() {
		var (
			idx  int
			data string
		)
		if err := rows.Scan(&idx, &data); err != nil {
			return nil, err
		}
		h := &model.Household{}
		if err := json.Unmarshal([]byte(data), h); err != nil {
			return nil, fmt.Errorf("household at %d: %w", idx, err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) != last-first+1 {
		return nil, fmt.Errorf("households %d..%d: found %d rows", first, last, len(out))
	}
	return out, nil
}

// Save replaces the rows at positions start.. in one transaction. The rows
// are cleared first so households may swap positions within the range.
func (s *SQLiteBackend) Save(ctx context.Context, start int, hhs []*model.Household) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if start < 0 || start > s.n {
		return fmt.Errorf("%w: save at %d of %d", household.ErrOutOfRange, start, s.n)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM households WHERE idx >= ? AND idx <= ?`,
		start, start+len(hhs)-1); err != nil {
		_ = tx.Rollback()
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO households (idx, hh_id, home_zone, data)
        VALUES (?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()
	for i, h := range hhs {
		b, err := json.Marshal(h)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("household %d: %w", h.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, start+i, h.ID, h.HomeZone, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("household %d: %w", h.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.n = max(s.n, start+len(hhs))
	return nil
}

// Append adds hhs after the last stored household.
func (s *SQLiteBackend) Append(ctx context.Context, hhs []*model.Household) error {
	return s.Save(ctx, s.Len(), hhs)
}

// Close closes the database.
func (s *SQLiteBackend) Close() error { return s.db.Close() }
