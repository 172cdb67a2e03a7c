package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
)

const defaultLimit = 100

// Postgres writes entries to audit_logs.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a repo.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Insert writes e once; redelivered jobs are ignored.
func (r *Postgres) Insert(ctx context.Context, e Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, action, details, performed_by, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.Action, e.Details, e.PerformedBy, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns the newest entries first.
func (r *Postgres) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, action, details, performed_by, occurred_at
		FROM audit_logs ORDER BY occurred_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Action, &e.Details, &e.PerformedBy, &e.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Memory keeps entries in process.
type Memory struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) Insert(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.ID]; !ok {
		m.entries[e.ID] = e
	}
	return nil
}

func (m *Memory) List(_ context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	m.mu.Lock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Counted calls inc after every entry st persists.
func Counted(st Store, inc func()) Store {
	return counted{Store: st, inc: inc}
}

type counted struct {
	Store
	inc func()
}

func (c counted) Insert(ctx context.Context, e Entry) error {
	if err := c.Store.Insert(ctx, e); err != nil {
		return err
	}
	c.inc()
	return nil
}
