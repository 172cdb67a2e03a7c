package roster

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Repository for tests and STORE_BACKEND=memory.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]Account
}

// NewMemory creates an empty repository.
func NewMemory() *Memory {
	return &Memory{accounts: make(map[string]Account)}
}

func (m *Memory) Create(_ context.Context, a Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !a.Archived && m.phoneTaken(a.Phone, a.ID) {
		return duplicatePhone("roster.Create")
	}
	m.accounts[a.ID] = clone(a)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, notFound("roster.Get", id)
	}
	return clone(a), nil
}

func (m *Memory) FindByPhone(_ context.Context, phone string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Phone == phone && !a.Archived {
			c := clone(a)
			return &c, nil
		}
	}
	return nil, nil
}

// Update runs fn on a copy and stores it only when fn succeeds.
func (m *Memory) Update(_ context.Context, id string, fn func(*Account) error) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.accounts[id]
	if !ok {
		return Account{}, notFound("roster.Update", id)
	}
	next := clone(cur)
	if err := fn(&next); err != nil {
		return Account{}, err
	}
	if !next.Archived && next.Phone != cur.Phone && m.phoneTaken(next.Phone, id) {
		return Account{}, duplicatePhone("roster.Update")
	}
	next.UpdatedAt = time.Now().UTC()
	m.accounts[id] = next
	return clone(next), nil
}

func (m *Memory) Archive(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok || a.Archived {
		return notFound("roster.Archive", id)
	}
	a.Archived = true
	a.DeletedAt = &at
	a.UpdatedAt = at
	m.accounts[id] = a
	return nil
}

func (m *Memory) QueryByRole(_ context.Context, role Role, includeArchived bool) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Account
	for _, a := range m.accounts {
		if a.Role != role || (a.Archived && !includeArchived) {
			continue
		}
		out = append(out, clone(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) phoneTaken(phone, except string) bool {
	for id, a := range m.accounts {
		if id != except && a.Phone == phone && !a.Archived {
			return true
		}
	}
	return false
}

// clone detaches the pointer fields so callers cannot mutate stored state.
func clone(a Account) Account {
	if a.Schedule != nil {
		s := *a.Schedule
		s.Days = append([]Weekday(nil), a.Schedule.Days...)
		a.Schedule = &s
	}
	if a.DeletedAt != nil {
		t := *a.DeletedAt
		a.DeletedAt = &t
	}
	if a.Profile != nil {
		p := *a.Profile
		if p.LastAttendance != nil {
			t := *p.LastAttendance
			p.LastAttendance = &t
		}
		a.Profile = &p
	}
	return a
}
