package hadith

import (
	"context"
	"sort"
	"sync"
	"time"

	"halaqa/internal/roster"
)

// Memory is an in-process Store.
type Memory struct {
	mu          sync.Mutex
	settings    *Settings
	assignments map[string]Assignment
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{assignments: make(map[string]Assignment)}
}

func (m *Memory) Settings(_ context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current(), nil
}

func (m *Memory) current() Settings {
	if m.settings == nil {
		return DefaultSettings()
	}
	s := *m.settings
	s.ActiveDays = append([]roster.Weekday(nil), s.ActiveDays...)
	return s
}

func (m *Memory) UpdateSettings(_ context.Context, fn func(*Settings) error) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.current()
	if err := fn(&s); err != nil {
		return Settings{}, err
	}
	s.UpdatedAt = time.Now().UTC()
	m.settings = &s
	return m.current(), nil
}

func (m *Memory) CommitRun(_ context.Context, prevDate string, lastHadithID int, date string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.current()
	if s.LastAssignmentDate != prevDate {
		return false, nil
	}
	s.LastAssignedHadithID = lastHadithID
	s.LastAssignmentDate = date
	s.UpdatedAt = time.Now().UTC()
	m.settings = &s
	return true, nil
}

func (m *Memory) Assignment(_ context.Context, id string) (Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return Assignment{}, errAssignmentNotFound(id)
	}
	return a, nil
}

func (m *Memory) InsertAssignment(_ context.Context, a Assignment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assignments[a.ID]; ok {
		return false, nil
	}
	m.assignments[a.ID] = a
	return true, nil
}

func (m *Memory) Advance(_ context.Context, id string, from []Status, to Status, at time.Time) (Assignment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return Assignment{}, false, errAssignmentNotFound(id)
	}
	for _, f := range from {
		if a.Status == f {
			stamp(&a, to, at)
			m.assignments[id] = a
			return a, true, nil
		}
	}
	return a, false, nil
}

func (m *Memory) ListByDate(_ context.Context, date string) ([]Assignment, error) {
	return m.list(func(a Assignment) bool { return a.Date == date }, false), nil
}

func (m *Memory) ListByStudent(_ context.Context, studentID string) ([]Assignment, error) {
	return m.list(func(a Assignment) bool { return a.StudentID == studentID }, true), nil
}

func (m *Memory) list(keep func(Assignment) bool, newestFirst bool) []Assignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Assignment
	for _, a := range m.assignments {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return (out[i].Date > out[j].Date) == newestFirst
		}
		return out[i].ID < out[j].ID
	})
	return out
}
