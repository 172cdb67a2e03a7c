package session

import (
	"context"
	"sync"
	"time"

	"halaqa/internal/apperr"
	"halaqa/internal/roster"
)

// AccountUpdater is the slice of the roster repository the memory store needs.
type AccountUpdater interface {
	Update(ctx context.Context, id string, fn func(*roster.Account) error) (roster.Account, error)
}

// Memory keeps sessions in insertion order under one mutex. The session lock is
// always taken before the roster's.
type Memory struct {
	mu       sync.Mutex
	sessions []Session
	index    map[string]int
	students AccountUpdater
}

// NewMemory creates an empty store that mutates students through students.
func NewMemory(students AccountUpdater) *Memory {
	return &Memory{index: make(map[string]int), students: students}
}

func (m *Memory) Insert(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.sessions {
		if cur.StudentID == s.StudentID && cur.Status.Open() {
			return errAlreadyCheckedIn
		}
	}
	m.index[s.ID] = len(m.sessions)
	m.sessions = append(m.sessions, s)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.index[id]
	if !ok {
		return Session{}, errSessionNotFound(id)
	}
	return m.sessions[i], nil
}

func (m *Memory) List(_ context.Context, f Filter) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Session
	for _, s := range m.sessions {
		if f.match(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) Transition(ctx context.Context, id string, c Change) (Session, *roster.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.index[id]
	if !ok {
		return Session{}, nil, errSessionNotFound(id)
	}
	cur := m.sessions[i]
	if !c.allowed(cur.Status) {
		return Session{}, nil, errTransition(cur.Status, c.To)
	}
	if c.To == StatusInProgress {
		for _, other := range m.sessions {
			if other.ID != id && other.Status == StatusInProgress {
				return Session{}, nil, errAnotherActive
			}
		}
	}

	var student *roster.Student
	if c.Student != nil {
		a, err := m.students.Update(ctx, cur.StudentID, roster.StudentMutation(cur.StudentID, c.Student))
		if err != nil {
			return Session{}, nil, err
		}
		st, _ := a.AsStudent()
		student = &st
	}

	cur.Status = c.To
	if c.Notes != nil {
		cur.Notes = *c.Notes
	}
	cur.UpdatedAt = time.Now().UTC()
	m.sessions[i] = cur
	return cur, student, nil
}

var (
	errAlreadyCheckedIn = apperr.Conflict("session.CheckIn", "student already has an open session")
	errAnotherActive    = apperr.Conflict("session.Start", "another session is in progress")
)

func errSessionNotFound(id string) error {
	return apperr.NotFound("session.Get", "session "+id+" not found")
}

func errTransition(from, to Status) error {
	return apperr.InvalidState("session.Transition", "cannot move session from "+string(from)+" to "+string(to))
}
