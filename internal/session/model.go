package session

import (
	"context"
	"time"

	"halaqa/internal/roster"
)

// Status of a recitation session.
type Status string

const (
	StatusWaiting    Status = "WAITING"
	StatusReady      Status = "READY"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusAbsent     Status = "ABSENT"
)

// OpenStatuses are the states that occupy a student's single queue slot.
var OpenStatuses = []Status{StatusWaiting, StatusReady, StatusInProgress}

// Open reports whether s still holds a place in the queue.
func (s Status) Open() bool {
	return s == StatusWaiting || s == StatusReady || s == StatusInProgress
}

// Session is one check-in. Sessions are never deleted.
type Session struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"student_id"`
	StudentName   string    `json:"student_name"`
	StudentAvatar string    `json:"student_avatar"`
	ScheduledTime string    `json:"scheduled_time"`
	Status        Status    `json:"status"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	StudentID string
	Statuses  []Status
	Since     time.Time
}

func (f Filter) match(s Session) bool {
	if f.StudentID != "" && s.StudentID != f.StudentID {
		return false
	}
	if !f.Since.IsZero() && s.CreatedAt.Before(f.Since) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, st := range f.Statuses {
		if s.Status == st {
			return true
		}
	}
	return false
}

// Change is one guarded status transition. Student, when set, is applied to
// the session's student in the same atomic unit.
type Change struct {
	From    []Status
	To      Status
	Notes   *string
	Student func(*roster.Student) error
}

func (c Change) allowed(s Status) bool {
	for _, f := range c.From {
		if f == s {
			return true
		}
	}
	return false
}

// Store persists sessions. Implementations enforce one open session per
// student and one IN_PROGRESS session overall.
type Store interface {
	// Insert fails with a Conflict when the student already has an open session.
	Insert(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	// List returns matching sessions in check-in order.
	List(ctx context.Context, f Filter) ([]Session, error)
	// Transition applies c atomically. It fails with InvalidState when the
	// current status is not in c.From and with Conflict when c.To is
	// IN_PROGRESS while another session already is.
	Transition(ctx context.Context, id string, c Change) (Session, *roster.Student, error)
}
