package hadith

import (
	"context"
	"fmt"
	"time"

	"halaqa/internal/apperr"
	"halaqa/internal/roster"
)

// SettingsID is the key of the singleton settings row.
const SettingsID = "default"

// DateLayout is the local calendar date format used for assignments.
const DateLayout = "2006-01-02"

// Mode decides what happens after the last hadith of the collection.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeLoop       Mode = "loop"
)

// Settings is the sheikh's distribution configuration.
type Settings struct {
	IsEnabled            bool             `json:"is_enabled"`
	ActiveDays           []roster.Weekday `json:"active_days"`
	StartingHadithID     int              `json:"starting_hadith_id"`
	DistributionMode     Mode             `json:"distribution_mode"`
	LastAssignedHadithID int              `json:"last_assigned_hadith_id"`
	LastAssignmentDate   string           `json:"last_assignment_date"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// DefaultSettings is used until the sheikh saves settings for the first time.
func DefaultSettings() Settings {
	return Settings{
		ActiveDays:       append([]roster.Weekday(nil), roster.Week...),
		StartingHadithID: 1,
		DistributionMode: ModeLoop,
	}
}

// Validate checks ids, mode and day codes.
func (s Settings) Validate() error {
	const op = "hadith.Settings"
	if s.StartingHadithID < 1 || s.StartingHadithID > CatalogSize {
		return apperr.InvalidInput(op, fmt.Sprintf("starting hadith must be between 1 and %d", CatalogSize))
	}
	if s.LastAssignedHadithID < 0 || s.LastAssignedHadithID > CatalogSize {
		return apperr.InvalidInput(op, "last assigned hadith is out of range")
	}
	if s.DistributionMode != ModeSequential && s.DistributionMode != ModeLoop {
		return apperr.InvalidInput(op, "distribution mode must be sequential or loop")
	}
	for _, d := range s.ActiveDays {
		if !d.Valid() {
			return apperr.InvalidInput(op, fmt.Sprintf("unknown weekday %q", d))
		}
	}
	return nil
}

// ActiveOn reports whether assignments run on day.
func (s Settings) ActiveOn(day roster.Weekday) bool {
	for _, d := range s.ActiveDays {
		if d == day {
			return true
		}
	}
	return false
}

// Next returns the hadith id that follows the last assigned one. ok is false
// when a sequential distribution has run past the end of the collection.
func (s Settings) Next() (id int, ok bool) {
	if s.LastAssignedHadithID == 0 {
		return s.StartingHadithID, true
	}
	id = s.LastAssignedHadithID + 1
	if id <= CatalogSize {
		return id, true
	}
	if s.DistributionMode == ModeLoop {
		return 1, true
	}
	return 0, false
}

// Status of a student's daily assignment. It only moves forward.
type Status string

const (
	StatusAssigned   Status = "ASSIGNED"
	StatusSeen       Status = "SEEN"
	StatusMarkedDone Status = "MARKED_DONE"
)

// Assignment is one student's hadith for one local day.
type Assignment struct {
	ID         string     `json:"id"`
	StudentID  string     `json:"student_id"`
	HadithID   int        `json:"hadith_id"`
	Date       string     `json:"date"`
	Status     Status     `json:"status"`
	AssignedAt time.Time  `json:"assigned_at"`
	SeenAt     *time.Time `json:"seen_at,omitempty"`
	DoneAt     *time.Time `json:"done_at,omitempty"`
}

// AssignmentID is the deterministic key that makes assignment idempotent per day.
func AssignmentID(studentID, date string) string {
	return studentID + "-" + date
}

// Store persists settings and assignments.
type Store interface {
	// Settings returns the saved settings or DefaultSettings.
	Settings(ctx context.Context) (Settings, error)
	// UpdateSettings applies fn under a lock; fn errors abort without writing.
	UpdateSettings(ctx context.Context, fn func(*Settings) error) (Settings, error)
	// CommitRun records a finished run only if no other run committed since
	// prevDate was read. It reports whether the write happened.
	CommitRun(ctx context.Context, prevDate string, lastHadithID int, date string) (bool, error)

	Assignment(ctx context.Context, id string) (Assignment, error)
	// InsertAssignment reports false when the id already exists.
	InsertAssignment(ctx context.Context, a Assignment) (bool, error)
	// Advance moves an assignment to `to` when its status is in from, stamping at.
	// It reports false, with the current row, when the status did not match.
	Advance(ctx context.Context, id string, from []Status, to Status, at time.Time) (Assignment, bool, error)
	ListByDate(ctx context.Context, date string) ([]Assignment, error)
	// ListByStudent returns a student's assignments, newest first.
	ListByStudent(ctx context.Context, studentID string) ([]Assignment, error)
}

func stamp(a *Assignment, to Status, at time.Time) {
	a.Status = to
	switch to {
	case StatusSeen:
		a.SeenAt = &at
	case StatusMarkedDone:
		a.DoneAt = &at
	}
}

func errAssignmentNotFound(id string) error {
	return apperr.NotFound("hadith.Assignment", "assignment "+id+" not found")
}
