// Package hadith distributes one hadith per active day to every active student.
package hadith

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"halaqa/internal/apperr"
	"halaqa/internal/events"
	"halaqa/internal/roster"
	"halaqa/internal/store"
)

const (
	lockKey = "hadith:assign"
	lockTTL = time.Minute
)

// Why a run did nothing.
const (
	SkipDisabled = "disabled"
	SkipInactive = "inactive_day"
	SkipDone     = "already_assigned"
	SkipLocked   = "locked"
	SkipRaced    = "superseded"
)

// Roster is what the scheduler needs from the roster.
type Roster interface {
	ActiveStudents(ctx context.Context) ([]roster.Student, error)
	AllStudents(ctx context.Context) ([]roster.Student, error)
}

// Result describes one AssignDailyForAllStudents run.
type Result struct {
	Date     string `json:"date"`
	HadithID int    `json:"hadith_id,omitempty"`
	Assigned int    `json:"assigned"`
	// Terminal is set when a sequential distribution has used the whole collection.
	Terminal bool   `json:"terminal,omitempty"`
	Skipped  string `json:"skipped,omitempty"`
}

// Scheduler owns the daily assignment workflow.
type Scheduler struct {
	store    Store
	students Roster
	lock     store.Locker
	events   events.Publisher
	loc      *time.Location
	log      *zap.Logger
	now      func() time.Time
}

// NewScheduler wires a scheduler. loc defines the local calendar day.
func NewScheduler(st Store, students Roster, lock store.Locker, pub events.Publisher, loc *time.Location, log *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	if lock == nil {
		lock = store.NewLocalLocker()
	}
	return &Scheduler{store: st, students: students, lock: lock, events: pub, loc: loc, log: log, now: time.Now}
}

// Today returns the local calendar date.
func (s *Scheduler) Today() string {
	return s.now().In(s.loc).Format(DateLayout)
}

// AssignDailyForAllStudents hands today's hadith to every active student that
// does not have one yet. Repeated runs on the same day are no-ops.
func (s *Scheduler) AssignDailyForAllStudents(ctx context.Context) (Result, error) {
	release, ok, err := s.lock.Acquire(ctx, lockKey, lockTTL)
	if err != nil {
		return Result{}, apperr.Wrap("hadith.Assign", nil, "acquire assignment lock", err)
	}
	if !ok {
		return Result{Skipped: SkipLocked}, nil
	}
	defer release()

	settings, err := s.store.Settings(ctx)
	if err != nil {
		return Result{}, err
	}
	local := s.now().In(s.loc)
	res := Result{Date: local.Format(DateLayout)}
	switch {
	case !settings.IsEnabled:
		res.Skipped = SkipDisabled
		return res, nil
	case !settings.ActiveOn(roster.WeekdayOf(local)):
		res.Skipped = SkipInactive
		return res, nil
	case settings.LastAssignmentDate == res.Date:
		res.Skipped = SkipDone
		return res, nil
	}

	next, ok := settings.Next()
	if !ok {
		res.Terminal = true
		return res, nil
	}
	res.HadithID = next

	students, err := s.students.ActiveStudents(ctx)
	if err != nil {
		return Result{}, err
	}
	at := s.now().UTC()
	for _, st := range students {
		created, err := s.store.InsertAssignment(ctx, Assignment{
			ID:         AssignmentID(st.ID, res.Date),
			StudentID:  st.ID,
			HadithID:   next,
			Date:       res.Date,
			Status:     StatusAssigned,
			AssignedAt: at,
		})
		if err != nil {
			return Result{}, err
		}
		if created {
			res.Assigned++
		}
	}

	committed, err := s.store.CommitRun(ctx, settings.LastAssignmentDate, next, res.Date)
	if err != nil {
		return Result{}, err
	}
	if !committed {
		s.log.Warn("hadith run superseded", zap.String("date", res.Date), zap.Int("hadith_id", next))
		res.Skipped = SkipRaced
		return res, nil
	}
	s.log.Info("hadith assigned", zap.String("date", res.Date), zap.Int("hadith_id", next), zap.Int("students", res.Assigned))
	s.publish(ctx, events.HadithAssigned, res.Date, res)
	return res, nil
}

// Entry is an assignment together with its hadith text.
type Entry struct {
	Assignment
	Hadith Hadith `json:"hadith"`
}

func entryOf(a Assignment) Entry {
	h, _ := Lookup(a.HadithID)
	return Entry{Assignment: a, Hadith: h}
}

// GetTodayHadith returns the student's assignment for today, running the
// assignment once when it is missing. It returns nil when nothing is assigned.
func (s *Scheduler) GetTodayHadith(ctx context.Context, studentID string) (*Entry, error) {
	id := AssignmentID(studentID, s.Today())
	a, err := s.store.Assignment(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		if _, err := s.AssignDailyForAllStudents(ctx); err != nil {
			return nil, err
		}
		a, err = s.store.Assignment(ctx, id)
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e := entryOf(a)
	return &e, nil
}

// Assignment returns one assignment by id.
func (s *Scheduler) Assignment(ctx context.Context, id string) (Assignment, error) {
	return s.store.Assignment(ctx, id)
}

// MarkSeen moves ASSIGNED to SEEN; other states are left alone.
func (s *Scheduler) MarkSeen(ctx context.Context, id string) (Assignment, error) {
	return s.advance(ctx, id, []Status{StatusAssigned}, StatusSeen)
}

// MarkDone moves ASSIGNED or SEEN to MARKED_DONE; done stays done.
func (s *Scheduler) MarkDone(ctx context.Context, id string) (Assignment, error) {
	return s.advance(ctx, id, []Status{StatusAssigned, StatusSeen}, StatusMarkedDone)
}

func (s *Scheduler) advance(ctx context.Context, id string, from []Status, to Status) (Assignment, error) {
	a, changed, err := s.store.Advance(ctx, id, from, to, s.now().UTC())
	if err != nil {
		return Assignment{}, err
	}
	if changed {
		s.publish(ctx, events.HadithUpdated, a.ID, a)
	}
	return a, nil
}

// StudentStatus is one row of the daily stats.
type StudentStatus struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	HadithID  int    `json:"hadith_id"`
	Status    Status `json:"status"`
}

// Stats summarises one day. Seen counts everyone who opened the hadith,
// including those who finished it.
type Stats struct {
	Date     string          `json:"date"`
	Total    int             `json:"total"`
	Seen     int             `json:"seen"`
	Done     int             `json:"done"`
	Students []StudentStatus `json:"students"`
}

// Stats reports the assignments of date, or of today when date is empty.
func (s *Scheduler) Stats(ctx context.Context, date string) (Stats, error) {
	if date == "" {
		date = s.Today()
	} else if _, err := time.Parse(DateLayout, date); err != nil {
		return Stats{}, apperr.InvalidInput("hadith.Stats", "date must be YYYY-MM-DD")
	}
	list, err := s.store.ListByDate(ctx, date)
	if err != nil {
		return Stats{}, err
	}
	students, err := s.students.AllStudents(ctx)
	if err != nil {
		return Stats{}, err
	}
	names := make(map[string]string, len(students))
	for _, st := range students {
		names[st.ID] = st.Name
	}
	out := Stats{Date: date, Total: len(list), Students: make([]StudentStatus, 0, len(list))}
	for _, a := range list {
		switch a.Status {
		case StatusSeen:
			out.Seen++
		case StatusMarkedDone:
			out.Seen++
			out.Done++
		}
		out.Students = append(out.Students, StudentStatus{
			StudentID: a.StudentID,
			Name:      names[a.StudentID],
			HadithID:  a.HadithID,
			Status:    a.Status,
		})
	}
	return out, nil
}

// Settings returns the current distribution settings.
func (s *Scheduler) Settings(ctx context.Context) (Settings, error) {
	return s.store.Settings(ctx)
}

// SettingsUpdate is the sheikh-editable part of Settings.
type SettingsUpdate struct {
	IsEnabled        bool             `json:"is_enabled"`
	ActiveDays       []roster.Weekday `json:"active_days"`
	StartingHadithID int              `json:"starting_hadith_id" validate:"min=1,max=42"`
	DistributionMode Mode             `json:"distribution_mode" validate:"required,oneof=sequential loop"`
}

// UpdateSettings saves the settings. A new starting hadith restarts the
// rotation from it. Saving enabled settings triggers an assignment run, whose
// result is returned.
func (s *Scheduler) UpdateSettings(ctx context.Context, in SettingsUpdate) (Settings, *Result, error) {
	saved, err := s.store.UpdateSettings(ctx, func(cur *Settings) error {
		next := *cur
		next.IsEnabled = in.IsEnabled
		next.ActiveDays = in.ActiveDays
		next.DistributionMode = in.DistributionMode
		if in.StartingHadithID != cur.StartingHadithID {
			next.StartingHadithID = in.StartingHadithID
			next.LastAssignedHadithID = 0
		}
		if err := next.Validate(); err != nil {
			return err
		}
		*cur = next
		return nil
	})
	if err != nil {
		return Settings{}, nil, err
	}
	if !saved.IsEnabled {
		return saved, nil, nil
	}
	res, err := s.AssignDailyForAllStudents(ctx)
	if err != nil {
		return saved, nil, err
	}
	return saved, &res, nil
}

// StudentHistory lists a student's assignments, newest first.
func (s *Scheduler) StudentHistory(ctx context.Context, studentID string) ([]Entry, error) {
	list, err := s.store.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(list))
	for _, a := range list {
		out = append(out, entryOf(a))
	}
	return out, nil
}

func (s *Scheduler) publish(ctx context.Context, typ, subject string, data any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, events.New(typ, subject, data)); err != nil {
		s.log.Warn("publish hadith event", zap.String("type", typ), zap.Error(err))
	}
}
