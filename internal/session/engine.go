// Package session runs the recitation queue: check-in, ordering, and the
// WAITING/READY -> IN_PROGRESS -> COMPLETED/ABSENT lifecycle.
package session

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"halaqa/internal/apperr"
	"halaqa/internal/events"
	"halaqa/internal/roster"
)

// ClockFormat is the wall-clock layout of Session.ScheduledTime.
const ClockFormat = "03:04 PM"

const withdrawnNote = "student removed from the halaqa"

// StudentSource resolves live students.
type StudentSource interface {
	Student(ctx context.Context, id string) (roster.Student, error)
}

// Engine owns the queue state machine.
type Engine struct {
	store    Store
	students StudentSource
	events   events.Publisher
	log      *zap.Logger
	loc      *time.Location
	now      func() time.Time
}

// NewEngine wires an engine. loc decides wall-clock times and "today".
func NewEngine(store Store, students StudentSource, pub events.Publisher, loc *time.Location, log *zap.Logger) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:    store,
		students: students,
		events:   pub,
		log:      log,
		loc:      loc,
		now:      time.Now,
	}
}

// CheckIn puts an active student in the queue as READY.
func (e *Engine) CheckIn(ctx context.Context, studentID string) (Session, error) {
	const op = "session.CheckIn"
	st, err := e.students.Student(ctx, studentID)
	if err != nil {
		return Session{}, err
	}
	if st.Status != roster.StatusActive {
		return Session{}, apperr.InvalidState(op, "only approved students can check in")
	}
	open, err := e.store.List(ctx, Filter{StudentID: studentID, Statuses: OpenStatuses})
	if err != nil {
		return Session{}, err
	}
	if len(open) > 0 {
		return Session{}, errAlreadyCheckedIn
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Session{}, apperr.Wrap(op, nil, "generate session id", err)
	}
	now := e.now()
	s := Session{
		ID:            id.String(),
		StudentID:     st.ID,
		StudentName:   st.Name,
		StudentAvatar: st.AvatarURL,
		ScheduledTime: now.In(e.loc).Format(ClockFormat),
		Status:        StatusReady,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}
	if err := e.store.Insert(ctx, s); err != nil {
		return Session{}, err
	}
	e.publish(ctx, events.SessionCheckedIn, s)
	return s, nil
}

// StartNextSession moves the head of the queue to IN_PROGRESS. It returns nil
// when nobody is waiting. Sessions whose student has been archived are closed
// on the way instead of being started.
func (e *Engine) StartNextSession(ctx context.Context) (*Session, error) {
	active, err := e.ActiveSession(ctx)
	if err != nil {
		return nil, err
	}
	if active != nil {
		live, err := e.live(ctx, *active)
		if err != nil {
			return nil, err
		}
		if live {
			return nil, errAnotherActive
		}
		if _, err := e.closeWithoutFine(ctx, active.ID); err != nil {
			return nil, err
		}
	}
	next, orphans, err := e.pick(ctx)
	for _, o := range orphans {
		if _, cerr := e.closeWithoutFine(ctx, o.ID); cerr != nil {
			e.log.Warn("close orphaned session", zap.String("session_id", o.ID), zap.Error(cerr))
		}
	}
	if err != nil || next == nil {
		return nil, err
	}
	s, _, err := e.store.Transition(ctx, next.ID, Change{
		From: []Status{StatusReady, StatusWaiting},
		To:   StatusInProgress,
	})
	if err != nil {
		return nil, err
	}
	e.publish(ctx, events.SessionStarted, s)
	return &s, nil
}

// CompleteSession closes the running session and credits the student's werd.
func (e *Engine) CompleteSession(ctx context.Context, sessionID, notes string) (Session, roster.Student, error) {
	at := e.now().UTC()
	s, st, err := e.store.Transition(ctx, sessionID, Change{
		From:  []Status{StatusInProgress},
		To:    StatusCompleted,
		Notes: &notes,
		Student: func(st *roster.Student) error {
			st.CompleteWerd(at)
			return nil
		},
	})
	if err != nil {
		return Session{}, roster.Student{}, err
	}
	e.publish(ctx, events.SessionCompleted, s)
	return s, *st, nil
}

// SkipSession sends a queued student to the back of the line.
func (e *Engine) SkipSession(ctx context.Context, sessionID string) (Session, error) {
	s, _, err := e.store.Transition(ctx, sessionID, Change{
		From: []Status{StatusWaiting, StatusReady},
		To:   StatusWaiting,
	})
	if err != nil {
		return Session{}, err
	}
	e.publish(ctx, events.SessionSkipped, s)
	return s, nil
}

// MarkAbsent closes a queued session as ABSENT and fines the student in the same unit.
func (e *Engine) MarkAbsent(ctx context.Context, sessionID string) (Session, roster.Student, error) {
	s, st, err := e.store.Transition(ctx, sessionID, Change{
		From: []Status{StatusWaiting, StatusReady},
		To:   StatusAbsent,
		Student: func(st *roster.Student) error {
			st.Penalize()
			return nil
		},
	})
	if err != nil {
		return Session{}, roster.Student{}, err
	}
	e.publish(ctx, events.SessionAbsent, s)
	return s, *st, nil
}

// Session returns one session by id.
func (e *Engine) Session(ctx context.Context, id string) (Session, error) {
	return e.store.Get(ctx, id)
}

// ActiveSession returns the IN_PROGRESS session, or nil.
func (e *Engine) ActiveSession(ctx context.Context) (*Session, error) {
	list, err := e.store.List(ctx, Filter{Statuses: []Status{StatusInProgress}})
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// NextSession returns the earliest READY session, else the earliest WAITING
// one. Students that are no longer on the roster are passed over.
func (e *Engine) NextSession(ctx context.Context) (*Session, error) {
	next, _, err := e.pick(ctx)
	return next, err
}

// Withdraw closes every open session of a student as ABSENT without a fine.
// It runs when the student is removed, so the queue never waits on them.
func (e *Engine) Withdraw(ctx context.Context, studentID string) ([]Session, error) {
	open, err := e.store.List(ctx, Filter{StudentID: studentID, Statuses: OpenStatuses})
	if err != nil {
		return nil, err
	}
	closed := make([]Session, 0, len(open))
	for _, s := range open {
		done, err := e.closeWithoutFine(ctx, s.ID)
		if err != nil {
			return closed, err
		}
		closed = append(closed, done)
	}
	return closed, nil
}

// pick walks the queue in serving order and returns the first session with a
// live student, plus the orphaned sessions it passed.
func (e *Engine) pick(ctx context.Context) (*Session, []Session, error) {
	list, err := e.store.List(ctx, Filter{Statuses: []Status{StatusReady, StatusWaiting}})
	if err != nil {
		return nil, nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Status == StatusReady && list[j].Status != StatusReady
	})
	var orphans []Session
	for i := range list {
		live, err := e.live(ctx, list[i])
		if err != nil {
			return nil, orphans, err
		}
		if !live {
			orphans = append(orphans, list[i])
			continue
		}
		return &list[i], orphans, nil
	}
	return nil, orphans, nil
}

func (e *Engine) live(ctx context.Context, s Session) (bool, error) {
	_, err := e.students.Student(ctx, s.StudentID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperr.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (e *Engine) closeWithoutFine(ctx context.Context, id string) (Session, error) {
	note := withdrawnNote
	s, _, err := e.store.Transition(ctx, id, Change{
		From:  OpenStatuses,
		To:    StatusAbsent,
		Notes: &note,
	})
	if err != nil {
		return Session{}, err
	}
	e.publish(ctx, events.SessionAbsent, s)
	return s, nil
}

// Queue lists open sessions: the running one, then READY, then WAITING, each by check-in time.
func (e *Engine) Queue(ctx context.Context) ([]Session, error) {
	list, err := e.store.List(ctx, Filter{Statuses: OpenStatuses})
	if err != nil {
		return nil, err
	}
	rank := map[Status]int{StatusInProgress: 0, StatusReady: 1, StatusWaiting: 2}
	sort.SliceStable(list, func(i, j int) bool {
		return rank[list[i].Status] < rank[list[j].Status]
	})
	return list, nil
}

// TodaySessions lists every session created since local midnight.
func (e *Engine) TodaySessions(ctx context.Context) ([]Session, error) {
	now := e.now().In(e.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc)
	return e.store.List(ctx, Filter{Since: midnight})
}

// StudentHistory lists a student's completed sessions, newest first.
func (e *Engine) StudentHistory(ctx context.Context, studentID string) ([]Session, error) {
	list, err := e.store.List(ctx, Filter{StudentID: studentID, Statuses: []Status{StatusCompleted}})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

func (e *Engine) publish(ctx context.Context, typ string, s Session) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, events.New(typ, s.ID, s)); err != nil {
		e.log.Warn("publish session event", zap.String("type", typ), zap.String("session_id", s.ID), zap.Error(err))
	}
}
