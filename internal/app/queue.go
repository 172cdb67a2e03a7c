package app

import (
	"context"

	"halaqa/internal/audit"
	"halaqa/internal/roster"
	"halaqa/internal/session"
)

// Outcome is a closed session with the student it changed.
type Outcome struct {
	Session session.Session `json:"session"`
	Student roster.Student  `json:"student"`
}

// CompleteRequest carries the sheikh's notes for a finished recitation.
type CompleteRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// CheckIn queues the calling student.
func (f *Facade) CheckIn(ctx context.Context, studentID string) (session.Session, error) {
	s, err := f.queue.CheckIn(ctx, studentID)
	if err != nil {
		return session.Session{}, err
	}
	f.metrics.CheckIns.Inc()
	f.refreshQueueLength(ctx)
	f.record(ctx, audit.ActionCheckIn, studentID, s.StudentName+" checked in at "+s.ScheduledTime)
	return s, nil
}

// StartNext begins the next recitation. It returns nil when the queue is empty.
func (f *Facade) StartNext(ctx context.Context, actor string) (*session.Session, error) {
	s, err := f.queue.StartNextSession(ctx)
	if err != nil {
		return nil, err
	}
	f.refreshQueueLength(ctx)
	if s == nil {
		return nil, nil
	}
	f.record(ctx, audit.ActionSessionStart, actor, "started session with "+s.StudentName)
	return s, nil
}

// Complete closes the running session and credits the daily werd.
func (f *Facade) Complete(ctx context.Context, actor, sessionID string, in CompleteRequest) (Outcome, error) {
	if err := f.check("app.Complete", in); err != nil {
		return Outcome{}, err
	}
	s, st, err := f.queue.CompleteSession(ctx, sessionID, in.Notes)
	if err != nil {
		return Outcome{}, err
	}
	f.metrics.Completions.Inc()
	f.refreshQueueLength(ctx)
	f.record(ctx, audit.ActionSessionComplete, actor, "completed session with "+s.StudentName)
	return Outcome{Session: s, Student: st}, nil
}

// Skip sends a queued student to the back of the line.
func (f *Facade) Skip(ctx context.Context, actor, sessionID string) (session.Session, error) {
	s, err := f.queue.SkipSession(ctx, sessionID)
	if err != nil {
		return session.Session{}, err
	}
	f.metrics.Skips.Inc()
	f.record(ctx, audit.ActionSessionSkip, actor, "skipped "+s.StudentName)
	return s, nil
}

// MarkAbsent closes a queued session as absent and fines the student.
func (f *Facade) MarkAbsent(ctx context.Context, actor, sessionID string) (Outcome, error) {
	s, st, err := f.queue.MarkAbsent(ctx, sessionID)
	if err != nil {
		return Outcome{}, err
	}
	f.metrics.Absences.Inc()
	f.refreshQueueLength(ctx)
	f.record(ctx, audit.ActionAbsent, actor, s.StudentName+" marked absent")
	return Outcome{Session: s, Student: st}, nil
}

// Queue lists the open sessions in serving order.
func (f *Facade) Queue(ctx context.Context) ([]session.Session, error) {
	return f.queue.Queue(ctx)
}

// ActiveSession returns the running session, or nil.
func (f *Facade) ActiveSession(ctx context.Context) (*session.Session, error) {
	return f.queue.ActiveSession(ctx)
}

// NextSession returns who would be started next, or nil.
func (f *Facade) NextSession(ctx context.Context) (*session.Session, error) {
	return f.queue.NextSession(ctx)
}

// TodaySessions lists today's sessions in every state.
func (f *Facade) TodaySessions(ctx context.Context) ([]session.Session, error) {
	return f.queue.TodaySessions(ctx)
}

// SessionHistory lists a student's completed sessions, newest first.
func (f *Facade) SessionHistory(ctx context.Context, studentID string) ([]session.Session, error) {
	if _, err := f.roster.Student(ctx, studentID); err != nil {
		return nil, err
	}
	return f.queue.StudentHistory(ctx, studentID)
}
