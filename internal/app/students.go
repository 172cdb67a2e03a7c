package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"halaqa/internal/apperr"
	"halaqa/internal/audit"
	"halaqa/internal/roster"
)

// MaxAvatarBytes bounds avatar uploads.
const MaxAvatarBytes = 5 << 20

// Me is the student's own view. The sheikh's notes are not part of it.
type Me struct {
	roster.Student
	NeedsSetup bool `json:"needs_setup"`
}

// ScheduleRequest is the weekly slot assigned by the sheikh.
type ScheduleRequest struct {
	Days      []roster.Weekday `json:"days" validate:"required,min=1,dive,oneof=SAT SUN MON TUE WED THU FRI"`
	StartTime string           `json:"start_time" validate:"required"`
	EndTime   string           `json:"end_time" validate:"required"`
}

func (r ScheduleRequest) schedule() roster.Schedule {
	return roster.Schedule{Days: r.Days, StartTime: r.StartTime, EndTime: r.EndTime}
}

// NotesRequest replaces the sheikh's private notes.
type NotesRequest struct {
	Notes string `json:"notes" validate:"max=5000"`
}

// Me returns the calling student's profile.
func (f *Facade) Me(ctx context.Context, studentID string) (Me, error) {
	st, err := f.roster.Student(ctx, studentID)
	if err != nil {
		return Me{}, err
	}
	st.Notes = ""
	return Me{Student: st, NeedsSetup: st.NeedsSetup()}, nil
}

// SetupMemorization records the student's memorization baseline.
func (f *Facade) SetupMemorization(ctx context.Context, studentID string, in roster.Setup) (Me, error) {
	if err := f.check("app.SetupMemorization", in); err != nil {
		return Me{}, err
	}
	st, err := f.roster.SetupMemorization(ctx, studentID, in)
	if err != nil {
		return Me{}, err
	}
	st.Notes = ""
	return Me{Student: st, NeedsSetup: st.NeedsSetup()}, nil
}

// UploadAvatar stores an image and makes it the student's avatar.
func (f *Facade) UploadAvatar(ctx context.Context, studentID string, data []byte, filename string) (Me, error) {
	const op = "app.UploadAvatar"
	if f.avatars == nil {
		return Me{}, apperr.InvalidState(op, "avatar uploads are not available")
	}
	if len(data) == 0 || len(data) > MaxAvatarBytes {
		return Me{}, apperr.InvalidInput(op, "the image must be between 1 byte and 5 MB")
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		return Me{}, apperr.InvalidInput(op, "only image files can be used as an avatar")
	}
	if _, err := f.roster.Student(ctx, studentID); err != nil {
		return Me{}, err
	}
	name := studentID + "-" + uuid.NewString() + filepath.Ext(filename)
	url, err := f.avatars.Upload(ctx, data, name)
	if err != nil {
		return Me{}, fmt.Errorf("upload avatar: %w", err)
	}
	st, err := f.roster.UpdateAvatar(ctx, studentID, url)
	if err != nil {
		return Me{}, err
	}
	st.Notes = ""
	return Me{Student: st, NeedsSetup: st.NeedsSetup()}, nil
}

// Students lists every live student.
func (f *Facade) Students(ctx context.Context) ([]roster.Student, error) {
	return f.roster.AllStudents(ctx)
}

// PendingStudents lists registrations awaiting approval.
func (f *Facade) PendingStudents(ctx context.Context) ([]roster.Student, error) {
	return f.roster.PendingStudents(ctx)
}

// TodaysSchedule lists the students meeting today, by start time.
func (f *Facade) TodaysSchedule(ctx context.Context) ([]roster.Student, error) {
	return f.roster.TodaysSchedule(ctx, roster.WeekdayOf(f.now().In(f.loc)))
}

// Approve activates a student with a weekly schedule.
func (f *Facade) Approve(ctx context.Context, actor, studentID string, in ScheduleRequest) (roster.Student, error) {
	if err := f.check("app.Approve", in); err != nil {
		return roster.Student{}, err
	}
	st, err := f.roster.Approve(ctx, studentID, in.schedule())
	if err != nil {
		return roster.Student{}, err
	}
	f.record(ctx, audit.ActionApprove, actor, "approved "+st.Name)
	return st, nil
}

// Reject declines a pending registration.
func (f *Facade) Reject(ctx context.Context, studentID string) (roster.Student, error) {
	return f.roster.Reject(ctx, studentID)
}

// Suspend blocks an active student.
func (f *Facade) Suspend(ctx context.Context, studentID string) (roster.Student, error) {
	return f.roster.Suspend(ctx, studentID)
}

// UpdateSchedule replaces a student's weekly slot.
func (f *Facade) UpdateSchedule(ctx context.Context, actor, studentID string, in ScheduleRequest) (roster.Student, error) {
	if err := f.check("app.UpdateSchedule", in); err != nil {
		return roster.Student{}, err
	}
	st, err := f.roster.UpdateSchedule(ctx, studentID, in.schedule())
	if err != nil {
		return roster.Student{}, err
	}
	f.record(ctx, audit.ActionScheduleAssign, actor,
		fmt.Sprintf("%s scheduled %s-%s on %v", st.Name, in.StartTime, in.EndTime, in.Days))
	return st, nil
}

// UpdateNotes replaces the sheikh's private notes on a student.
func (f *Facade) UpdateNotes(ctx context.Context, studentID string, in NotesRequest) (roster.Student, error) {
	if err := f.check("app.UpdateNotes", in); err != nil {
		return roster.Student{}, err
	}
	return f.roster.UpdateNotes(ctx, studentID, in.Notes)
}

// DeleteStudent archives a student; their history is kept. Any open session
// of theirs is closed so the queue keeps moving.
func (f *Facade) DeleteStudent(ctx context.Context, studentID string) error {
	if err := f.roster.Delete(ctx, studentID); err != nil {
		return err
	}
	if f.queue == nil {
		return nil
	}
	// The archive already holds; StartNext closes anything left behind.
	closed, err := f.queue.Withdraw(ctx, studentID)
	if err != nil {
		f.log.Warn("close sessions of deleted student", zap.String("student_id", studentID), zap.Error(err))
	}
	if len(closed) > 0 {
		f.refreshQueueLength(ctx)
	}
	return nil
}

// AuditLog returns the newest audit entries.
func (f *Facade) AuditLog(ctx context.Context, limit int) ([]audit.Entry, error) {
	if f.auditLog == nil {
		return []audit.Entry{}, nil
	}
	return f.auditLog.List(ctx, limit)
}
