package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"halaqa/internal/apperr"
	"halaqa/internal/audit"
	"halaqa/internal/hadith"
)

// TodayHadith returns the student's hadith for today, or nil.
func (f *Facade) TodayHadith(ctx context.Context, studentID string) (*hadith.Entry, error) {
	if _, err := f.roster.Student(ctx, studentID); err != nil {
		return nil, err
	}
	return f.hadith.GetTodayHadith(ctx, studentID)
}

// MarkHadithSeen records that the student opened an assignment.
func (f *Facade) MarkHadithSeen(ctx context.Context, studentID, assignmentID string) (hadith.Assignment, error) {
	if err := f.owns(ctx, studentID, assignmentID); err != nil {
		return hadith.Assignment{}, err
	}
	return f.hadith.MarkSeen(ctx, assignmentID)
}

// MarkHadithDone records that the student finished an assignment.
func (f *Facade) MarkHadithDone(ctx context.Context, studentID, assignmentID string) (hadith.Assignment, error) {
	if err := f.owns(ctx, studentID, assignmentID); err != nil {
		return hadith.Assignment{}, err
	}
	return f.hadith.MarkDone(ctx, assignmentID)
}

// owns hides other students' assignments behind NotFound.
func (f *Facade) owns(ctx context.Context, studentID, assignmentID string) error {
	a, err := f.hadith.Assignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if a.StudentID != studentID {
		return apperr.NotFound("app.Hadith", "assignment "+assignmentID+" not found")
	}
	return nil
}

// HadithHistory lists a student's past assignments, newest first.
func (f *Facade) HadithHistory(ctx context.Context, studentID string) ([]hadith.Entry, error) {
	return f.hadith.StudentHistory(ctx, studentID)
}

// HadithSettings returns the distribution settings.
func (f *Facade) HadithSettings(ctx context.Context) (hadith.Settings, error) {
	return f.hadith.Settings(ctx)
}

// SettingsOutcome is saved settings plus the assignment run they triggered, if any.
type SettingsOutcome struct {
	Settings hadith.Settings `json:"settings"`
	Run      *hadith.Result  `json:"run,omitempty"`
}

// UpdateHadithSettings saves the distribution settings.
func (f *Facade) UpdateHadithSettings(ctx context.Context, actor string, in hadith.SettingsUpdate) (SettingsOutcome, error) {
	if err := f.check("app.UpdateHadithSettings", in); err != nil {
		return SettingsOutcome{}, err
	}
	saved, res, err := f.hadith.UpdateSettings(ctx, in)
	if err != nil {
		return SettingsOutcome{}, err
	}
	if res != nil {
		f.observeRun(ctx, actor, *res)
	}
	return SettingsOutcome{Settings: saved, Run: res}, nil
}

// AssignHadith runs today's assignment on demand.
func (f *Facade) AssignHadith(ctx context.Context, actor string) (hadith.Result, error) {
	res, err := f.hadith.AssignDailyForAllStudents(ctx)
	if err != nil {
		return hadith.Result{}, err
	}
	f.observeRun(ctx, actor, res)
	return res, nil
}

// observeRun counts and audits a run that handed out hadiths.
func (f *Facade) observeRun(ctx context.Context, actor string, res hadith.Result) {
	if res.Terminal {
		f.log.Info("sequential hadith distribution finished", zap.String("date", res.Date))
	}
	if res.Assigned == 0 {
		return
	}
	f.metrics.HadithAssigned.Add(float64(res.Assigned))
	f.record(ctx, audit.ActionScheduleAssign, actor,
		fmt.Sprintf("hadith %d assigned to %d students for %s", res.HadithID, res.Assigned, res.Date))
}

// HadithStats summarises the assignments of date (YYYY-MM-DD, default today).
func (f *Facade) HadithStats(ctx context.Context, date string) (hadith.Stats, error) {
	return f.hadith.Stats(ctx, date)
}

// Catalog lists the hadith collection.
func (f *Facade) Catalog() []hadith.Hadith {
	return hadith.Catalog()
}

// Hadith returns one hadith of the collection.
func (f *Facade) Hadith(id int) (hadith.Hadith, error) {
	h, ok := hadith.Lookup(id)
	if !ok {
		return hadith.Hadith{}, apperr.NotFound("app.Hadith", fmt.Sprintf("hadith %d not found", id))
	}
	return h, nil
}
