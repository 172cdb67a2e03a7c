package app

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"halaqa/internal/apperr"
	"halaqa/internal/audit"
	"halaqa/internal/auth"
	"halaqa/internal/events"
	"halaqa/internal/hadith"
	"halaqa/internal/metrics"
	"halaqa/internal/queue"
	"halaqa/internal/roster"
	"halaqa/internal/session"
	"halaqa/internal/store"
)

type fakeUploader struct {
	got  []byte
	fail bool
}

func (u *fakeUploader) Upload(_ context.Context, data []byte, _ string) (string, error) {
	if u.fail {
		return "", errors.New("cdn down")
	}
	u.got = data
	return "https://cdn.example/avatar.png", nil
}

type fixture struct {
	app     *Facade
	audit   *audit.Memory
	metrics *metrics.Metrics
	uploads *fakeUploader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	repo := roster.NewMemory()
	students := roster.NewService(repo)
	bus := events.NewInMemory(nil, 16)
	q := queue.NewInMemory(64)
	log := audit.NewMemory()
	go func() { _ = audit.Consume(ctx, q, log, nil) }()

	f := &fixture{audit: log, metrics: metrics.Nop(), uploads: &fakeUploader{}}
	f.app = New(Deps{
		Roster:   students,
		Queue:    session.NewEngine(session.NewMemory(repo), students, bus, time.UTC, nil),
		Hadith:   hadith.NewScheduler(hadith.NewMemory(), students, store.NewLocalLocker(), bus, time.UTC, nil),
		Auth:     auth.NewProvider(students, "123456"),
		Tokens:   auth.Issuer{Name: "halaqa-test", Key: "k", AccessTTL: time.Minute, RefreshTTL: time.Hour},
		Audit:    audit.NewRecorder(q, nil),
		AuditLog: log,
		Avatars:  f.uploads,
		Metrics:  f.metrics,
	})
	return f
}

var everyDay = ScheduleRequest{Days: roster.Week, StartTime: "16:00", EndTime: "16:30"}

func (f *fixture) student(t *testing.T, name, phone string) roster.Student {
	t.Helper()
	ctx := context.Background()
	st, err := f.app.Register(ctx, RegisterRequest{Name: name, Phone: phone, Password: "secret1"})
	require.NoError(t, err)
	st, err = f.app.Approve(ctx, "sheikh", st.ID, everyDay)
	require.NoError(t, err)
	return st
}

func (f *fixture) auditActions(t *testing.T, n int) []audit.Action {
	t.Helper()
	var entries []audit.Entry
	require.Eventually(t, func() bool {
		entries, _ = f.audit.List(context.Background(), 0)
		return len(entries) >= n
	}, time.Second, 10*time.Millisecond)
	out := make([]audit.Action, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.app.Register(ctx, RegisterRequest{Name: "Omar Ali", Phone: "0100000001", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, roster.StatusPending, st.Status)
	assert.Contains(t, st.AvatarURL, "ui-avatars.com")
	assert.Equal(t, roster.DefaultSurah, st.CurrentSurah)

	_, err = f.app.Register(ctx, RegisterRequest{Name: "Omar", Phone: "0100000001", Password: "secret1"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.app.Register(ctx, RegisterRequest{Name: "Short", Phone: "0100000002", Password: "x"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	in, err := f.app.Login(ctx, LoginRequest{Phone: "0100000001", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, st.ID, in.User.ID)
	assert.NotEmpty(t, in.Tokens.AccessToken)

	_, err = f.app.Login(ctx, LoginRequest{Phone: "0100000001", Password: "wrong"})
	assert.ErrorIs(t, err, apperr.ErrInvalidCredential)

	again, err := f.app.Refresh(ctx, in.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, st.ID, again.User.ID)

	_, err = f.app.Refresh(ctx, in.Tokens.AccessToken)
	assert.ErrorIs(t, err, apperr.ErrInvalidCredential)

	assert.Contains(t, f.auditActions(t, 1), audit.ActionRegister)
}

func TestVerifyCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.student(t, "Omar", "0100000001")

	in, err := f.app.VerifyCode(ctx, CodeRequest{Phone: "0100000001", Code: "123456"})
	require.NoError(t, err)
	assert.Equal(t, st.ID, in.User.ID)

	_, err = f.app.VerifyCode(ctx, CodeRequest{Phone: "0100000001", Code: "000000"})
	assert.ErrorIs(t, err, apperr.ErrInvalidCredential)

	_, err = f.app.VerifyCode(ctx, CodeRequest{Phone: "0199999999", Code: "123456"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRefreshRefusesSuspended(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.student(t, "Omar", "0100000001")
	in, err := f.app.Login(ctx, LoginRequest{Phone: "0100000001", Password: "secret1"})
	require.NoError(t, err)

	_, err = f.app.Suspend(ctx, st.ID)
	require.NoError(t, err)
	_, err = f.app.Refresh(ctx, in.Tokens.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrSuspended)

	require.NoError(t, f.app.DeleteStudent(ctx, st.ID))
	_, err = f.app.Refresh(ctx, in.Tokens.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrInvalidCredential)
}

func TestQueueLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	omar := f.student(t, "Omar", "0100000001")
	zaid := f.student(t, "Zaid", "0100000002")

	_, err := f.app.SetupMemorization(ctx, omar.ID, roster.Setup{StartPage: 590, DailyWerdPages: 2, InitialMemorizedType: "pages", InitialMemorizedValue: 600})
	require.NoError(t, err)

	_, err = f.app.CheckIn(ctx, omar.ID)
	require.NoError(t, err)
	zs, err := f.app.CheckIn(ctx, zaid.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.QueueLength))

	started, err := f.app.StartNext(ctx, "sheikh")
	require.NoError(t, err)
	require.NotNil(t, started)
	assert.Equal(t, omar.ID, started.StudentID)

	_, err = f.app.StartNext(ctx, "sheikh")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	out, err := f.app.Complete(ctx, "sheikh", started.ID, CompleteRequest{Notes: "good"})
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, out.Session.Status)
	assert.Equal(t, 602, out.Student.TotalPagesMemorized)
	assert.Equal(t, 99.67, out.Student.MemorizationPercentage)

	absent, err := f.app.MarkAbsent(ctx, "sheikh", zs.ID)
	require.NoError(t, err)
	assert.Equal(t, roster.AbsencePenalty, absent.Student.TotalFines)

	_, err = f.app.MarkAbsent(ctx, "sheikh", zs.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.QueueLength))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CheckIns))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Completions))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Absences))

	history, err := f.app.SessionHistory(ctx, omar.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "good", history[0].Notes)

	actions := f.auditActions(t, 8)
	assert.Contains(t, actions, audit.ActionCheckIn)
	assert.Contains(t, actions, audit.ActionSessionStart)
	assert.Contains(t, actions, audit.ActionSessionComplete)
	assert.Contains(t, actions, audit.ActionAbsent)
}

func TestDeleteStudentKeepsQueueMoving(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	omar := f.student(t, "Omar", "0100000001")
	zaid := f.student(t, "Zaid", "0100000002")

	gone, err := f.app.CheckIn(ctx, omar.ID)
	require.NoError(t, err)
	_, err = f.app.CheckIn(ctx, zaid.ID)
	require.NoError(t, err)

	require.NoError(t, f.app.DeleteStudent(ctx, omar.ID))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.QueueLength))

	q, err := f.app.Queue(ctx)
	require.NoError(t, err)
	require.Len(t, q, 1)
	assert.Equal(t, zaid.ID, q[0].StudentID)

	started, err := f.app.StartNext(ctx, "sheikh")
	require.NoError(t, err)
	require.NotNil(t, started)
	assert.Equal(t, zaid.ID, started.StudentID)

	out, err := f.app.Complete(ctx, "sheikh", started.ID, CompleteRequest{})
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, out.Session.Status)

	today, err := f.app.TodaySessions(ctx)
	require.NoError(t, err)
	for _, s := range today {
		if s.ID == gone.ID {
			assert.Equal(t, session.StatusAbsent, s.Status)
		}
	}
	_, err = f.app.SessionHistory(ctx, omar.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMeHidesNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.student(t, "Omar", "0100000001")

	_, err := f.app.UpdateNotes(ctx, st.ID, NotesRequest{Notes: "needs tajweed work"})
	require.NoError(t, err)

	me, err := f.app.Me(ctx, st.ID)
	require.NoError(t, err)
	assert.Empty(t, me.Notes)
	assert.True(t, me.NeedsSetup)

	all, err := f.app.Students(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "needs tajweed work", all[0].Notes)
}

func TestScheduleValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st, err := f.app.Register(ctx, RegisterRequest{Name: "Omar", Phone: "0100000001", Password: "secret1"})
	require.NoError(t, err)

	_, err = f.app.Approve(ctx, "sheikh", st.ID, ScheduleRequest{Days: []roster.Weekday{"XYZ"}, StartTime: "10:00", EndTime: "11:00"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = f.app.Approve(ctx, "sheikh", st.ID, ScheduleRequest{Days: roster.Week, StartTime: "25:00", EndTime: "11:00"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	pending, err := f.app.PendingStudents(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = f.app.Approve(ctx, "sheikh", st.ID, everyDay)
	require.NoError(t, err)
	today, err := f.app.TodaysSchedule(ctx)
	require.NoError(t, err)
	assert.Len(t, today, 1)

	_, err = f.app.UpdateSchedule(ctx, "sheikh", st.ID, ScheduleRequest{Days: []roster.Weekday{roster.Friday}, StartTime: "09:00", EndTime: "09:30"})
	require.NoError(t, err)
	assert.Contains(t, f.auditActions(t, 3), audit.ActionScheduleAssign)
}

func TestUploadAvatar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.student(t, "Omar", "0100000001")
	png := []byte("\x89PNG\r\n\x1a\n0000")

	me, err := f.app.UploadAvatar(ctx, st.ID, png, "me.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/avatar.png", me.AvatarURL)
	assert.Equal(t, png, f.uploads.got)

	_, err = f.app.UploadAvatar(ctx, st.ID, []byte("plain text"), "me.txt")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	f.uploads.fail = true
	_, err = f.app.UploadAvatar(ctx, st.ID, png, "me.png")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))

	f.app.avatars = nil
	_, err = f.app.UploadAvatar(ctx, st.ID, png, "me.png")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestHadithFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	omar := f.student(t, "Omar", "0100000001")
	zaid := f.student(t, "Zaid", "0100000002")

	none, err := f.app.TodayHadith(ctx, omar.ID)
	require.NoError(t, err)
	assert.Nil(t, none, "distribution is disabled by default")

	out, err := f.app.UpdateHadithSettings(ctx, "sheikh", hadith.SettingsUpdate{
		IsEnabled:        true,
		ActiveDays:       roster.Week,
		StartingHadithID: 5,
		DistributionMode: hadith.ModeLoop,
	})
	require.NoError(t, err)
	require.NotNil(t, out.Run)
	assert.Equal(t, 5, out.Run.HadithID)
	assert.Equal(t, 2, out.Run.Assigned)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.HadithAssigned))

	entry, err := f.app.TodayHadith(ctx, omar.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 5, entry.Hadith.ID)

	_, err = f.app.MarkHadithSeen(ctx, zaid.ID, entry.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "students cannot touch other assignments")

	done, err := f.app.MarkHadithDone(ctx, omar.ID, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, hadith.StatusMarkedDone, done.Status)

	again, err := f.app.AssignHadith(ctx, "sheikh")
	require.NoError(t, err)
	assert.Equal(t, hadith.SkipDone, again.Skipped)

	stats, err := f.app.HadithStats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Done)

	_, err = f.app.UpdateHadithSettings(ctx, "sheikh", hadith.SettingsUpdate{StartingHadithID: 99, DistributionMode: hadith.ModeLoop})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = f.app.Hadith(43)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Len(t, f.app.Catalog(), hadith.CatalogSize)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.NotFound("op", "x"), http.StatusNotFound},
		{apperr.Conflict("op", "x"), http.StatusConflict},
		{apperr.InvalidState("op", "x"), http.StatusConflict},
		{apperr.New("op", apperr.ErrInvalidCredential, "x"), http.StatusUnauthorized},
		{apperr.New("op", apperr.ErrSuspended, "x"), http.StatusForbidden},
		{apperr.InvalidInput("op", "x"), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
	assert.Equal(t, "x", UserMessage(apperr.Conflict("op", "x")))
	assert.NotContains(t, UserMessage(errors.New("pq: secret")), "secret")
}
