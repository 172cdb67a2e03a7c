package hadith

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"halaqa/internal/apperr"
	"halaqa/internal/roster"
	"halaqa/internal/store"
)

type fixture struct {
	sched  *Scheduler
	store  *Memory
	roster *roster.Service
	clock  time.Time
}

// 2024-03-02 is a Saturday.
var saturday = time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: NewMemory(), roster: roster.NewService(roster.NewMemory()), clock: saturday}
	f.sched = NewScheduler(f.store, f.roster, store.NewLocalLocker(), nil, time.UTC, nil)
	f.sched.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) student(t *testing.T, name, phone string, active bool) roster.Student {
	t.Helper()
	ctx := context.Background()
	st, err := f.roster.Register(ctx, roster.Registration{Name: name, Phone: phone})
	require.NoError(t, err)
	if active {
		st, err = f.roster.Approve(ctx, st.ID, roster.Schedule{Days: []roster.Weekday{roster.Saturday}, StartTime: "10:00", EndTime: "10:30"})
		require.NoError(t, err)
	}
	return st
}

func (f *fixture) enable(t *testing.T, mutate func(*Settings)) {
	t.Helper()
	_, err := f.store.UpdateSettings(context.Background(), func(s *Settings) error {
		s.IsEnabled = true
		if mutate != nil {
			mutate(s)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestAssignIsIdempotentPerDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.student(t, "A", "1", true)
	f.student(t, "B", "2", true)
	f.student(t, "Pending", "3", false)
	f.enable(t, func(s *Settings) { s.StartingHadithID = 5 })

	res, err := f.sched.AssignDailyForAllStudents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, res.HadithID)
	assert.Equal(t, 2, res.Assigned)
	assert.Equal(t, "2024-03-02", res.Date)

	again, err := f.sched.AssignDailyForAllStudents(ctx)
	require.NoError(t, err)
	assert.Equal(t, SkipDone, again.Skipped)

	list, err := f.store.ListByDate(ctx, "2024-03-02")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	got, err := f.store.Assignment(ctx, AssignmentID(a.ID, "2024-03-02"))
	require.NoError(t, err)
	assert.Equal(t, StatusAssigned, got.Status)

	settings, err := f.store.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, settings.LastAssignedHadithID)
	assert.Equal(t, "2024-03-02", settings.LastAssignmentDate)

	f.clock = f.clock.AddDate(0, 0, 1)
	next, err := f.sched.AssignDailyForAllStudents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, next.HadithID)
}

func TestAssignSkips(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.student(t, "A", "1", true)

	res, err := f.sched.AssignDailyForAllStudents(ctx)
	require.NoError(t, err)
	assert.Equal(t, SkipDisabled, res.Skipped)

	f.enable(t, func(s *Settings) { s.ActiveDays = []roster.Weekday{roster.Monday} })
	res, err = f.sched.AssignDailyForAllStudents(ctx)
	require.NoError(t, err)
	assert.Equal(t, SkipInactive, res.Skipped)
	assert.Zero(t, res.Assigned)
}

func TestAssignUsesLocalDay(t *testing.T) {
	f := newFixture(t)
	cairo := time.FixedZone("EET", 2*3600)
	f.sched.loc = cairo
	// 23:30 UTC Saturday is already Sunday in UTC+2
	f.clock = time.Date(2024, 3, 2, 23, 30, 0, 0, time.UTC)
	f.student(t, "A", "1", true)
	f.enable(t, func(s *Settings) { s.ActiveDays = []roster.Weekday{roster.Sunday} })

	res, err := f.sched.AssignDailyForAllStudents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-03-03", res.Date)
	assert.Equal(t, 1, res.Assigned)
}

func TestDistributionModesAtEnd(t *testing.T) {
	tests := []struct {
		mode     Mode
		terminal bool
		next     int
	}{
		{ModeSequential, true, 0},
		{ModeLoop, false, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.student(t, "A", "1", true)
			f.enable(t, func(s *Settings) {
				s.DistributionMode = tt.mode
				s.LastAssignedHadithID = CatalogSize
				s.LastAssignmentDate = "2024-03-01"
			})

			res, err := f.sched.AssignDailyForAllStudents(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.terminal, res.Terminal)
			assert.Equal(t, tt.next, res.HadithID)

			settings, err := f.store.Settings(ctx)
			require.NoError(t, err)
			if tt.terminal {
				assert.Equal(t, CatalogSize, settings.LastAssignedHadithID)
				assert.Equal(t, "2024-03-01", settings.LastAssignmentDate)
			} else {
				assert.Equal(t, 1, settings.LastAssignedHadithID)
			}
		})
	}
}

func TestAssignHeldLockSkips(t *testing.T) {
	f := newFixture(t)
	lock := store.NewLocalLocker()
	f.sched.lock = lock
	_, ok, err := lock.Acquire(context.Background(), lockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := f.sched.AssignDailyForAllStudents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SkipLocked, res.Skipped)
}

func TestGetTodayHadithAssignsLazily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.student(t, "A", "1", true)

	none, err := f.sched.GetTodayHadith(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	f.enable(t, nil)
	entry, err := f.sched.GetTodayHadith(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.HadithID)
	assert.Equal(t, "Actions are by intentions", entry.Hadith.Title)
}

func TestStatusIsMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.student(t, "A", "1", true)
	f.enable(t, nil)
	entry, err := f.sched.GetTodayHadith(ctx, a.ID)
	require.NoError(t, err)

	seen, err := f.sched.MarkSeen(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSeen, seen.Status)
	assert.NotNil(t, seen.SeenAt)

	done, err := f.sched.MarkDone(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusMarkedDone, done.Status)

	still, err := f.sched.MarkSeen(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusMarkedDone, still.Status)

	again, err := f.sched.MarkDone(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusMarkedDone, again.Status)

	_, err = f.sched.MarkDone(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.student(t, "A", "1", true)
	b := f.student(t, "B", "2", true)
	f.student(t, "C", "3", true)
	f.enable(t, nil)
	_, err := f.sched.AssignDailyForAllStudents(ctx)
	require.NoError(t, err)

	_, err = f.sched.MarkSeen(ctx, AssignmentID(a.ID, "2024-03-02"))
	require.NoError(t, err)
	_, err = f.sched.MarkDone(ctx, AssignmentID(b.ID, "2024-03-02"))
	require.NoError(t, err)

	stats, err := f.sched.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Seen)
	assert.Equal(t, 1, stats.Done)
	require.Len(t, stats.Students, 3)
	for _, row := range stats.Students {
		assert.NotEmpty(t, row.Name)
	}

	_, err = f.sched.Stats(ctx, "yesterday")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestUpdateSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.student(t, "A", "1", true)

	saved, res, err := f.sched.UpdateSettings(ctx, SettingsUpdate{
		IsEnabled: true, ActiveDays: roster.Week, StartingHadithID: 10, DistributionMode: ModeSequential,
	})
	require.NoError(t, err)
	assert.True(t, saved.IsEnabled)
	require.NotNil(t, res)
	assert.Equal(t, 10, res.HadithID)

	history, err := f.sched.StudentHistory(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 10, history[0].Hadith.ID)

	_, _, err = f.sched.UpdateSettings(ctx, SettingsUpdate{StartingHadithID: 43, DistributionMode: ModeLoop})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, _, err = f.sched.UpdateSettings(ctx, SettingsUpdate{StartingHadithID: 1, DistributionMode: "random"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	disabled, res, err := f.sched.UpdateSettings(ctx, SettingsUpdate{StartingHadithID: 10, DistributionMode: ModeLoop})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 10, disabled.LastAssignedHadithID)
}

func TestCatalog(t *testing.T) {
	all := Catalog()
	require.Len(t, all, CatalogSize)
	for i, h := range all {
		assert.Equal(t, i+1, h.ID)
		assert.NotEmpty(t, h.Text)
	}
	_, ok := Lookup(0)
	assert.False(t, ok)
	_, ok = Lookup(43)
	assert.False(t, ok)
}
