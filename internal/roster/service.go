package roster

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"halaqa/internal/apperr"
)

// Default profile values for new registrations.
const (
	DefaultSurah = "Al-Fatiha"
	DefaultJuz   = 1
)

// Service implements the roster operations on top of a Repository.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a roster service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Registration is a new student sign-up. The secret arrives already hashed.
type Registration struct {
	Name         string
	Phone        string
	PasswordHash string
	AvatarURL    string
	CurrentSurah string
	CurrentJuz   int
}

// Register creates a PENDING student. Surah and juz default to the start of the Quran.
func (s *Service) Register(ctx context.Context, r Registration) (Student, error) {
	const op = "roster.Register"
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
	if r.Name == "" || r.Phone == "" {
		return Student{}, apperr.InvalidInput(op, "name and phone number are required")
	}
	existing, err := s.repo.FindByPhone(ctx, r.Phone)
	if err != nil {
		return Student{}, err
	}
	if existing != nil {
		return Student{}, duplicatePhone(op)
	}
	if r.CurrentSurah == "" {
		r.CurrentSurah = DefaultSurah
	}
	if r.CurrentJuz == 0 {
		r.CurrentJuz = DefaultJuz
	}
	now := s.now()
	st, err := NewStudent(User{
		ID:           uuid.NewString(),
		Name:         r.Name,
		Role:         RoleStudent,
		Status:       StatusPending,
		Phone:        r.Phone,
		PasswordHash: r.PasswordHash,
		AvatarURL:    r.AvatarURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, Profile{CurrentSurah: r.CurrentSurah, CurrentJuz: r.CurrentJuz, DailyWerdPages: 1})
	if err != nil {
		return Student{}, err
	}
	if err := s.repo.Create(ctx, AccountOf(st)); err != nil {
		return Student{}, err
	}
	return st, nil
}

// EnsureSheikh provisions the single sheikh account when it does not exist yet.
func (s *Service) EnsureSheikh(ctx context.Context, name, phone, passwordHash string) (User, bool, error) {
	const op = "roster.EnsureSheikh"
	if phone == "" {
		return User{}, false, apperr.InvalidInput(op, "sheikh phone number is required")
	}
	existing, err := s.repo.FindByPhone(ctx, phone)
	if err != nil {
		return User{}, false, err
	}
	if existing != nil {
		if existing.Role != RoleSheikh {
			return User{}, false, apperr.Conflict(op, "phone number belongs to a non-sheikh account")
		}
		return existing.User, false, nil
	}
	now := s.now()
	u := User{
		ID:           uuid.NewString(),
		Name:         name,
		Role:         RoleSheikh,
		Status:       StatusActive,
		Phone:        phone,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, Account{User: u}); err != nil {
		return User{}, false, err
	}
	return u, true, nil
}

// FindByPhone returns the live account using phone, or nil.
func (s *Service) FindByPhone(ctx context.Context, phone string) (*Account, error) {
	return s.repo.FindByPhone(ctx, strings.TrimSpace(phone))
}

// Account returns any account by id.
func (s *Service) Account(ctx context.Context, id string) (Account, error) {
	return s.repo.Get(ctx, id)
}

// Student returns a live student.
func (s *Service) Student(ctx context.Context, id string) (Student, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Student{}, err
	}
	st, ok := a.AsStudent()
	if !ok || a.Archived {
		return Student{}, apperr.NotFound("roster.Student", "student "+id+" not found")
	}
	return st, nil
}

// UpdateStudent applies fn to a live student under the repository's row lock.
func (s *Service) UpdateStudent(ctx context.Context, id string, fn func(*Student) error) (Student, error) {
	a, err := s.repo.Update(ctx, id, StudentMutation(id, fn))
	if err != nil {
		return Student{}, err
	}
	st, _ := a.AsStudent()
	return st, nil
}

// StudentMutation lifts a student mutation to an account mutation, refusing
// archived and non-student rows.
func StudentMutation(id string, fn func(*Student) error) func(*Account) error {
	return func(a *Account) error {
		st, ok := a.AsStudent()
		if !ok || a.Archived {
			return apperr.NotFound("roster.Update", "student "+id+" not found")
		}
		if err := fn(&st); err != nil {
			return err
		}
		*a = AccountOf(st)
		return nil
	}
}

// Approve activates a student and assigns the weekly schedule.
func (s *Service) Approve(ctx context.Context, id string, sched Schedule) (Student, error) {
	if err := sched.Validate(); err != nil {
		return Student{}, err
	}
	return s.UpdateStudent(ctx, id, func(st *Student) error {
		if st.Status == StatusActive {
			return apperr.InvalidState("roster.Approve", "student is already active")
		}
		st.Status = StatusActive
		st.Schedule = &sched
		return nil
	})
}

// Reject declines a pending registration.
func (s *Service) Reject(ctx context.Context, id string) (Student, error) {
	return s.UpdateStudent(ctx, id, func(st *Student) error {
		if st.Status != StatusPending {
			return apperr.InvalidState("roster.Reject", "only pending students can be rejected")
		}
		st.Status = StatusRejected
		return nil
	})
}

// Suspend blocks an active student from logging in and checking in.
func (s *Service) Suspend(ctx context.Context, id string) (Student, error) {
	return s.UpdateStudent(ctx, id, func(st *Student) error {
		if st.Status != StatusActive {
			return apperr.InvalidState("roster.Suspend", "only active students can be suspended")
		}
		st.Status = StatusSuspended
		return nil
	})
}

// UpdateSchedule replaces a student's weekly slot.
func (s *Service) UpdateSchedule(ctx context.Context, id string, sched Schedule) (Student, error) {
	if err := sched.Validate(); err != nil {
		return Student{}, err
	}
	return s.UpdateStudent(ctx, id, func(st *Student) error {
		st.Schedule = &sched
		return nil
	})
}

// SetupMemorization records the memorization baseline.
func (s *Service) SetupMemorization(ctx context.Context, id string, in Setup) (Student, error) {
	return s.UpdateStudent(ctx, id, func(st *Student) error {
		return st.ApplySetup(in)
	})
}

// UpdateNotes replaces the sheikh's private notes on a student.
func (s *Service) UpdateNotes(ctx context.Context, id, notes string) (Student, error) {
	return s.UpdateStudent(ctx, id, func(st *Student) error {
		st.Notes = notes
		return nil
	})
}

// UpdateAvatar stores a new avatar URL.
func (s *Service) UpdateAvatar(ctx context.Context, id, url string) (Student, error) {
	if url == "" {
		return Student{}, apperr.InvalidInput("roster.UpdateAvatar", "avatar url is required")
	}
	return s.UpdateStudent(ctx, id, func(st *Student) error {
		st.AvatarURL = url
		return nil
	})
}

// Delete archives a student. History rows keep referencing it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Student(ctx, id); err != nil {
		return err
	}
	return s.repo.Archive(ctx, id, s.now())
}

// AllStudents lists every live student.
func (s *Service) AllStudents(ctx context.Context) ([]Student, error) {
	return s.students(ctx, func(Student) bool { return true })
}

// PendingStudents lists registrations awaiting approval.
func (s *Service) PendingStudents(ctx context.Context) ([]Student, error) {
	return s.students(ctx, func(st Student) bool { return st.Status == StatusPending })
}

// ActiveStudents lists approved students.
func (s *Service) ActiveStudents(ctx context.Context) ([]Student, error) {
	return s.students(ctx, func(st Student) bool { return st.Status == StatusActive })
}

// TodaysSchedule lists the active students meeting on day, by start time.
func (s *Service) TodaysSchedule(ctx context.Context, day Weekday) ([]Student, error) {
	out, err := s.students(ctx, func(st Student) bool {
		return st.Status == StatusActive && st.Schedule.Includes(day)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Schedule.StartTime < out[j].Schedule.StartTime
	})
	return out, nil
}

func (s *Service) students(ctx context.Context, keep func(Student) bool) ([]Student, error) {
	accounts, err := s.repo.QueryByRole(ctx, RoleStudent, false)
	if err != nil {
		return nil, err
	}
	out := make([]Student, 0, len(accounts))
	for _, a := range accounts {
		if st, ok := a.AsStudent(); ok && keep(st) {
			out = append(out, st)
		}
	}
	return out, nil
}
