package roster

import (
	"fmt"
	"regexp"
	"time"

	"halaqa/internal/apperr"
	"halaqa/internal/progress"
)

// Role tags an account. Only students carry a Profile.
type Role string

const (
	RoleSheikh  Role = "SHEIKH"
	RoleStudent Role = "STUDENT"
	RoleGuest   Role = "GUEST"
)

// Status is the approval state of an account.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusRejected  Status = "REJECTED"
	StatusSuspended Status = "SUSPENDED"
)

// AbsencePenalty is the fine added to a student for each absence.
const AbsencePenalty = 30

// Weekday codes of the teaching week, which starts on Saturday.
type Weekday string

const (
	Saturday  Weekday = "SAT"
	Sunday    Weekday = "SUN"
	Monday    Weekday = "MON"
	Tuesday   Weekday = "TUE"
	Wednesday Weekday = "WED"
	Thursday  Weekday = "THU"
	Friday    Weekday = "FRI"
)

// Week lists the weekday codes in teaching-week order.
var Week = []Weekday{Saturday, Sunday, Monday, Tuesday, Wednesday, Thursday, Friday}

var stdWeekdays = map[time.Weekday]Weekday{
	time.Saturday:  Saturday,
	time.Sunday:    Sunday,
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
}

// WeekdayOf returns the weekday code of t in t's location.
func WeekdayOf(t time.Time) Weekday {
	return stdWeekdays[t.Weekday()]
}

// Valid reports whether d is a known weekday code.
func (d Weekday) Valid() bool {
	for _, w := range Week {
		if w == d {
			return true
		}
	}
	return false
}

var clock = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Schedule is a student's weekly slot. Overlaps between students are allowed.
type Schedule struct {
	Days      []Weekday `json:"days"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
}

// Validate checks day codes and HH:MM times.
func (s Schedule) Validate() error {
	for _, d := range s.Days {
		if !d.Valid() {
			return apperr.InvalidInput("roster.Schedule", fmt.Sprintf("unknown weekday %q", d))
		}
	}
	if !clock.MatchString(s.StartTime) || !clock.MatchString(s.EndTime) {
		return apperr.InvalidInput("roster.Schedule", "times must be HH:MM")
	}
	return nil
}

// Includes reports whether the schedule meets on day.
func (s *Schedule) Includes(day Weekday) bool {
	if s == nil {
		return false
	}
	for _, d := range s.Days {
		if d == day {
			return true
		}
	}
	return false
}

// User is the identity shared by every role.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	Status       Status     `json:"status"`
	Phone        string     `json:"phone_number"`
	PasswordHash string     `json:"-"`
	AvatarURL    string     `json:"avatar_url"`
	Schedule     *Schedule  `json:"schedule,omitempty"`
	Archived     bool       `json:"archived,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Profile holds the student-only fields, including memorization accounting.
type Profile struct {
	CurrentSurah   string     `json:"current_surah"`
	CurrentJuz     int        `json:"current_juz"`
	Progress       int        `json:"progress"`
	TotalFines     int        `json:"total_fines"`
	LastAttendance *time.Time `json:"last_attendance,omitempty"`
	Notes          string     `json:"notes,omitempty"`

	StartPage              int                  `json:"start_page"`
	DailyWerdPages         int                  `json:"daily_werd_pages"`
	TotalPagesMemorized    int                  `json:"total_pages_memorized"`
	MemorizationPercentage float64              `json:"memorization_percentage"`
	InitialMemorizedType   progress.InitialType `json:"initial_memorized_type,omitempty"`
	InitialMemorizedValue  int                  `json:"initial_memorized_value"`
}

// Student is a User with a student Profile.
type Student struct {
	User
	Profile
}

// NewStudent pairs a user with a profile; the user must carry the student role.
func NewStudent(u User, p Profile) (Student, error) {
	if u.Role != RoleStudent {
		return Student{}, apperr.InvalidInput("roster.NewStudent", "only students carry a memorization profile")
	}
	if p.DailyWerdPages <= 0 {
		p.DailyWerdPages = 1
	}
	if p.CurrentJuz < 1 || p.CurrentJuz > progress.TotalJuz {
		p.CurrentJuz = 1
	}
	s := Student{User: u, Profile: p}
	s.setTotalPages(p.TotalPagesMemorized)
	return s, nil
}

// NeedsSetup reports whether first-time memorization setup is still pending.
func (s *Student) NeedsSetup() bool {
	return s.StartPage == 0
}

// setTotalPages is the only writer of TotalPagesMemorized; the percentage always follows it.
func (s *Student) setTotalPages(p int) {
	s.TotalPagesMemorized = progress.ClampPages(p)
	s.MemorizationPercentage = progress.Percentage(s.TotalPagesMemorized)
}

// CompleteWerd credits one session's werd and stamps attendance.
func (s *Student) CompleteWerd(at time.Time) {
	werd := s.DailyWerdPages
	if werd <= 0 {
		werd = 1
	}
	s.setTotalPages(progress.AddPages(s.TotalPagesMemorized, werd))
	s.LastAttendance = &at
}

// Penalize adds one absence fine.
func (s *Student) Penalize() {
	s.TotalFines += AbsencePenalty
}

// Setup is the first-time (or repeated) memorization setup input.
type Setup struct {
	StartPage             int                  `json:"start_page" validate:"min=1,max=604"`
	DailyWerdPages        int                  `json:"daily_werd_pages" validate:"min=0,max=604"`
	InitialMemorizedType  progress.InitialType `json:"initial_memorized_type" validate:"omitempty,oneof=juz pages surah none"`
	InitialMemorizedValue int                  `json:"initial_memorized_value" validate:"min=0"`
}

// ApplySetup reseeds the memorization fields. It is the only path that may
// lower TotalPagesMemorized.
func (s *Student) ApplySetup(in Setup) error {
	if in.InitialMemorizedType == "none" {
		in.InitialMemorizedType = progress.InitialNone
	}
	if in.StartPage < 1 || in.StartPage > progress.TotalPages {
		return apperr.InvalidInput("roster.Setup", "start page must be between 1 and 604")
	}
	if !in.InitialMemorizedType.Valid() {
		return apperr.InvalidInput("roster.Setup", "unknown initial memorization type")
	}
	if in.DailyWerdPages <= 0 {
		in.DailyWerdPages = 1
	}
	s.StartPage = in.StartPage
	s.DailyWerdPages = in.DailyWerdPages
	s.InitialMemorizedType = in.InitialMemorizedType
	s.InitialMemorizedValue = in.InitialMemorizedValue
	if in.InitialMemorizedType == progress.InitialNone {
		s.InitialMemorizedValue = 0
	}
	s.setTotalPages(progress.SeedPages(in.InitialMemorizedType, in.InitialMemorizedValue))
	return nil
}
