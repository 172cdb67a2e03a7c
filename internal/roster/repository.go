package roster

import (
	"context"
	"time"

	"halaqa/internal/apperr"
)

// Account is one stored roster row. Profile is set only for students.
type Account struct {
	User
	Profile *Profile `json:"profile,omitempty"`
}

// AsStudent returns the student view of a, or false for other roles.
func (a Account) AsStudent() (Student, bool) {
	if a.Role != RoleStudent || a.Profile == nil {
		return Student{}, false
	}
	return Student{User: a.User, Profile: *a.Profile}, true
}

// AccountOf converts a student back to its stored form.
func AccountOf(s Student) Account {
	p := s.Profile
	return Account{User: s.User, Profile: &p}
}

// Repository persists roster accounts.
type Repository interface {
	// Create fails with a Conflict when a live account already uses the phone.
	Create(ctx context.Context, a Account) error
	Get(ctx context.Context, id string) (Account, error)
	// FindByPhone returns nil, nil when no live account matches.
	FindByPhone(ctx context.Context, phone string) (*Account, error)
	// Update applies fn under a row lock; fn errors abort without writing.
	Update(ctx context.Context, id string, fn func(*Account) error) (Account, error)
	Archive(ctx context.Context, id string, at time.Time) error
	QueryByRole(ctx context.Context, role Role, includeArchived bool) ([]Account, error)
}

func notFound(op, id string) error {
	return apperr.NotFound(op, "user "+id+" not found")
}

func duplicatePhone(op string) error {
	return apperr.Conflict(op, "phone number already registered")
}
