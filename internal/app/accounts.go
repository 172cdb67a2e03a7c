package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"halaqa/internal/apperr"
	"halaqa/internal/audit"
	"halaqa/internal/auth"
	"halaqa/internal/avatar"
	"halaqa/internal/roster"
)

// RegisterRequest is a student sign-up.
type RegisterRequest struct {
	Name         string `json:"name" validate:"required,max=120"`
	Phone        string `json:"phone_number" validate:"required,min=6,max=20"`
	Password     string `json:"password" validate:"required,min=6,max=72"`
	CurrentSurah string `json:"current_surah" validate:"max=60"`
	CurrentJuz   int    `json:"current_juz" validate:"min=0,max=30"`
}

// LoginRequest authenticates with phone and password.
type LoginRequest struct {
	Phone    string `json:"phone_number" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// CodeRequest verifies a one-time code.
type CodeRequest struct {
	Phone string `json:"phone_number" validate:"required"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// SignIn is an authenticated principal with its tokens.
type SignIn struct {
	User   auth.Principal `json:"user"`
	Tokens auth.TokenPair `json:"tokens"`
}

// Register creates a pending student with a generated avatar.
func (f *Facade) Register(ctx context.Context, in RegisterRequest) (roster.Student, error) {
	const op = "app.Register"
	if err := f.check(op, in); err != nil {
		return roster.Student{}, err
	}
	hash, err := auth.HashSecret(in.Password)
	if err != nil {
		return roster.Student{}, fmt.Errorf("hash secret: %w", err)
	}
	st, err := f.roster.Register(ctx, roster.Registration{
		Name:         in.Name,
		Phone:        in.Phone,
		PasswordHash: hash,
		AvatarURL:    avatar.DefaultURL(in.Name),
		CurrentSurah: in.CurrentSurah,
		CurrentJuz:   in.CurrentJuz,
	})
	if err != nil {
		return roster.Student{}, err
	}
	f.record(ctx, audit.ActionRegister, st.ID, "registered "+st.Name)
	f.log.Info("student registered", zap.String("student_id", st.ID))
	return st, nil
}

// EnsureSheikh provisions the configured sheikh account.
func (f *Facade) EnsureSheikh(ctx context.Context, name, phone, password string) (roster.User, bool, error) {
	if password == "" {
		return roster.User{}, false, apperr.InvalidInput("app.EnsureSheikh", "sheikh password is required")
	}
	hash, err := auth.HashSecret(password)
	if err != nil {
		return roster.User{}, false, fmt.Errorf("hash secret: %w", err)
	}
	return f.roster.EnsureSheikh(ctx, name, phone, hash)
}

// Login checks credentials and issues a token pair.
func (f *Facade) Login(ctx context.Context, in LoginRequest) (SignIn, error) {
	if err := f.check("app.Login", in); err != nil {
		return SignIn{}, err
	}
	p, err := f.auth.Login(ctx, in.Phone, in.Password)
	if err != nil {
		return SignIn{}, err
	}
	return f.issue(p)
}

// RequestCode starts code-based sign-in.
func (f *Facade) RequestCode(ctx context.Context, phone string) error {
	return f.auth.RequestOneTimeCode(ctx, phone)
}

// VerifyCode signs in with a one-time code. The phone must belong to an account.
func (f *Facade) VerifyCode(ctx context.Context, in CodeRequest) (SignIn, error) {
	const op = "app.VerifyCode"
	if err := f.check(op, in); err != nil {
		return SignIn{}, err
	}
	if !f.auth.VerifyOneTimeCode(ctx, in.Phone, in.Code) {
		return SignIn{}, apperr.New(op, apperr.ErrInvalidCredential, "the code is not valid")
	}
	p, err := f.auth.Principal(ctx, in.Phone)
	if err != nil {
		return SignIn{}, err
	}
	if p == nil {
		return SignIn{}, apperr.NotFound(op, "no account uses this phone number, please register first")
	}
	return f.issue(*p)
}

// Refresh exchanges a refresh token for a new pair. The account must still
// exist and not be suspended.
func (f *Facade) Refresh(ctx context.Context, refreshToken string) (SignIn, error) {
	const op = "app.Refresh"
	invalid := apperr.New(op, apperr.ErrInvalidCredential, "invalid refresh token")
	claims, err := f.tokens.Parse(refreshToken, auth.KindRefresh)
	if err != nil {
		return SignIn{}, invalid
	}
	acc, err := f.roster.Account(ctx, claims.Subject)
	if errors.Is(err, apperr.ErrNotFound) {
		return SignIn{}, invalid
	}
	if err != nil {
		return SignIn{}, err
	}
	if acc.Archived {
		return SignIn{}, invalid
	}
	if acc.Status == roster.StatusSuspended {
		return SignIn{}, apperr.New(op, apperr.ErrSuspended, "this account has been suspended")
	}
	return f.issue(auth.Principal{ID: acc.ID, Name: acc.Name, Role: acc.Role, Status: acc.Status})
}

func (f *Facade) issue(p auth.Principal) (SignIn, error) {
	pair, err := f.tokens.Issue(p.ID, string(p.Role))
	if err != nil {
		return SignIn{}, fmt.Errorf("issue tokens: %w", err)
	}
	return SignIn{User: p, Tokens: pair}, nil
}
