package auth

import (
	"context"
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"halaqa/internal/apperr"
	"halaqa/internal/roster"
)

// HashSecret hashes a password for storage.
func HashSecret(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckSecret reports whether secret matches hash.
func CheckSecret(hash, secret string) bool {
	return hash != "" && bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// Principal is an authenticated account.
type Principal struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Role   roster.Role   `json:"role"`
	Status roster.Status `json:"status"`
}

// Accounts looks up live accounts by phone.
type Accounts interface {
	FindByPhone(ctx context.Context, phone string) (*roster.Account, error)
}

// Provider verifies credentials against the roster. One-time codes are a fixed
// stub code until an SMS gateway exists.
type Provider struct {
	accounts Accounts
	otpCode  string
}

// NewProvider builds a provider accepting otpCode as the one-time code.
func NewProvider(accounts Accounts, otpCode string) *Provider {
	return &Provider{accounts: accounts, otpCode: otpCode}
}

// Login checks a phone and secret. Suspended accounts are refused; pending
// students may log in to see their approval state.
func (p *Provider) Login(ctx context.Context, phone, secret string) (Principal, error) {
	const op = "auth.Login"
	a, err := p.accounts.FindByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		return Principal{}, err
	}
	if a == nil || !CheckSecret(a.PasswordHash, secret) {
		return Principal{}, apperr.New(op, apperr.ErrInvalidCredential, "wrong phone number or password")
	}
	if a.Status == roster.StatusSuspended {
		return Principal{}, apperr.New(op, apperr.ErrSuspended, "this account has been suspended")
	}
	return principalOf(a), nil
}

// RequestOneTimeCode would send a code by SMS; the stub code needs no delivery.
func (p *Provider) RequestOneTimeCode(_ context.Context, phone string) error {
	if strings.TrimSpace(phone) == "" {
		return apperr.InvalidInput("auth.RequestOneTimeCode", "phone number is required")
	}
	return nil
}

// VerifyOneTimeCode reports whether code is valid for phone.
func (p *Provider) VerifyOneTimeCode(_ context.Context, phone, code string) bool {
	if strings.TrimSpace(phone) == "" || p.otpCode == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(p.otpCode)) == 1
}

// Principal resolves the live account behind phone, for code-based sign-in.
func (p *Provider) Principal(ctx context.Context, phone string) (*Principal, error) {
	a, err := p.accounts.FindByPhone(ctx, strings.TrimSpace(phone))
	if err != nil || a == nil {
		return nil, err
	}
	if a.Status == roster.StatusSuspended {
		return nil, apperr.New("auth.Principal", apperr.ErrSuspended, "this account has been suspended")
	}
	pr := principalOf(a)
	return &pr, nil
}

func principalOf(a *roster.Account) Principal {
	return Principal{ID: a.ID, Name: a.Name, Role: a.Role, Status: a.Status}
}
