package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"halaqa/internal/apperr"
	"halaqa/internal/roster"
)

var testIssuer = Issuer{Name: "halaqa-test", Key: "secret", AccessTTL: time.Minute, RefreshTTL: time.Hour}

func TestIssueAndParse(t *testing.T) {
	pair, err := testIssuer.Issue("u1", "SHEIKH")
	require.NoError(t, err)

	claims, err := testIssuer.Parse(pair.AccessToken, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "SHEIKH", claims.Role)

	_, err = testIssuer.Parse(pair.RefreshToken, KindAccess)
	assert.Error(t, err)

	_, err = testIssuer.Parse(pair.RefreshToken, KindRefresh)
	assert.NoError(t, err)

	other := testIssuer
	other.Key = "different"
	_, err = other.Parse(pair.AccessToken, KindAccess)
	assert.Error(t, err)

	renamed := testIssuer
	renamed.Name = "someone-else"
	_, err = renamed.Parse(pair.AccessToken, KindAccess)
	assert.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	iss := testIssuer
	iss.AccessTTL = -time.Minute
	pair, err := iss.Issue("u1", "STUDENT")
	require.NoError(t, err)
	_, err = iss.Parse(pair.AccessToken, KindAccess)
	assert.Error(t, err)
}

func TestRoleMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/sheikh", Authenticate(testIssuer), RequireRole("SHEIKH"), func(c *gin.Context) {
		claims, _ := ClaimsFrom(c)
		c.String(http.StatusOK, claims.Subject)
	})

	sheikh, err := testIssuer.Issue("s1", "SHEIKH")
	require.NoError(t, err)
	student, err := testIssuer.Issue("u1", "STUDENT")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"bad scheme", "Basic abc", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", "", http.StatusUnauthorized},
		{"wrong role", "Bearer " + student.AccessToken, "", http.StatusForbidden},
		{"refresh as access", "Bearer " + sheikh.RefreshToken, "", http.StatusUnauthorized},
		{"ok", "Bearer " + sheikh.AccessToken, "", http.StatusOK},
		{"query token", "", "?access_token=" + sheikh.AccessToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/sheikh"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

type accounts map[string]roster.Account

func (a accounts) FindByPhone(_ context.Context, phone string) (*roster.Account, error) {
	acc, ok := a[phone]
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

func TestProviderLogin(t *testing.T) {
	hash, err := HashSecret("pw")
	require.NoError(t, err)
	p := NewProvider(accounts{
		"1": {User: roster.User{ID: "a", Role: roster.RoleStudent, Status: roster.StatusPending, PasswordHash: hash}},
		"2": {User: roster.User{ID: "b", Role: roster.RoleStudent, Status: roster.StatusSuspended, PasswordHash: hash}},
	}, "123456")
	ctx := context.Background()

	pr, err := p.Login(ctx, "1", "pw")
	require.NoError(t, err)
	assert.Equal(t, "a", pr.ID)

	_, err = p.Login(ctx, "1", "wrong")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredential)

	_, err = p.Login(ctx, "9", "pw")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredential)

	_, err = p.Login(ctx, "2", "pw")
	assert.ErrorIs(t, err, apperr.ErrSuspended)
}

func TestOneTimeCode(t *testing.T) {
	p := NewProvider(accounts{}, "123456")
	ctx := context.Background()
	assert.True(t, p.VerifyOneTimeCode(ctx, "0100", "123456"))
	assert.False(t, p.VerifyOneTimeCode(ctx, "0100", "654321"))
	assert.False(t, p.VerifyOneTimeCode(ctx, "", "123456"))
	assert.ErrorIs(t, p.RequestOneTimeCode(ctx, " "), apperr.ErrInvalidInput)

	pr, err := p.Principal(ctx, "0100")
	require.NoError(t, err)
	assert.Nil(t, pr)
}
