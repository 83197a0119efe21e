package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pkgAuth "github.com/codinglabe/believe-app/pkg/auth"
	"github.com/codinglabe/believe-app/pkg/config"
	"github.com/codinglabe/believe-app/pkg/db/dbtest"
	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/enums"
	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
	"github.com/codinglabe/believe-app/pkg/logger"
	"github.com/codinglabe/believe-app/pkg/security"
)

var testJWT = config.JWTConfig{Secret: "test-secret", Issuer: "believe-app", ExpirationMinutes: 15}

func newUserService(t *testing.T) (Service, *Repository) {
	t.Helper()
	conn := dbtest.Open(t, &models.User{})
	repo := NewRepository(conn)
	hasher := security.NewPasswordHasher(config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	})
	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Hasher:    hasher,
		JWTConfig: testJWT,
		Logger:    logger.Nop(),
		Now:       func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	return svc, repo
}

func TestRegisterAndLogin(t *testing.T) {
	svc, repo := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterRequest{Email: " Maya@Example.com ", Password: "correct horse", DisplayName: "Maya"})
	require.NoError(t, err)
	require.Equal(t, "maya@example.com", user.Email)
	require.Equal(t, enums.UserRoleUser, user.Role)

	stored, err := repo.FindByEmail(ctx, "maya@example.com")
	require.NoError(t, err)
	require.NotEqual(t, "correct horse", stored.PasswordHash)

	resp, err := svc.Login(ctx, LoginRequest{Email: "MAYA@example.com", Password: "correct horse"})
	require.NoError(t, err)
	require.NotNil(t, resp.User.LastLoginAt)

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, enums.UserRoleUser, claims.Role)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "dup@example.com", Password: "password1", DisplayName: "One"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterRequest{Email: "DUP@example.com", Password: "password2", DisplayName: "Two"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	cases := []RegisterRequest{
		{Email: "not-an-email", Password: "password1", DisplayName: "x"},
		{Email: "short@example.com", Password: "short", DisplayName: "x"},
		{Email: "noname@example.com", Password: "password1", DisplayName: "   "},
	}
	for _, req := range cases {
		_, err := svc.Register(ctx, req)
		require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "request %+v", req)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "a@example.com", Password: "password1", DisplayName: "A"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Email: "a@example.com", Password: "wrong-password"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthenticated))

	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "password1"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthenticated))
}
