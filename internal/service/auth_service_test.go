package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"hazeltrade/internal/model"
)

var testSecret = []byte("test_secret")

func signupRequest() SignupRequest {
	return SignupRequest{
		Email:    "buyer@test.com",
		Password: "password123",
		FullName: "Test Buyer",
		Role:     "BUYER",
		CompanyData: &CompanyData{
			Name:               "Acme Trading",
			Country:            "NL",
			RegistrationNumber: "12345678",
			YearEstablished:    2005,
			CompanyType:        "TRADING",
			Address:            "1 Canal Street",
		},
	}
}

func TestSignupCreatesUserAndCompany(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, testSecret)

	user, err := svc.Signup(context.Background(), signupRequest())
	require.NoError(t, err)

	require.NotNil(t, user.CompanyID)
	assert.Len(t, repo.companies, 1)
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
}

func TestSignupBrokerWithoutCompany(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, testSecret)

	req := signupRequest()
	req.Email = "broker@test.com"
	req.Role = "BROKER"
	req.CompanyData = nil

	user, err := svc.Signup(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, user.CompanyID)
	assert.Empty(t, repo.companies)
}

func TestSignupRejectsUnknownRole(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, testSecret)

	req := signupRequest()
	req.Role = "ADMIN"

	_, err := svc.Signup(context.Background(), req)
	assert.Error(t, err)
	assert.Empty(t, repo.users)
}

func TestSignupDuplicateEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, testSecret)

	_, err := svc.Signup(context.Background(), signupRequest())
	require.NoError(t, err)

	_, err = svc.Signup(context.Background(), signupRequest())
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignupCompensatesCompanyOnUserFailure(t *testing.T) {
	repo := newFakeUserRepo()
	repo.failCreateUser = true
	svc := NewAuthService(repo, testSecret)

	_, err := svc.Signup(context.Background(), signupRequest())
	require.Error(t, err)

	// The orphaned company row must be cleaned up again
	assert.Empty(t, repo.companies)
	assert.Empty(t, repo.users)
}

func TestLoginIssuesSignedToken(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, testSecret)

	created, err := svc.Signup(context.Background(), signupRequest())
	require.NoError(t, err)

	tokens, err := svc.Login(context.Background(), LoginRequest{Email: "buyer@test.com", Password: "password123"})
	require.NoError(t, err)
	require.NotEmpty(t, tokens.Token)
	require.NotEmpty(t, tokens.RefreshToken)

	parsed, err := jwt.Parse(tokens.Token, func(t *jwt.Token) (interface{}, error) {
		return testSecret, nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, created.ID.String(), claims["sub"])
	assert.Equal(t, "BUYER", claims["role"])
	assert.Equal(t, created.CompanyID.String(), claims["company_id"])
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, testSecret)

	_, err := svc.Signup(context.Background(), signupRequest())
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginRequest{Email: "buyer@test.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), LoginRequest{Email: "nobody@test.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRotatesAccessToken(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, testSecret)

	_, err := svc.Signup(context.Background(), signupRequest())
	require.NoError(t, err)
	tokens, err := svc.Login(context.Background(), LoginRequest{Email: "buyer@test.com", Password: "password123"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.Token)
}

func TestRefreshExpiredToken(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, testSecret)

	user := &model.User{ID: uuid.New(), Email: "x@test.com"}
	repo.users[user.ID] = *user
	repo.refreshTokens["stale"] = model.RefreshToken{
		UserID:    user.ID,
		Token:     "stale",
		ExpiresAt: time.Now().Add(-time.Hour),
	}

	_, err := svc.Refresh(context.Background(), "stale")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Refresh(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutRevokesRefreshTokens(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, testSecret)

	created, err := svc.Signup(context.Background(), signupRequest())
	require.NoError(t, err)
	tokens, err := svc.Login(context.Background(), LoginRequest{Email: "buyer@test.com", Password: "password123"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), created.ID))

	_, err = svc.Refresh(context.Background(), tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
