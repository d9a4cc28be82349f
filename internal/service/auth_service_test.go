package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-hall-api/internal/models"
	appErrors "github.com/noah-isme/exam-hall-api/pkg/errors"
)

func newTestAuthService() *AuthService {
	return NewAuthService(nil, AuthConfig{
		AccessTokenSecret: "test-secret",
		Issuer:            "exam-hall-api",
		Audience:          []string{"exam-hall-clients"},
	})
}

func TestAuthServiceRoundTrip(t *testing.T) {
	svc := newTestAuthService()
	actor := models.Actor{ID: "student-1", Role: models.RoleStudent, Semester: 3}

	token, err := svc.IssueToken(actor, "ana@example.edu", "Ana", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "student-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, actor, claims.Actor())
}

func TestAuthServiceRejectsExpiredToken(t *testing.T) {
	svc := newTestAuthService()
	claims := &models.JWTClaims{
		UserID: "u",
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "exam-hall-api",
			Audience:  []string{"exam-hall-clients"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(expired)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))
}

func TestAuthServiceRejectsWrongSecretAndIssuer(t *testing.T) {
	svc := newTestAuthService()
	other := NewAuthService(nil, AuthConfig{AccessTokenSecret: "other", Issuer: "exam-hall-api", Audience: []string{"exam-hall-clients"}})
	token, err := other.IssueToken(models.Actor{ID: "u", Role: models.RoleAdmin}, "", "", time.Hour)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))

	foreign := NewAuthService(nil, AuthConfig{AccessTokenSecret: "test-secret", Issuer: "someone-else"})
	token, err = foreign.IssueToken(models.Actor{ID: "u", Role: models.RoleAdmin}, "", "", time.Hour)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))
}

func TestAuthServiceRejectsUnknownRole(t *testing.T) {
	svc := newTestAuthService()
	token, err := svc.IssueToken(models.Actor{ID: "u", Role: models.UserRole("SUPERADMIN")}, "", "", time.Hour)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))
}
