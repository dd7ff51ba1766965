package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, secret string, claims SessionClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestValidateAcceptsPlatformToken(t *testing.T) {
	svc := NewTokenService("secret")
	raw := mintToken(t, "secret", SessionClaims{
		StudentID: "student-42",
		ExamID:    "exam-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := svc.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "student-42", claims.StudentID)
	assert.Equal(t, "exam-1", claims.ExamID)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	svc := NewTokenService("secret")
	raw := mintToken(t, "other-secret", SessionClaims{StudentID: "x"})

	_, err := svc.Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := NewTokenService("secret")
	raw := mintToken(t, "secret", SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err := svc.Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := NewTokenService("secret")
	_, err := svc.Validate("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
