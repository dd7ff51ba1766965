package service

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the platform JWT claims sessiond cares about. The
// token is issued by the assessment platform; sessiond validates it
// locally before letting the UI shim in, and forwards it verbatim to the
// authority as the bearer credential.
type SessionClaims struct {
	StudentID string `json:"student_id"`
	ExamID    string `json:"exam_id,omitempty"`
	jwt.RegisteredClaims
}

// ErrInvalidToken is returned for any token that fails validation.
var ErrInvalidToken = errors.New("invalid session token")

// TokenService validates platform-issued session tokens.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a validator over the shared signing secret.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// Validate parses and verifies a token, returning its claims.
func (s *TokenService) Validate(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
