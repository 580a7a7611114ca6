package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const controlScope = "control"

// ErrInvalidControlToken is returned when a control API token fails validation
var ErrInvalidControlToken = errors.New("invalid control token")

// TokenClaims are the claims schedula reads from a backend access token
type TokenClaims struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// InspectToken decodes a backend access token without verifying its signature.
// The backend owns the signing key; the client only reads expiry and subject.
func InspectToken(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Expired reports whether the token carries an exp claim before now. Tokens that
// are not JWTs, or carry no exp, are never considered expired locally.
func Expired(tokenString string, now time.Time) bool {
	claims, err := InspectToken(tokenString)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.Time.After(now)
}

// ControlClaims represents the claims in a control API token
type ControlClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// GenerateControlToken signs a control API token with secret
func GenerateControlToken(secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &ControlClaims{
		Scope: controlScope,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateControlToken validates a control API token and returns its claims
func ValidateControlToken(secret []byte, tokenString string) (*ControlClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ControlClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*ControlClaims); ok && token.Valid && claims.Scope == controlScope {
		return claims, nil
	}

	return nil, ErrInvalidControlToken
}
