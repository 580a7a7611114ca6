package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func backendToken(t *testing.T, userID string, exp time.Time) string {
	t.Helper()
	claims := &TokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

func TestInspectToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	claims, err := InspectToken(backendToken(t, "user-7", exp))
	if err != nil {
		t.Fatalf("Failed to inspect token: %v", err)
	}
	if claims.UserID != "user-7" {
		t.Errorf("Expected user-7, got %s", claims.UserID)
	}
	if !claims.ExpiresAt.Time.Equal(exp) {
		t.Errorf("Expected exp %v, got %v", exp, claims.ExpiresAt.Time)
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()

	if !Expired(backendToken(t, "u", now.Add(-time.Minute)), now) {
		t.Error("Expected past exp to be expired")
	}
	if Expired(backendToken(t, "u", now.Add(time.Minute)), now) {
		t.Error("Expected future exp to be valid")
	}
	if Expired("opaque-session-token", now) {
		t.Error("Opaque tokens cannot be judged locally")
	}
}

func TestControlToken(t *testing.T) {
	secret := []byte("control-secret")

	token, err := GenerateControlToken(secret, time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	claims, err := ValidateControlToken(secret, token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.Scope != "control" {
		t.Errorf("Expected control scope, got %s", claims.Scope)
	}

	if _, err := ValidateControlToken([]byte("other-secret"), token); err == nil {
		t.Error("Expected validation to fail with the wrong secret")
	}

	expired, err := GenerateControlToken(secret, -time.Minute)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if _, err := ValidateControlToken(secret, expired); err == nil {
		t.Error("Expected expired token to be rejected")
	}

	// a backend token signed with the same secret lacks the control scope
	if _, err := ValidateControlToken(secret, backendTokenWithSecret(t, secret)); err == nil {
		t.Error("Expected token without control scope to be rejected")
	}
}

func backendTokenWithSecret(t *testing.T, secret []byte) string {
	t.Helper()
	claims := &TokenClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}
