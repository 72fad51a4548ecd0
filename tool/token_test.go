package tool

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestInspectToken(t *testing.T) {
	now := time.Now()
	token := signedToken(t, jwt.RegisteredClaims{
		Subject:   "dispatcher01",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	info, err := InspectToken(token, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Subject != "dispatcher01" {
		t.Errorf("expected subject dispatcher01, got %s", info.Subject)
	}
	if info.ExpiresAt.IsZero() {
		t.Error("expected an expiry")
	}
}

func TestInspectTokenExpired(t *testing.T) {
	now := time.Now()
	token := signedToken(t, jwt.RegisteredClaims{
		Subject:   "dispatcher01",
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
	})
	if _, err := InspectToken(token, now); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestInspectTokenOpaque(t *testing.T) {
	if _, err := InspectToken("not-a-jwt", time.Now()); err == nil {
		t.Error("expected error for opaque token")
	}
}
