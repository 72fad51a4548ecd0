package tool

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenExpired = errors.New("session token expired")

// TokenInfo is what the client can learn from its own session token.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// InspectToken reads the claims of a JWT session token without verifying it;
// the server is the one that verifies. Opaque (non-JWT) tokens return an error
// and should simply be passed through.
func InspectToken(token string, now time.Time) (TokenInfo, error) {
	var info TokenInfo
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return info, fmt.Errorf("token is not a JWT: %w", err)
	}
	info.Subject = claims.Subject
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
		if !info.ExpiresAt.After(now) {
			return info, ErrTokenExpired
		}
	}
	return info, nil
}
