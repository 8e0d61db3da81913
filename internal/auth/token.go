package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/starford/linkshelf/internal/apperr"
)

// Claims are carried by a session token. RegisteredClaims.ID is the session id.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// GenerateToken signs an HS256 token for sessionID/userID valid until expiresAt.
func GenerateToken(sessionID, userID string, secret []byte, issuedAt, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID,
	})
	s, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return s, nil
}

// ParseToken verifies tokenString and returns its claims. Every failure wraps
// apperr.ErrUnauthenticated.
func ParseToken(tokenString string, secret []byte, now time.Time) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrUnauthenticated, err)
	}
	if !token.Valid || claims.ID == "" || claims.UserID == "" {
		return nil, fmt.Errorf("%w: malformed claims", apperr.ErrUnauthenticated)
	}
	return claims, nil
}

// ErrSessionExpired marks a session whose lifetime has passed.
var ErrSessionExpired = errors.New("session expired")

// Expired reports whether err came from an expired token or session, as
// opposed to a revoked or forged one.
func Expired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, ErrSessionExpired)
}
