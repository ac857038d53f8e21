package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier implements HS256 token signing/parsing for store sessions.
// The secret is held at adapter level so the rest of the system stays
// crypto-library agnostic.
type TokenVerifier struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenVerifier builds a verifier from a shared secret.
func NewTokenVerifier(secret string, ttl time.Duration) (*TokenVerifier, error) {
	if secret == "" {
		return nil, errors.New("auth secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenVerifier{secret: []byte(secret), ttl: ttl}, nil
}

type storeClaims struct {
	UserID string `json:"user_id"`
	Admin  bool   `json:"admin"`
	jwt.RegisteredClaims
}

// Sign issues a token for the given caller. Used by tests and by whatever
// identity service fronts this one.
func (v *TokenVerifier) Sign(c Caller) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, storeClaims{
		UserID: c.UserID,
		Admin:  c.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
	})
	return token.SignedString(v.secret)
}

// ParseAndValidate turns a raw bearer token into a Caller.
func (v *TokenVerifier) ParseAndValidate(raw string) (Caller, error) {
	parsed, err := jwt.ParseWithClaims(raw, &storeClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		return Caller{}, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	claims, ok := parsed.Claims.(*storeClaims)
	if !ok || !parsed.Valid {
		return Caller{}, fmt.Errorf("%w: invalid token claims", ErrPermissionDenied)
	}
	if claims.UserID == "" {
		return Caller{}, fmt.Errorf("%w: token missing user_id", ErrPermissionDenied)
	}
	return Caller{UserID: claims.UserID, Admin: claims.Admin}, nil
}
