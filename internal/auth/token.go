// Package auth validates bearer tokens and extracts the caller
// principal from them.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken indicates no bearer token was presented.
	ErrMissingToken = errors.New("missing token")

	// ErrInvalidToken indicates the token failed signature or claim
	// validation.
	ErrInvalidToken = errors.New("invalid token")
)

// Principal is the authenticated caller.
type Principal struct {
	// Subject identifies the user; it keys the conversation history.
	Subject string

	// OrgID is the organization claim, when present.
	OrgID string

	// SandboxID is set when the token is scoped to a sandbox environment.
	SandboxID string
}

// claims is the token payload shape we accept.
type claims struct {
	OrgID     string `json:"org_uuid,omitempty"`
	SandboxID string `json:"sandbox_uuid,omitempty"`
	jwt.RegisteredClaims
}

// Validator verifies HS256-signed bearer tokens.
type Validator struct {
	secret []byte
}

// NewValidator creates a Validator with the given signing secret.
func NewValidator(secret string) (*Validator, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	return &Validator{secret: []byte(secret)}, nil
}

// Validate checks an Authorization header value and returns the caller
// principal. The "Bearer " prefix is optional.
func (v *Validator) Validate(authorization string) (Principal, error) {
	raw := strings.TrimSpace(authorization)
	raw = strings.TrimPrefix(raw, "Bearer ")
	if raw == "" {
		return Principal{}, ErrMissingToken
	}

	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		// Restricting to HMAC blocks algorithm-substitution tokens.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Principal{}, ErrInvalidToken
	}

	return Principal{
		Subject:   c.Subject,
		OrgID:     c.OrgID,
		SandboxID: c.SandboxID,
	}, nil
}

// Sign issues a token for the given principal. Used by tests and the
// local development tooling; production tokens come from the identity
// service.
func Sign(secret string, p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		OrgID:     p.OrgID,
		SandboxID: p.SandboxID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
