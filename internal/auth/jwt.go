// Package auth provides session tokens, password hashing, GitHub sign-in and
// the HTTP middleware that identifies the caller.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. The user signs up, logs in with email + password, or completes the
//     GitHub OAuth flow.
//  2. The auth service creates a Session row and issues a JWT whose "jti"
//     claim is that session's ID.
//  3. The JWT travels in an HttpOnly "token" cookie (or an Authorization:
//     Bearer header for API clients).
//  4. On every request the middleware validates the signature, then asks the
//     auth service whether the session still exists.
//
// WHY BIND THE TOKEN TO A SESSION?
// A bare JWT stays valid until it expires, so "logout" could only delete the
// cookie. Looking the session up on each request costs one indexed query and
// makes logout real: deleting the user's sessions revokes every token.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultIssuer = "travel-blog"
	defaultTTL    = 7 * 24 * time.Hour
)

// ErrTokenExpired is returned by Validate for well-formed tokens past their
// expiry.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// TokenOption customizes a TokenService.
type TokenOption func(*TokenService)

// WithIssuer sets the "iss" claim written and required by the service.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) {
		if issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithTTL sets how long issued tokens (and their sessions) live.
func WithTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	s := &TokenService{secret: []byte(secret), issuer: defaultIssuer, ttl: defaultTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL is the lifetime given to new sessions.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Claims is what a valid token tells us about the caller.
type Claims struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// Issue signs a token for the given session. The token expires at
// expiresAt, which should match the session row.
//
// "sub" carries the user ID, "jti" the session ID.
func (s *TokenService) Issue(userID, sessionID string, expiresAt time.Time) (string, error) {
	if userID == "" || sessionID == "" {
		return "", errors.New("auth: token needs a user and a session")
	}

	now := time.Now()
	c := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Issuer:    s.issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a JWT string.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired
//   - Issuer matches
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
//
// It does NOT check that the session still exists; that needs storage and
// lives in the auth service.
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, errors.New("auth: token has no subject")
	}
	if c.ID == "" {
		return nil, errors.New("auth: token has no session")
	}

	return &Claims{
		UserID:    c.Subject,
		SessionID: c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
