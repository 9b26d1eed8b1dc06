/*
Package auth issues and verifies bearer tokens and stores user credentials.

PURPOSE:
  The karma engine only needs a stable actor id per request. This package
  turns a username/password into a signed token, and a token back into a
  karma.UserID placed on the request context.

TOKENS:
  HS256 JWTs with claims:
    user_id  karma.UserID
    iat/exp  issued-at and expiry (TTL from config)
    jti      random token id, the revocation key

LOGOUT:
  A revoked jti is rejected by the middleware until the token would have
  expired anyway. Revocations live in the store (RevocationStore).

SEE ALSO:
  - service.go: Signup / login
  - context.go: HTTP middleware and context helpers
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/warp/karma-engine/karma"
)

var ErrInvalidToken = errors.New("invalid token")

// RevocationStore records logged-out tokens.
type RevocationStore interface {
	RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Issuer signs and verifies tokens with a shared secret. A nil Revoked
// disables logout.
type Issuer struct {
	Secret  []byte
	TTL     time.Duration
	Clock   func() time.Time
	Revoked RevocationStore
}

// Session is a verified token.
type Session struct {
	UserID    karma.UserID
	TokenID   string
	ExpiresAt time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{
		Secret: []byte(secret),
		TTL:    ttl,
		Clock:  time.Now,
	}
}

type claims struct {
	UserID karma.UserID `json:"user_id"`
	jwt.RegisteredClaims
}

// Issue returns a signed token for the user.
func (i *Issuer) Issue(id karma.UserID) (string, error) {
	now := i.Clock()
	c := claims{
		UserID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.TTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Parse verifies the token's signature and expiry. Revocation is checked
// separately by Authenticate.
func (i *Issuer) Parse(tokenStr string) (Session, error) {
	var c claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenStr, &c, func(*jwt.Token) (interface{}, error) {
		return i.Secret, nil
	})
	if err != nil || !token.Valid {
		return Session{}, ErrInvalidToken
	}
	if !c.VerifyExpiresAt(i.Clock(), true) {
		return Session{}, ErrInvalidToken
	}
	if c.UserID <= 0 || c.ID == "" {
		return Session{}, ErrInvalidToken
	}
	return Session{UserID: c.UserID, TokenID: c.ID, ExpiresAt: c.ExpiresAt.Time}, nil
}

// Authenticate parses the token and rejects it if it was revoked.
func (i *Issuer) Authenticate(ctx context.Context, tokenStr string) (Session, error) {
	session, err := i.Parse(tokenStr)
	if err != nil {
		return Session{}, err
	}
	if i.Revoked == nil {
		return session, nil
	}
	revoked, err := i.Revoked.IsTokenRevoked(ctx, session.TokenID)
	if err != nil {
		return Session{}, fmt.Errorf("failed to check token revocation: %w", err)
	}
	if revoked {
		return Session{}, ErrInvalidToken
	}
	return session, nil
}
