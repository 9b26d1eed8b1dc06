package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/warp/karma-engine/karma"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

const (
	minUsernameLen = 3
	maxUsernameLen = 150
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt input limit
)

// Service registers users and logs them in.
type Service struct {
	Users  karma.UserStore
	Issuer *Issuer
	Cost   int
}

func NewService(users karma.UserStore, issuer *Issuer) *Service {
	return &Service{Users: users, Issuer: issuer, Cost: bcrypt.DefaultCost}
}

// Signup creates the user and returns a token for it.
func (s *Service) Signup(ctx context.Context, username, password string) (karma.User, string, error) {
	username = strings.TrimSpace(username)
	if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
		return karma.User{}, "", &karma.ValidationError{Field: "username", Message: fmt.Sprintf("username must be %d-%d characters", minUsernameLen, maxUsernameLen)}
	}
	if n := len(password); n < minPasswordLen || n > maxPasswordLen {
		return karma.User{}, "", &karma.ValidationError{Field: "password", Message: fmt.Sprintf("password must be %d-%d bytes", minPasswordLen, maxPasswordLen)}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.Cost)
	if err != nil {
		return karma.User{}, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.Users.CreateUser(ctx, username, string(hash))
	if err != nil {
		return karma.User{}, "", err
	}

	token, err := s.Issuer.Issue(user.ID)
	if err != nil {
		return karma.User{}, "", err
	}
	return user, token, nil
}

// Login verifies the password and returns a fresh token.
func (s *Service) Login(ctx context.Context, username, password string) (karma.User, string, error) {
	user, err := s.Users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, karma.ErrUserNotFound) {
		return karma.User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return karma.User{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return karma.User{}, "", ErrInvalidCredentials
	}

	token, err := s.Issuer.Issue(user.ID)
	if err != nil {
		return karma.User{}, "", err
	}
	return user, token, nil
}

// Logout revokes the session's token. Other tokens of the same user stay
// valid.
func (s *Service) Logout(ctx context.Context, session Session) error {
	if session.TokenID == "" {
		return ErrInvalidToken
	}
	if s.Issuer.Revoked == nil {
		return errors.New("token revocation is not configured")
	}
	return s.Issuer.Revoked.RevokeToken(ctx, session.TokenID, session.ExpiresAt)
}
