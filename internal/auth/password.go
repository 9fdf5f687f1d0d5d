package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserNotFound is what a UserLookup returns for an unknown email.
	ErrUserNotFound = errors.New("user not found")
)

// Credentials is what a player presents to log in.
type Credentials struct {
	Email    string
	Password string
}

// Identity is an authenticated player.
type Identity struct {
	UserID string
	Name   string
	Email  string
}

// Authenticator exchanges credentials for an identity. The server depends
// on this interface only, so the strategy can be swapped.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (Identity, error)
}

// UserLookup finds a user and their bcrypt password hash by email.
type UserLookup interface {
	UserByEmail(ctx context.Context, email string) (Identity, string, error)
}

// PasswordAuthenticator checks email/password pairs against stored bcrypt
// hashes.
type PasswordAuthenticator struct {
	users UserLookup
}

func NewPasswordAuthenticator(users UserLookup) *PasswordAuthenticator {
	return &PasswordAuthenticator{users: users}
}

func (a *PasswordAuthenticator) Authenticate(ctx context.Context, creds Credentials) (Identity, error) {
	email := NormalizeEmail(creds.Email)
	if email == "" || creds.Password == "" {
		return Identity{}, ErrInvalidCredentials
	}

	id, hash, err := a.users.UserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return Identity{}, fmt.Errorf("looking up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)); err != nil {
		return Identity{}, ErrInvalidCredentials
	}
	return id, nil
}

// HashPassword returns the bcrypt hash stored for a new user.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(h), nil
}

func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
