// Package account provides registration, login and password management.
package account

import (
	"context"
	"errors"
	"time"
)

// Domain errors.
var (
	ErrNotFound           = errors.New("user not found")
	ErrUserExists         = errors.New("user with that email or username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidResetToken  = errors.New("token is invalid or has expired")
	ErrInvalidToken       = errors.New("invalid or expired session token")
	ErrMissingFields      = errors.New("username, email and password are required")
)

// User is a registered listener.
type User struct {
	ID             string
	Username       string
	Email          string
	PasswordHash   string
	ResetTokenHash string
	ResetExpires   time.Time
	CreatedAt      time.Time
}

// Profile is the public part of a user.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Repository persists users.
type Repository interface {
	CreateUser(ctx context.Context, u User) error
	UpdateUser(ctx context.Context, u User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	// FindByUsernameOrEmail returns any user matching either value.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (User, error)
	// FindByResetToken returns the user holding tokenHash if it expires after now.
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (User, error)
}
