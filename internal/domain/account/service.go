package account

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the bcrypt work factor for password hashes.
	BcryptCost = 10

	// TokenTTL is the lifetime of a login token.
	TokenTTL = 24 * time.Hour

	// ResetTTL is the lifetime of a password reset token.
	ResetTTL = 10 * time.Minute
)

// Claims are the login token claims.
type Claims struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service manages user accounts.
type Service struct {
	repo    Repository
	secret  []byte
	baseURL string
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithBaseURL sets the origin used in password reset links.
func WithBaseURL(u string) Option {
	return func(s *Service) {
		s.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates an account service signing tokens with secret.
func NewService(repo Repository, secret []byte, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		secret:  secret,
		baseURL: "http://localhost:3030",
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a new user.
func (s *Service) Register(ctx context.Context, username, email, password string) error {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return ErrMissingFields
	}

	if _, err := s.repo.FindByUsernameOrEmail(ctx, username, email); err == nil {
		return ErrUserExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	u := User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return err
	}

	log.Info().Str("username", username).Msg("User registered")
	return nil
}

// Login checks the credentials and returns a signed token and the username.
func (s *Service) Login(ctx context.Context, email, password string) (string, string, error) {
	u, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrNotFound) {
		return "", "", ErrInvalidCredentials
	}
	if err != nil {
		return "", "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", "", ErrInvalidCredentials
	}

	token, err := s.issueToken(u)
	if err != nil {
		return "", "", err
	}
	log.Info().Str("username", u.Username).Msg("User logged in")
	return token, u.Username, nil
}

func (s *Service) issueToken(u User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:   u.ID,
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a login token and returns its claims.
func (s *Service) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ForgotPassword creates a reset token for the user with the given email and
// returns the reset link. Unknown emails return an empty link and no error so
// callers cannot probe for accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	u, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)

	u.ResetTokenHash = hashToken(token)
	u.ResetExpires = s.now().Add(ResetTTL)
	if err := s.repo.UpdateUser(ctx, u); err != nil {
		return "", err
	}

	log.Info().Str("username", u.Username).Msg("Password reset requested")
	return s.baseURL + "/reset-password.html?token=" + token, nil
}

// ResetPassword sets a new password using a reset token.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" || password == "" {
		return ErrInvalidResetToken
	}
	u, err := s.repo.FindByResetToken(ctx, hashToken(token), s.now())
	if errors.Is(err, ErrNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return err
	}

	if err := s.setPassword(&u, password); err != nil {
		return err
	}
	u.ResetTokenHash = ""
	u.ResetExpires = time.Time{}
	if err := s.repo.UpdateUser(ctx, u); err != nil {
		return err
	}

	log.Info().Str("username", u.Username).Msg("Password reset")
	return nil
}

// Profile returns the profile of a user.
func (s *Service) Profile(ctx context.Context, id string) (Profile, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return Profile{ID: u.ID, Username: u.Username, Email: u.Email}, nil
}

// UpdateProfile changes username and email. Empty values are left unchanged.
func (s *Service) UpdateProfile(ctx context.Context, id, username, email string) (Profile, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}

	if v := strings.TrimSpace(username); v != "" {
		u.Username = v
	}
	if v := strings.TrimSpace(email); v != "" {
		u.Email = v
	}

	other, err := s.repo.FindByUsernameOrEmail(ctx, u.Username, u.Email)
	switch {
	case err == nil && other.ID != u.ID:
		return Profile{}, ErrUserExists
	case err != nil && !errors.Is(err, ErrNotFound):
		return Profile{}, err
	}

	if err := s.repo.UpdateUser(ctx, u); err != nil {
		return Profile{}, err
	}
	return Profile{ID: u.ID, Username: u.Username, Email: u.Email}, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	if err := s.setPassword(&u, next); err != nil {
		return err
	}
	return s.repo.UpdateUser(ctx, u)
}

func (s *Service) setPassword(u *User, password string) error {
	if password == "" {
		return ErrMissingFields
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
