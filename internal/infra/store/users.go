package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vibescape/vibescape-backend/internal/domain/account"
)

const userColumns = "id, username, email, password_hash, reset_token_hash, reset_expires, created_at"

// CreateUser implements account.Repository.
func (d *DB) CreateUser(ctx context.Context, u account.User) error {
	db, err := d.conn()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Username, u.Email, u.PasswordHash, nullString(u.ResetTokenHash), nullTime(u.ResetExpires), formatTime(u.CreatedAt))
	if isUniqueViolation(err) {
		return account.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	log.Debug().Str("id", u.ID).Str("username", u.Username).Msg("User stored")
	return nil
}

// UpdateUser implements account.Repository.
func (d *DB) UpdateUser(ctx context.Context, u account.User) error {
	db, err := d.conn()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `
		UPDATE users SET username = ?, email = ?, password_hash = ?, reset_token_hash = ?, reset_expires = ?
		WHERE id = ?
	`, u.Username, u.Email, u.PasswordHash, nullString(u.ResetTokenHash), nullTime(u.ResetExpires), u.ID)
	if isUniqueViolation(err) {
		return account.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return account.ErrNotFound
	}
	return nil
}

// FindByID implements account.Repository.
func (d *DB) FindByID(ctx context.Context, id string) (account.User, error) {
	return d.findUser(ctx, "id = ?", id)
}

// FindByEmail implements account.Repository.
func (d *DB) FindByEmail(ctx context.Context, email string) (account.User, error) {
	return d.findUser(ctx, "email = ?", email)
}

// FindByUsernameOrEmail implements account.Repository.
func (d *DB) FindByUsernameOrEmail(ctx context.Context, username, email string) (account.User, error) {
	return d.findUser(ctx, "username = ? OR email = ?", username, email)
}

// FindByResetToken implements account.Repository.
func (d *DB) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (account.User, error) {
	return d.findUser(ctx, "reset_token_hash = ? AND reset_expires > ?", tokenHash, formatTime(now))
}

func (d *DB) findUser(ctx context.Context, where string, args ...any) (account.User, error) {
	db, err := d.conn()
	if err != nil {
		return account.User{}, err
	}

	var (
		u                  account.User
		resetHash, resetAt sql.NullString
		created            string
	)
	err = db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", args...).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &resetHash, &resetAt, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return account.User{}, account.ErrNotFound
	}
	if err != nil {
		return account.User{}, fmt.Errorf("failed to query user: %w", err)
	}

	u.ResetTokenHash = resetHash.String
	if resetAt.Valid {
		u.ResetExpires = parseTime(resetAt.String)
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}
