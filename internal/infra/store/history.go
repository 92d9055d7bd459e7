package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Front implements history.Repository.
func (d *DB) Front(ctx context.Context, listener string) (string, bool, error) {
	db, err := d.conn()
	if err != nil {
		return "", false, err
	}

	var title string
	err = db.QueryRowContext(ctx,
		"SELECT title FROM history WHERE listener = ? ORDER BY seq DESC LIMIT 1", listener,
	).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query history front: %w", err)
	}
	return title, true, nil
}

// Push implements history.Repository.
func (d *DB) Push(ctx context.Context, listener, title string, playedAt time.Time) error {
	db, err := d.conn()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		"INSERT INTO history (listener, title, played_at) VALUES (?, ?, ?)",
		listener, title, formatTime(playedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert history: %w", err)
	}
	return nil
}

// List implements history.Repository.
func (d *DB) List(ctx context.Context, listener string, limit int) ([]string, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}

	query := "SELECT title FROM history WHERE listener = ? ORDER BY seq DESC"
	args := []any{listener}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return queryStrings(ctx, db, query, args...)
}

// Clear implements history.Repository.
func (d *DB) Clear(ctx context.Context, listener string) error {
	db, err := d.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM history WHERE listener = ?", listener); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

func queryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
