package store

import (
	"context"
	"fmt"

	"github.com/vibescape/vibescape-backend/internal/domain/library"
)

// AddFavourite implements library.Repository.
func (d *DB) AddFavourite(ctx context.Context, listener, title string) (bool, error) {
	db, err := d.conn()
	if err != nil {
		return false, err
	}

	res, err := db.ExecContext(ctx,
		"INSERT OR IGNORE INTO favourites (listener, title) VALUES (?, ?)", listener, title)
	if err != nil {
		return false, fmt.Errorf("failed to add favourite: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RemoveFavourite implements library.Repository.
func (d *DB) RemoveFavourite(ctx context.Context, listener, title string) (bool, error) {
	db, err := d.conn()
	if err != nil {
		return false, err
	}

	res, err := db.ExecContext(ctx,
		"DELETE FROM favourites WHERE listener = ? AND title = ?", listener, title)
	if err != nil {
		return false, fmt.Errorf("failed to remove favourite: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Favourites implements library.Repository.
func (d *DB) Favourites(ctx context.Context, listener string) ([]string, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}
	return queryStrings(ctx, db, "SELECT title FROM favourites WHERE listener = ? ORDER BY seq", listener)
}

// AddToPlaylist implements library.Repository.
func (d *DB) AddToPlaylist(ctx context.Context, listener, name, title string) (bool, error) {
	db, err := d.conn()
	if err != nil {
		return false, err
	}

	res, err := db.ExecContext(ctx,
		"INSERT OR IGNORE INTO playlist_items (listener, name, title) VALUES (?, ?, ?)", listener, name, title)
	if err != nil {
		return false, fmt.Errorf("failed to add playlist item: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Playlists implements library.Repository.
func (d *DB) Playlists(ctx context.Context, listener string) ([]library.Playlist, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		"SELECT name, title FROM playlist_items WHERE listener = ? ORDER BY name, seq", listener)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	playlists := []library.Playlist{}
	for rows.Next() {
		var name, title string
		if err := rows.Scan(&name, &title); err != nil {
			return nil, err
		}
		if n := len(playlists); n == 0 || playlists[n-1].Name != name {
			playlists = append(playlists, library.Playlist{Name: name})
		}
		last := &playlists[len(playlists)-1]
		last.Titles = append(last.Titles, title)
	}
	return playlists, rows.Err()
}
