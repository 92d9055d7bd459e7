package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vibescape/vibescape-backend/internal/domain/catalog"
)

const songColumns = "id, title, artist, genre, emotion, file, art, artist_art, upload_date"

// Fetch implements catalog.Provider. Songs are returned in upload order.
func (d *DB) Fetch(ctx context.Context) ([]catalog.Song, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT "+songColumns+" FROM songs ORDER BY upload_date, rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	var songs []catalog.Song
	for rows.Next() {
		s, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, s)
	}
	return songs, rows.Err()
}

// CreateSong stores a new song. Missing artwork falls back to the defaults;
// ID and UploadDate are assigned when empty.
func (d *DB) CreateSong(ctx context.Context, s catalog.Song) (catalog.Song, error) {
	db, err := d.conn()
	if err != nil {
		return catalog.Song{}, err
	}

	s.Title = strings.TrimSpace(s.Title)
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Art == "" {
		s.Art = catalog.DefaultArt
	}
	if s.ArtistArt == "" {
		s.ArtistArt = catalog.DefaultArtistArt
	}
	if s.UploadDate.IsZero() {
		s.UploadDate = d.now()
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO songs (`+songColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Title, s.Artist, s.Genre, s.Emotion, s.File, s.Art, s.ArtistArt, formatTime(s.UploadDate))
	if isUniqueViolation(err) {
		return catalog.Song{}, catalog.ErrDuplicateTitle
	}
	if err != nil {
		return catalog.Song{}, fmt.Errorf("failed to insert song: %w", err)
	}

	log.Info().Str("id", s.ID).Str("title", s.Title).Msg("Song stored")
	return s, nil
}

// GetSong returns the song with id.
func (d *DB) GetSong(ctx context.Context, id string) (catalog.Song, error) {
	db, err := d.conn()
	if err != nil {
		return catalog.Song{}, err
	}

	row := db.QueryRowContext(ctx, "SELECT "+songColumns+" FROM songs WHERE id = ?", id)
	s, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Song{}, catalog.ErrSongNotFound
	}
	return s, err
}

// DeleteSong removes the song with id and returns what was deleted.
func (d *DB) DeleteSong(ctx context.Context, id string) (catalog.Song, error) {
	s, err := d.GetSong(ctx, id)
	if err != nil {
		return catalog.Song{}, err
	}

	db, err := d.conn()
	if err != nil {
		return catalog.Song{}, err
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM songs WHERE id = ?", id); err != nil {
		return catalog.Song{}, fmt.Errorf("failed to delete song: %w", err)
	}

	log.Info().Str("id", id).Str("title", s.Title).Msg("Song deleted")
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSong(row rowScanner) (catalog.Song, error) {
	var s catalog.Song
	var uploaded string
	err := row.Scan(&s.ID, &s.Title, &s.Artist, &s.Genre, &s.Emotion, &s.File, &s.Art, &s.ArtistArt, &uploaded)
	if err != nil {
		return catalog.Song{}, err
	}
	s.UploadDate = parseTime(uploaded)
	return s, nil
}
