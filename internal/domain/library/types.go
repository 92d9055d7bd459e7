// Package library provides a listener's favourites and playlists.
package library

import (
	"context"
	"errors"
)

// ErrEmptyName is returned for a playlist without a name.
var ErrEmptyName = errors.New("playlist name is required")

// ErrEmptyTitle is returned when no song title is given.
var ErrEmptyTitle = errors.New("song title is required")

// Playlist is a named, ordered list of song titles.
type Playlist struct {
	Name   string   `json:"name"`
	Titles []string `json:"titles"`
}

// Repository persists favourites and playlists per listener.
type Repository interface {
	// AddFavourite stores title, reporting false if it was already there.
	AddFavourite(ctx context.Context, listener, title string) (bool, error)
	// RemoveFavourite deletes title, reporting false if it was not there.
	RemoveFavourite(ctx context.Context, listener, title string) (bool, error)
	// Favourites returns titles in the order they were added.
	Favourites(ctx context.Context, listener string) ([]string, error)

	// AddToPlaylist appends title to the named playlist, creating it when
	// needed, and reports false if the title was already in it.
	AddToPlaylist(ctx context.Context, listener, name, title string) (bool, error)
	// Playlists returns all playlists of the listener ordered by name.
	Playlists(ctx context.Context, listener string) ([]Playlist, error)
}
