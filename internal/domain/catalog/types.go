// Package catalog provides the song catalog and its refresh policy.
package catalog

import (
	"context"
	"errors"
	"time"
)

// Song store errors.
var (
	ErrSongNotFound   = errors.New("song not found")
	ErrDuplicateTitle = errors.New("a song with that title already exists")
)

// Default artwork paths used when an upload carries no image.
const (
	DefaultArt       = "songpic/default.png"
	DefaultArtistArt = "artistpic/default.png"
)

// Song is a single catalog entry. Title is unique and acts as the key.
type Song struct {
	ID         string    `json:"_id"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Genre      string    `json:"genre"`
	Emotion    string    `json:"emotion"`
	File       string    `json:"file"`
	Art        string    `json:"art"`
	ArtistArt  string    `json:"artistArt"`
	UploadDate time.Time `json:"uploadDate"`
}

// Artist is a catalog artist with the artwork of its last song.
type Artist struct {
	Name      string `json:"artist"`
	ArtistArt string `json:"artistArt"`
}

// Provider supplies the full ordered catalog.
type Provider interface {
	Fetch(ctx context.Context) ([]Song, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) ([]Song, error)

// Fetch calls f.
func (f ProviderFunc) Fetch(ctx context.Context) ([]Song, error) {
	return f(ctx)
}
