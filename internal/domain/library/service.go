package library

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Service applies the favourites and playlist rules.
type Service struct {
	repo Repository
}

// NewService creates a new library service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// AddFavourite adds title to the listener's favourites.
// It reports false when the title was already a favourite.
func (s *Service) AddFavourite(ctx context.Context, listener, title string) (bool, error) {
	if strings.TrimSpace(title) == "" {
		return false, ErrEmptyTitle
	}
	added, err := s.repo.AddFavourite(ctx, listener, title)
	if err != nil {
		return false, err
	}
	log.Debug().Str("listener", listener).Str("title", title).Bool("added", added).Msg("AddFavourite")
	return added, nil
}

// RemoveFavourite removes title from the listener's favourites.
func (s *Service) RemoveFavourite(ctx context.Context, listener, title string) (bool, error) {
	removed, err := s.repo.RemoveFavourite(ctx, listener, title)
	if err != nil {
		return false, err
	}
	log.Debug().Str("listener", listener).Str("title", title).Bool("removed", removed).Msg("RemoveFavourite")
	return removed, nil
}

// ToggleFavourite adds title if absent and removes it otherwise.
// It reports whether title is a favourite afterwards.
func (s *Service) ToggleFavourite(ctx context.Context, listener, title string) (bool, error) {
	removed, err := s.RemoveFavourite(ctx, listener, title)
	if err != nil {
		return false, err
	}
	if removed {
		return false, nil
	}
	if _, err := s.AddFavourite(ctx, listener, title); err != nil {
		return false, err
	}
	return true, nil
}

// Favourites lists the listener's favourites.
func (s *Service) Favourites(ctx context.Context, listener string) ([]string, error) {
	return s.repo.Favourites(ctx, listener)
}

// IsFavourite reports whether title is one of the listener's favourites.
func (s *Service) IsFavourite(ctx context.Context, listener, title string) (bool, error) {
	favs, err := s.repo.Favourites(ctx, listener)
	if err != nil {
		return false, err
	}
	return lo.Contains(favs, title), nil
}

// AddToPlaylist adds title to the named playlist. Names are trimmed.
// It reports false when the title was already in the playlist.
func (s *Service) AddToPlaylist(ctx context.Context, listener, name, title string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, ErrEmptyName
	}
	if strings.TrimSpace(title) == "" {
		return false, ErrEmptyTitle
	}
	added, err := s.repo.AddToPlaylist(ctx, listener, name, title)
	if err != nil {
		return false, err
	}
	log.Info().Str("listener", listener).Str("playlist", name).Str("title", title).Bool("added", added).Msg("AddToPlaylist")
	return added, nil
}

// Playlists lists the listener's playlists.
func (s *Service) Playlists(ctx context.Context, listener string) ([]Playlist, error) {
	return s.repo.Playlists(ctx, listener)
}
