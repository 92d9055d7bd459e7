package catalog

import (
	"strings"

	"github.com/samber/lo"
)

// IndexOf returns the index of the song with the given title, or -1.
func IndexOf(songs []Song, title string) int {
	_, i, _ := lo.FindIndexOf(songs, func(s Song) bool { return s.Title == title })
	return i
}

// Search returns songs whose title, artist or genre contains query,
// case-insensitively. An empty query matches nothing.
func Search(songs []Song, query string) []Song {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	return filter(songs, func(s Song) bool {
		return strings.Contains(strings.ToLower(s.Title), q) ||
			strings.Contains(strings.ToLower(s.Artist), q) ||
			strings.Contains(strings.ToLower(s.Genre), q)
	})
}

// Artists returns the distinct artists in catalog order.
// The artist artwork is taken from the artist's last song in the catalog.
func Artists(songs []Song) []Artist {
	index := make(map[string]int)
	var artists []Artist
	for _, s := range songs {
		if i, ok := index[s.Artist]; ok {
			artists[i].ArtistArt = s.ArtistArt
			continue
		}
		index[s.Artist] = len(artists)
		artists = append(artists, Artist{Name: s.Artist, ArtistArt: s.ArtistArt})
	}
	return artists
}

// ByArtist returns the songs of one artist.
func ByArtist(songs []Song, artist string) []Song {
	return filter(songs, func(s Song) bool { return s.Artist == artist })
}

// ByGenre returns the songs of one genre.
func ByGenre(songs []Song, genre string) []Song {
	return filter(songs, func(s Song) bool { return s.Genre == genre })
}

// ByEmotion returns the indexes of songs tagged with the given emotion.
func ByEmotion(songs []Song, emotion string) []int {
	var idx []int
	for i, s := range songs {
		if s.Emotion == emotion {
			idx = append(idx, i)
		}
	}
	return idx
}

func filter(songs []Song, keep func(Song) bool) []Song {
	return lo.Filter(songs, func(s Song, _ int) bool { return keep(s) })
}
