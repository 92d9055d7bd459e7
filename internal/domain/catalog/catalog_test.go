package catalog_test

import (
	"testing"

	"github.com/vibescape/vibescape-backend/internal/domain/catalog"
)

func sampleSongs() []catalog.Song {
	return []catalog.Song{
		{Title: "Sunrise", Artist: "Aurora", Genre: "Pop", Emotion: "Happy", ArtistArt: "artistpic/aurora1.png"},
		{Title: "Rainfall", Artist: "Nimbus", Genre: "Lo-Fi", Emotion: "Sad", ArtistArt: "artistpic/nimbus.png"},
		{Title: "Daybreak", Artist: "Aurora", Genre: "Pop", Emotion: "Happy", ArtistArt: "artistpic/aurora2.png"},
		{Title: "Thunder", Artist: "Storm", Genre: "Rock", Emotion: "Angry", ArtistArt: "artistpic/storm.png"},
	}
}

func TestIndexOf(t *testing.T) {
	songs := sampleSongs()

	if got := catalog.IndexOf(songs, "Daybreak"); got != 2 {
		t.Errorf("IndexOf(Daybreak) = %d, want 2", got)
	}
	if got := catalog.IndexOf(songs, "Missing"); got != -1 {
		t.Errorf("IndexOf(Missing) = %d, want -1", got)
	}
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"by title", "rain", []string{"Rainfall"}},
		{"by artist case insensitive", "AURORA", []string{"Sunrise", "Daybreak"}},
		{"by genre", "rock", []string{"Thunder"}},
		{"surrounding spaces", "  lo-fi ", []string{"Rainfall"}},
		{"empty query", "   ", nil},
		{"no match", "jazz", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := catalog.Search(sampleSongs(), tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("Search(%q) returned %d songs, want %d", tt.query, len(got), len(tt.want))
			}
			for i, s := range got {
				if s.Title != tt.want[i] {
					t.Errorf("result[%d] = %q, want %q", i, s.Title, tt.want[i])
				}
			}
		})
	}
}

func TestArtists(t *testing.T) {
	artists := catalog.Artists(sampleSongs())

	if len(artists) != 3 {
		t.Fatalf("expected 3 artists, got %d", len(artists))
	}
	if artists[0].Name != "Aurora" || artists[1].Name != "Nimbus" || artists[2].Name != "Storm" {
		t.Errorf("unexpected artist order: %+v", artists)
	}
	if artists[0].ArtistArt != "artistpic/aurora2.png" {
		t.Errorf("expected artwork of the last Aurora song, got %q", artists[0].ArtistArt)
	}
}

func TestByArtistAndGenre(t *testing.T) {
	songs := sampleSongs()

	if got := catalog.ByArtist(songs, "Aurora"); len(got) != 2 {
		t.Errorf("ByArtist(Aurora) returned %d songs, want 2", len(got))
	}
	if got := catalog.ByGenre(songs, "Rock"); len(got) != 1 || got[0].Title != "Thunder" {
		t.Errorf("ByGenre(Rock) = %+v", got)
	}
	if got := catalog.ByGenre(songs, "Jazz"); len(got) != 0 {
		t.Errorf("ByGenre(Jazz) returned %d songs, want 0", len(got))
	}
}

func TestByEmotion(t *testing.T) {
	idx := catalog.ByEmotion(sampleSongs(), "Happy")
	if len(idx) != 2 || idx[0] != 0 || idx[1] != 2 {
		t.Errorf("ByEmotion(Happy) = %v, want [0 2]", idx)
	}
	if idx := catalog.ByEmotion(sampleSongs(), "Surprised"); len(idx) != 0 {
		t.Errorf("ByEmotion(Surprised) = %v, want empty", idx)
	}
}
