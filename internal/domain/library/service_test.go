package library

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
)

// mockRepository is an in-memory Repository for testing.
type mockRepository struct {
	favourites map[string][]string
	playlists  map[string]map[string][]string
	err        error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		favourites: make(map[string][]string),
		playlists:  make(map[string]map[string][]string),
	}
}

func (m *mockRepository) AddFavourite(ctx context.Context, listener, title string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for _, t := range m.favourites[listener] {
		if t == title {
			return false, nil
		}
	}
	m.favourites[listener] = append(m.favourites[listener], title)
	return true, nil
}

func (m *mockRepository) RemoveFavourite(ctx context.Context, listener, title string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	favs := m.favourites[listener]
	for i, t := range favs {
		if t == title {
			m.favourites[listener] = append(favs[:i], favs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepository) Favourites(ctx context.Context, listener string) ([]string, error) {
	return m.favourites[listener], m.err
}

func (m *mockRepository) AddToPlaylist(ctx context.Context, listener, name, title string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.playlists[listener] == nil {
		m.playlists[listener] = make(map[string][]string)
	}
	for _, t := range m.playlists[listener][name] {
		if t == title {
			return false, nil
		}
	}
	m.playlists[listener][name] = append(m.playlists[listener][name], title)
	return true, nil
}

func (m *mockRepository) Playlists(ctx context.Context, listener string) ([]Playlist, error) {
	var out []Playlist
	for name, titles := range m.playlists[listener] {
		out = append(out, Playlist{Name: name, Titles: titles})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, m.err
}

func TestAddFavouriteNoDuplicates(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	added, err := svc.AddFavourite(ctx, "alice", "Sunrise")
	if err != nil || !added {
		t.Fatalf("first add: added=%v err=%v", added, err)
	}
	added, err = svc.AddFavourite(ctx, "alice", "Sunrise")
	if err != nil || added {
		t.Fatalf("second add: added=%v err=%v", added, err)
	}

	favs, _ := svc.Favourites(ctx, "alice")
	if !reflect.DeepEqual(favs, []string{"Sunrise"}) {
		t.Errorf("expected [Sunrise], got %v", favs)
	}
}

func TestAddFavouriteRejectsEmptyTitle(t *testing.T) {
	svc := NewService(newMockRepository())
	if _, err := svc.AddFavourite(context.Background(), "alice", "  "); !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("expected ErrEmptyTitle, got %v", err)
	}
}

func TestToggleFavourite(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	on, err := svc.ToggleFavourite(ctx, "alice", "Rainfall")
	if err != nil || !on {
		t.Fatalf("toggle on: on=%v err=%v", on, err)
	}
	if fav, _ := svc.IsFavourite(ctx, "alice", "Rainfall"); !fav {
		t.Error("expected Rainfall to be a favourite")
	}

	on, err = svc.ToggleFavourite(ctx, "alice", "Rainfall")
	if err != nil || on {
		t.Fatalf("toggle off: on=%v err=%v", on, err)
	}
	if fav, _ := svc.IsFavourite(ctx, "alice", "Rainfall"); fav {
		t.Error("expected Rainfall removed from favourites")
	}
}

func TestAddToPlaylist(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	tests := []struct {
		name      string
		playlist  string
		title     string
		wantAdded bool
		wantErr   error
	}{
		{"creates playlist", "Chill", "Rainfall", true, nil},
		{"trims name", "  Chill ", "Sunrise", true, nil},
		{"duplicate title", "Chill", "Rainfall", false, nil},
		{"empty name", "   ", "Rainfall", false, ErrEmptyName},
		{"empty title", "Chill", "", false, ErrEmptyTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			added, err := svc.AddToPlaylist(ctx, "alice", tt.playlist, tt.title)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if added != tt.wantAdded {
				t.Errorf("added = %v, want %v", added, tt.wantAdded)
			}
		})
	}

	playlists, _ := svc.Playlists(ctx, "alice")
	if len(playlists) != 1 || !reflect.DeepEqual(playlists[0].Titles, []string{"Rainfall", "Sunrise"}) {
		t.Errorf("unexpected playlists: %+v", playlists)
	}
}

func TestRepositoryErrorsPropagate(t *testing.T) {
	repo := newMockRepository()
	repo.err = errors.New("db locked")
	svc := NewService(repo)

	if _, err := svc.ToggleFavourite(context.Background(), "alice", "X"); !errors.Is(err, repo.err) {
		t.Errorf("expected repository error, got %v", err)
	}
}
