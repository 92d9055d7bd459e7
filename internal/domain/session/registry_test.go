package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vibescape/vibescape-backend/internal/domain/catalog"
	"github.com/vibescape/vibescape-backend/internal/domain/playback"
	"github.com/vibescape/vibescape-backend/internal/domain/session"
)

func TestRegistryDistributesCatalog(t *testing.T) {
	ctx := context.Background()
	reg := session.NewRegistry()

	first := startSession(t, &fakeSink{})
	reg.Add(ctx, first)

	reg.SetCatalog(ctx, songs)

	snap, err := first.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.CatalogSize != len(songs) {
		t.Errorf("expected %d songs, got %d", len(songs), snap.CatalogSize)
	}

	// A late session is seeded with the latest catalog.
	late := session.New("s2", &fakeSink{})
	late.Start(ctx)
	t.Cleanup(late.Close)
	reg.Add(ctx, late)

	snap, _ = late.Snapshot(ctx)
	if snap.CatalogSize != len(songs) {
		t.Errorf("late session: expected %d songs, got %d", len(songs), snap.CatalogSize)
	}
	if reg.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", reg.Len())
	}
}

func TestRegistryIgnoresEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	reg := session.NewRegistry()
	reg.SetCatalog(ctx, songs)
	reg.SetCatalog(ctx, nil)

	if len(reg.Songs()) != len(songs) {
		t.Errorf("expected last known catalog to be kept")
	}
}

func TestRegistryRemove(t *testing.T) {
	ctx := context.Background()
	reg := session.NewRegistry()
	s := startSession(t, &fakeSink{})
	reg.Add(ctx, s)

	if got := reg.Remove(s.ID()); got != s {
		t.Error("expected Remove to return the session")
	}
	if _, ok := reg.Get(s.ID()); ok {
		t.Error("session still registered")
	}
}

func TestRegistryNotify(t *testing.T) {
	ctx := context.Background()
	reg := session.NewRegistry()
	rec := newRecorder()
	s := startSession(t, &fakeSink{}, session.WithPublisher(rec.publish))
	reg.Add(ctx, s)
	s.SelectTrack(ctx, 0)

	reg.Notify(ctx, "Song list unavailable")

	u := rec.waitFor(t, playback.Notice)
	if u.Instructions[0].Message != "Song list unavailable" {
		t.Errorf("unexpected notice %q", u.Instructions[0].Message)
	}
	if u.State.CurrentIndex != 0 {
		t.Errorf("notice changed the selection: %+v", u.State)
	}
}

func TestRefreshFailureReachesSessions(t *testing.T) {
	ctx := context.Background()
	reg := session.NewRegistry()
	rec := newRecorder()
	s := startSession(t, &fakeSink{}, session.WithPublisher(rec.publish))
	reg.Add(ctx, s)
	reg.SetCatalog(ctx, songs)

	fail := false
	refresher := catalog.NewRefresher(catalog.ProviderFunc(func(ctx context.Context) ([]catalog.Song, error) {
		if fail {
			return nil, errors.New("network down")
		}
		return songs, nil
	}))
	refresher.OnUpdate(func(list []catalog.Song) { reg.SetCatalog(ctx, list) })
	refresher.OnFailure(func(err error) { reg.Notify(ctx, session.CatalogUnavailable) })

	fail = true
	if err := refresher.Refresh(ctx); err == nil {
		t.Fatal("expected refresh error")
	}
	rec.waitFor(t, playback.Notice)

	snap, _ := s.Snapshot(ctx)
	if snap.CatalogSize != len(songs) {
		t.Errorf("expected %d cached songs, got %d", len(songs), snap.CatalogSize)
	}
}
