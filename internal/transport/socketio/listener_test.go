package socketio

import (
	"context"
	"testing"

	"github.com/vibescape/vibescape-backend/internal/domain/history"
	"github.com/vibescape/vibescape-backend/internal/domain/session"
)

func newGuestClient(t *testing.T, s *Server, id string) *client {
	t.Helper()
	listener := history.GuestListener(id)
	sink := newBrowserSink(&recordingEmitter{})
	sess := session.New(id, sink, session.WithHistory(s.history, listener))
	sess.Start(context.Background())
	t.Cleanup(sess.Close)

	c := &client{session: sess, sink: sink, listener: listener}
	s.mu.Lock()
	s.clients[id] = c
	s.mu.Unlock()
	return c
}

func TestDetachDropsGuestHistory(t *testing.T) {
	repo := history.NewMemoryRepository()
	store := history.NewStore(repo)
	s, err := NewServer(session.NewRegistry(), WithHistory(store))
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer s.Close()

	newGuestClient(t, s, "abc")
	newGuestClient(t, s, "def")
	ctx := context.Background()
	store.Append(ctx, history.GuestListener("abc"), "Sunrise")
	store.Append(ctx, history.GuestListener("def"), "Rain")

	s.detach("abc")

	if repo.Len() != 1 {
		t.Fatalf("expected 1 listener left, got %d", repo.Len())
	}
	if got, _ := store.List(ctx, history.GuestListener("def"), 0); len(got) != 1 {
		t.Errorf("other guest lost history: %v", got)
	}
	if s.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", s.ClientCount())
	}
}

func TestSwitchListenerDropsGuestHistory(t *testing.T) {
	repo := history.NewMemoryRepository()
	store := history.NewStore(repo)
	s, err := NewServer(session.NewRegistry(), WithHistory(store))
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer s.Close()

	c := newGuestClient(t, s, "abc")
	ctx := context.Background()
	store.Append(ctx, history.GuestListener("abc"), "Sunrise")

	if err := s.switchListener(c, "user-1"); err != nil {
		t.Fatalf("switchListener failed: %v", err)
	}

	if c.getListener() != "user-1" {
		t.Errorf("listener = %q, want user-1", c.getListener())
	}
	if repo.Len() != 0 {
		t.Errorf("guest history kept after login, %d listeners", repo.Len())
	}
}
