package socketio_test

import (
	"testing"

	"github.com/vibescape/vibescape-backend/internal/domain/playback"
	"github.com/vibescape/vibescape-backend/internal/domain/session"
	"github.com/vibescape/vibescape-backend/internal/transport/socketio"
)

func TestNewServer(t *testing.T) {
	server, err := socketio.NewServer(session.NewRegistry(), socketio.WithMaxSessions(4))
	if err != nil {
		t.Errorf("NewServer should not return error: %v", err)
	}
	if server == nil {
		t.Fatal("NewServer should return a non-nil server")
	}
	if server.ClientCount() != 0 {
		t.Errorf("expected no clients, got %d", server.ClientCount())
	}
	if err := server.Close(); err != nil {
		t.Errorf("Close should not error: %v", err)
	}
}

func TestServerBroadcastWithoutClients(t *testing.T) {
	server, err := socketio.NewServer(session.NewRegistry())
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	// Broadcast should not panic with no clients
	server.Broadcast(playback.Update{
		Instructions: []playback.Instruction{{Kind: playback.Notice, Message: "hello"}},
	})
}
