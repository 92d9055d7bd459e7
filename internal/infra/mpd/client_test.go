package mpd_test

import (
	"errors"
	"testing"

	"github.com/vibescape/vibescape-backend/internal/infra/mpd"
)

// Port 16600 is assumed to have no MPD listening.
const deadPort = 16600

func TestNewClient(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"localhost", 6600, "localhost:6600"},
		{"::1", 6601, "[::1]:6601"},
	}
	for _, tt := range tests {
		if got := mpd.NewClient(tt.host, tt.port, "").Addr(); got != tt.want {
			t.Errorf("Addr() = %q, want %q", got, tt.want)
		}
	}
}

func TestClientConnectFailure(t *testing.T) {
	client := mpd.NewClient("localhost", deadPort, "")

	err := client.Connect()
	if err == nil {
		t.Error("Connect should fail for non-existent server")
		client.Close()
	}
}

func TestClientPingWithoutConnect(t *testing.T) {
	client := mpd.NewClient("localhost", deadPort, "")

	if err := client.Ping(); !errors.Is(err, mpd.ErrNotConnected) {
		t.Errorf("Ping without connection = %v, want ErrNotConnected", err)
	}
}

func TestClientCommandsWithoutServer(t *testing.T) {
	client := mpd.NewClient("localhost", deadPort, "")
	defer client.Close()

	tests := []struct {
		name string
		call func() error
	}{
		{"Status", func() error { _, err := client.Status(); return err }},
		{"Play", func() error { return client.Play(0) }},
		{"Pause", func() error { return client.Pause(true) }},
		{"SeekTo", func() error { return client.SeekTo(10) }},
		{"Replace", func() error { return client.Replace("songs/a.mp3") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); err == nil {
				t.Errorf("%s should fail without a server", tt.name)
			}
		})
	}
}

func TestCloseWithoutConnect(t *testing.T) {
	client := mpd.NewClient("localhost", deadPort, "")
	if err := client.Close(); err != nil {
		t.Errorf("Close should succeed when never connected: %v", err)
	}
}
