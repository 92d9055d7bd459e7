// Package mpd drives a Music Player Daemon as the house-speaker audio sink.
package mpd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"
)

// ErrNotConnected is returned when no MPD connection is open.
var ErrNotConnected = errors.New("mpd: not connected")

// Client is a single MPD control connection. Commands are serialized and a
// stale connection is redialed before the next command.
type Client struct {
	addr     string
	password string

	mu      sync.Mutex
	conn    *mpd.Client
	watcher *mpd.Watcher
}

// NewClient creates a client for the MPD at host:port. It does not dial.
func NewClient(host string, port int, password string) *Client {
	return &Client{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		password: password,
	}
}

// Addr returns the MPD address.
func (c *Client) Addr() string {
	return c.addr
}

// Connect dials MPD unless a connection is already open.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}
	conn, err := c.dial()
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

func (c *Client) dial() (*mpd.Client, error) {
	log.Info().Str("addr", c.addr).Msg("Connecting to MPD")

	conn, err := mpd.Dial("tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MPD: %w", err)
	}
	if c.password != "" {
		if err := conn.Command("password %s", c.password).OK(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("MPD authentication failed: %w", err)
		}
	}

	log.Info().Str("addr", c.addr).Msg("Connected to MPD")
	return conn, nil
}

// do runs fn on a live connection, redialing first if the connection is
// missing or no longer answers.
func (c *Client) do(fn func(*mpd.Client) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.conn.Ping() != nil {
		log.Warn().Str("addr", c.addr).Msg("MPD connection lost, redialing")
		c.conn.Close()
		c.conn = nil
	}
	if c.conn == nil {
		conn, err := c.dial()
		if err != nil {
			return err
		}
		c.conn = conn
	}
	return fn(c.conn)
}

// Close closes the connection and the watcher.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.watcher != nil {
		c.watcher.Close()
		c.watcher = nil
	}
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Ping checks the open connection without redialing.
func (c *Client) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.Ping()
}

// Status returns the MPD status attributes.
func (c *Client) Status() (mpd.Attrs, error) {
	var attrs mpd.Attrs
	err := c.do(func(m *mpd.Client) error {
		var err error
		attrs, err = m.Status()
		return err
	})
	return attrs, err
}

// Play starts playback at queue position pos.
func (c *Client) Play(pos int) error {
	return c.do(func(m *mpd.Client) error { return m.Play(pos) })
}

// Pause sets the pause state.
func (c *Client) Pause(pause bool) error {
	return c.do(func(m *mpd.Client) error { return m.Pause(pause) })
}

// SeekTo moves the playhead of the current song to seconds.
// MPD seeks with whole-second precision.
func (c *Client) SeekTo(seconds float64) error {
	return c.do(func(m *mpd.Client) error {
		status, err := m.Status()
		if err != nil {
			return err
		}
		pos, err := strconv.Atoi(status["song"])
		if err != nil {
			return errors.New("mpd: no song loaded")
		}
		return m.Seek(pos, int(seconds))
	})
}

// Replace empties the queue and adds uri as its only entry.
func (c *Client) Replace(uri string) error {
	return c.do(func(m *mpd.Client) error {
		if err := m.Clear(); err != nil {
			return fmt.Errorf("clear queue: %w", err)
		}
		if err := m.Add(uri); err != nil {
			return fmt.Errorf("add %s: %w", uri, err)
		}
		return nil
	})
}

// Watch opens an idle connection and forwards the names of changed
// subsystems until ctx is done or the client is closed.
func (c *Client) Watch(ctx context.Context, subsystems ...string) (<-chan string, error) {
	w, err := mpd.NewWatcher("tcp", c.addr, c.password, subsystems...)
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	c.mu.Lock()
	if c.watcher != nil {
		c.watcher.Close()
	}
	c.watcher = w
	c.mu.Unlock()

	changes := make(chan string, 10)
	go func() {
		defer close(changes)
		for {
			select {
			case <-ctx.Done():
				return
			case name, ok := <-w.Event:
				if !ok {
					return
				}
				select {
				case changes <- name:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Error:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("MPD watcher error")
				time.Sleep(time.Second)
			}
		}
	}()

	return changes, nil
}
