// Package socketio provides the Socket.io server for client communication.
package socketio

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/vibescape/vibescape-backend/internal/domain/account"
	"github.com/vibescape/vibescape-backend/internal/domain/emotion"
	"github.com/vibescape/vibescape-backend/internal/domain/history"
	"github.com/vibescape/vibescape-backend/internal/domain/library"
	"github.com/vibescape/vibescape-backend/internal/domain/playback"
	"github.com/vibescape/vibescape-backend/internal/domain/session"
)

// commandTimeout bounds how long a socket handler waits for its session.
const commandTimeout = 5 * time.Second

// TokenParser validates session tokens sent by clients.
type TokenParser interface {
	ParseToken(token string) (*account.Claims, error)
}

// client is one connected socket and the session it drives.
type client struct {
	sock    *socket.Socket
	session *session.Session
	sink    *browserSink // nil when attached to the house session

	mu       sync.Mutex
	listener string
}

func (c *client) getListener() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listener
}

func (c *client) setListener(l string) {
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
}

// Server handles Socket.io connections and events.
//
// In browser mode every connection gets its own session whose sink is the
// tab's audio element. With a house session configured all connections
// share it and the sink reports come from MPD instead.
type Server struct {
	io       *socket.Server
	registry *session.Registry
	history  *history.Store
	tokens   TokenParser
	library  *library.Service
	detector emotion.Detector
	house    *session.Session
	limiter  *SessionLimiter

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	clients map[string]*client
}

// Option configures the Server.
type Option func(*Server)

// WithHistory records plays for every session in store.
func WithHistory(store *history.Store) Option {
	return func(s *Server) {
		s.history = store
	}
}

// WithTokens lets clients authenticate with a login token.
func WithTokens(p TokenParser) Option {
	return func(s *Server) {
		s.tokens = p
	}
}

// WithLibrary enables favourite toggling over the socket.
func WithLibrary(svc *library.Service) Option {
	return func(s *Server) {
		s.library = svc
	}
}

// WithDetector gives browser sessions an emotion detector.
func WithDetector(d emotion.Detector) Option {
	return func(s *Server) {
		s.detector = d
	}
}

// WithHouseSession attaches every connection to one shared session.
// Its updates must be routed to Broadcast.
func WithHouseSession(h *session.Session) Option {
	return func(s *Server) {
		s.house = h
	}
}

// WithMaxSessions caps concurrent browser sessions, evicting the oldest.
func WithMaxSessions(n int) Option {
	return func(s *Server) {
		s.limiter = NewSessionLimiter(n)
	}
}

// NewServer creates a new Socket.io server.
func NewServer(registry *session.Registry, opts ...Option) (*Server, error) {
	ioOpts := socket.DefaultServerOptions()
	ioOpts.SetPingTimeout(20 * time.Second)
	ioOpts.SetPingInterval(25 * time.Second)
	ioOpts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		io:       socket.NewServer(nil, ioOpts),
		registry: registry,
		ctx:      ctx,
		cancel:   cancel,
		clients:  make(map[string]*client),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupHandlers()

	return s, nil
}

// setupHandlers registers all Socket.io event handlers.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		sock := clients[0].(*socket.Socket)
		c := s.attach(sock)
		id := string(sock.Id())

		sock.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				reason, _ = args[0].(string)
			}
			log.Info().Str("id", id).Str("reason", reason).Msg("Client disconnected")
			s.detach(id)
		})

		sock.On("getState", func(args ...any) {
			s.pushState(c)
		})

		sock.On("authenticate", func(args ...any) {
			s.authenticate(c, args)
		})

		s.onCommand(c, "selectTrack", func(ctx context.Context, args []any) (playback.Update, error) {
			i, ok := intArg(args, "index")
			if !ok {
				return playback.Update{}, errBadArgs
			}
			return c.session.SelectTrack(ctx, i)
		})
		s.onCommand(c, "playTrack", func(ctx context.Context, args []any) (playback.Update, error) {
			i, ok := intArg(args, "index")
			if !ok {
				return playback.Update{}, errBadArgs
			}
			return c.session.PlayTrack(ctx, i)
		})
		s.onCommand(c, "selectTitle", func(ctx context.Context, args []any) (playback.Update, error) {
			title, ok := stringArg(args, "title")
			if !ok {
				return playback.Update{}, errBadArgs
			}
			return c.session.PlayTitle(ctx, title)
		})
		s.onCommand(c, "play", func(ctx context.Context, args []any) (playback.Update, error) {
			return c.session.Play(ctx)
		})
		s.onCommand(c, "pause", func(ctx context.Context, args []any) (playback.Update, error) {
			return c.session.Pause(ctx)
		})
		s.onCommand(c, "toggle", func(ctx context.Context, args []any) (playback.Update, error) {
			return c.session.Toggle(ctx)
		})
		s.onCommand(c, "next", func(ctx context.Context, args []any) (playback.Update, error) {
			return c.session.Next(ctx)
		})
		s.onCommand(c, "prev", func(ctx context.Context, args []any) (playback.Update, error) {
			return c.session.Prev(ctx)
		})
		s.onCommand(c, "seekRelative", func(ctx context.Context, args []any) (playback.Update, error) {
			d, ok := numberArg(args, "seconds")
			if !ok {
				return playback.Update{}, errBadArgs
			}
			return c.session.SeekRelative(ctx, d)
		})
		s.onCommand(c, "seekFraction", func(ctx context.Context, args []any) (playback.Update, error) {
			f, ok := numberArg(args, "fraction")
			if !ok {
				return playback.Update{}, errBadArgs
			}
			return c.session.SeekToFraction(ctx, f)
		})
		s.onCommand(c, "emotion", func(ctx context.Context, args []any) (playback.Update, error) {
			label, ok := stringArg(args, "label")
			if !ok {
				return playback.Update{}, errBadArgs
			}
			return c.session.EmotionDetected(ctx, label)
		})
		s.onCommand(c, "stopDetection", func(ctx context.Context, args []any) (playback.Update, error) {
			return c.session.StopDetection(ctx)
		})

		sock.On("startDetection", func(args ...any) {
			ctx, cancel := context.WithTimeout(s.ctx, commandTimeout)
			defer cancel()
			if err := c.session.StartDetection(ctx); err != nil {
				s.notice(c, err)
			}
		})

		sock.On("toggleFavourite", func(args ...any) {
			s.toggleFavourite(c, args)
		})

		for _, name := range []string{"sink:playing", "sink:paused", "sink:ended", "sink:timeupdate", "sink:loadedmetadata", "sink:rejected"} {
			event := name
			sock.On(event, func(args ...any) {
				s.sinkReport(c, event, args)
			})
		}
	})
}

var errBadArgs = errors.New("missing or invalid arguments")

// onCommand registers a handler that runs a session command and reports
// errors back to the caller. Updates reach clients through the publisher.
func (s *Server) onCommand(c *client, event string, run func(ctx context.Context, args []any) (playback.Update, error)) {
	c.sock.On(event, func(args ...any) {
		log.Debug().Str("id", string(c.sock.Id())).Str("event", event).Interface("data", args).Msg("Command")

		ctx, cancel := context.WithTimeout(s.ctx, commandTimeout)
		defer cancel()

		if _, err := run(ctx, args); err != nil {
			log.Debug().Err(err).Str("event", event).Msg("Command failed")
			s.notice(c, err)
		}
	})
}

// attach creates or joins the session for a new connection.
func (s *Server) attach(sock *socket.Socket) *client {
	id := string(sock.Id())
	c := &client{sock: sock, listener: history.GuestListener(id)}

	if s.house != nil {
		c.session = s.house
	} else {
		c.sink = newBrowserSink(emitterFunc(func(event string, args ...any) error {
			sock.Emit(event, args...)
			return nil
		}))

		opts := []session.Option{
			session.WithPublisher(func(u playback.Update) { s.publish(sock, u) }),
		}
		if s.history != nil {
			opts = append(opts, session.WithHistory(s.history, c.listener))
		}
		if s.detector != nil {
			opts = append(opts, session.WithDetector(s.detector))
		}
		c.session = session.New(id, c.sink, opts...)
		c.session.Start(s.ctx)
		s.registry.Add(s.ctx, c.session)
	}

	s.mu.Lock()
	s.clients[id] = c
	s.mu.Unlock()

	log.Info().Str("id", id).Bool("house", s.house != nil).Msg("Client connected")

	if s.limiter != nil && c.sink != nil {
		if evicted := s.limiter.Admit(id); evicted != "" {
			s.evict(evicted)
		}
	}

	go s.pushState(c)
	return c
}

func (s *Server) detach(id string) {
	s.mu.Lock()
	c, ok := s.clients[id]
	delete(s.clients, id)
	s.mu.Unlock()
	if !ok {
		return
	}

	if s.limiter != nil {
		s.limiter.Release(id)
	}
	if c.sink != nil {
		s.registry.Remove(id)
		c.session.Close()
		s.forgetGuest(c.getListener())
	}
}

// forgetGuest drops the in-memory history of an anonymous listener.
func (s *Server) forgetGuest(listener string) {
	if s.history == nil || !history.IsGuest(listener) {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, commandTimeout)
	defer cancel()
	if err := s.history.Clear(ctx, listener); err != nil {
		log.Warn().Err(err).Str("listener", listener).Msg("Failed to drop guest history")
	}
}

func (s *Server) evict(id string) {
	s.mu.RLock()
	c, ok := s.clients[id]
	s.mu.RUnlock()
	if !ok {
		return
	}
	log.Info().Str("id", id).Msg("Evicting oldest session")
	c.sock.Emit("pushInstructions", []playback.Instruction{
		{Kind: playback.Notice, Message: "Session closed, too many listeners"},
	})
	c.sock.Disconnect(true)
}

// publish sends an update to one socket.
func (s *Server) publish(sock *socket.Socket, u playback.Update) {
	sock.Emit("pushState", u.State)
	if len(u.Instructions) > 0 {
		sock.Emit("pushInstructions", u.Instructions)
	}
}

// Broadcast sends an update to every connected client. It is the publisher
// of the house session.
func (s *Server) Broadcast(u playback.Update) {
	s.io.Emit("pushState", u.State)
	if len(u.Instructions) > 0 {
		s.io.Emit("pushInstructions", u.Instructions)
	}
}

func (s *Server) pushState(c *client) {
	ctx, cancel := context.WithTimeout(s.ctx, commandTimeout)
	defer cancel()

	snap, err := c.session.Snapshot(ctx)
	if err != nil {
		log.Warn().Err(err).Str("id", string(c.sock.Id())).Msg("Failed to get state")
		return
	}
	c.sock.Emit("pushState", snap)
}

func (s *Server) notice(c *client, err error) {
	c.sock.Emit("pushInstructions", []playback.Instruction{
		{Kind: playback.Notice, Message: err.Error()},
	})
}

func (s *Server) sinkReport(c *client, event string, args []any) {
	if c.sink == nil {
		// The house session hears from MPD, not from tabs.
		return
	}

	ev, err := sinkEventFrom(event, args)
	if err != nil {
		log.Debug().Err(err).Msg("Ignoring sink report")
		return
	}
	c.sink.observe(ev)

	ctx, cancel := context.WithTimeout(s.ctx, commandTimeout)
	defer cancel()
	if _, err := c.session.HandleSinkEvent(ctx, ev); err != nil {
		var rejected *playback.SinkRejectedError
		if !errors.As(err, &rejected) {
			log.Warn().Err(err).Str("event", event).Msg("Sink report failed")
		}
	}
}

func (s *Server) authenticate(c *client, args []any) {
	if s.tokens == nil {
		return
	}
	token, _ := stringArg(args, "token")
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		s.notice(c, err)
		return
	}

	if err := s.switchListener(c, claims.UserID); err != nil {
		log.Warn().Err(err).Msg("Failed to switch listener")
		return
	}
	log.Info().Str("id", string(c.sock.Id())).Str("user", claims.Username).Msg("Client authenticated")
	c.sock.Emit("authenticated", map[string]any{"username": claims.Username})
}

// switchListener moves c to listener. Plays on an own session are recorded
// under the new listener from then on and the previous guest history is
// dropped.
func (s *Server) switchListener(c *client, listener string) error {
	previous := c.getListener()
	c.setListener(listener)
	if c.sink == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(s.ctx, commandTimeout)
	defer cancel()
	if err := c.session.SetListener(ctx, listener); err != nil {
		return err
	}
	if previous != listener {
		s.forgetGuest(previous)
	}
	return nil
}

func (s *Server) toggleFavourite(c *client, args []any) {
	if s.library == nil {
		return
	}
	listener := c.getListener()
	if history.IsGuest(listener) {
		s.notice(c, account.ErrInvalidToken)
		return
	}
	title, _ := stringArg(args, "title")

	ctx, cancel := context.WithTimeout(s.ctx, commandTimeout)
	defer cancel()

	added, err := s.library.ToggleFavourite(ctx, listener, title)
	if err != nil {
		s.notice(c, err)
		return
	}
	favs, err := s.library.Favourites(ctx, listener)
	if err != nil {
		s.notice(c, err)
		return
	}
	c.sock.Emit("pushFavourites", map[string]any{"title": title, "added": added, "favourites": favs})
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close stops all browser sessions and closes the Socket.io server.
func (s *Server) Close() error {
	s.cancel()

	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[string]*client)
	s.mu.Unlock()

	for id, c := range clients {
		if c.sink != nil {
			s.registry.Remove(id)
			c.session.Close()
		}
	}

	s.io.Close(nil)
	return nil
}
