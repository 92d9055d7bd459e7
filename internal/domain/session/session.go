// Package session runs one playback controller per listening session.
//
// The controller is not safe for concurrent use. A Session owns it and runs
// every command and every sink event on a single goroutine, in arrival order.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/vibescape/vibescape-backend/internal/domain/catalog"
	"github.com/vibescape/vibescape-backend/internal/domain/emotion"
	"github.com/vibescape/vibescape-backend/internal/domain/history"
	"github.com/vibescape/vibescape-backend/internal/domain/playback"
)

// ErrClosed is returned for commands sent to a stopped session.
var ErrClosed = errors.New("session closed")

// ErrNoDetector is returned by StartDetection when no detector is configured.
var ErrNoDetector = errors.New("emotion detection unavailable")

// Command is a controller call executed on the session goroutine.
type Command func(c *playback.Controller) (playback.Update, error)

// PublishFunc receives every update produced by the session.
type PublishFunc func(u playback.Update)

// Session serializes access to one playback controller.
type Session struct {
	id       string
	ctrl     *playback.Controller
	history  *history.Store
	detector emotion.Detector
	publish  PublishFunc
	ctrlOpts []playback.Option

	// Only touched on the session goroutine.
	listener     string
	stopDetector context.CancelFunc
	scanSeq      int

	jobs chan func(ctx context.Context)
	done chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
}

// Option configures a Session.
type Option func(*Session)

// WithHistory records selections in store under listener.
func WithHistory(store *history.Store, listener string) Option {
	return func(s *Session) {
		s.history = store
		s.listener = listener
	}
}

// WithDetector sets the emotion detector used by StartDetection.
func WithDetector(d emotion.Detector) Option {
	return func(s *Session) {
		s.detector = d
	}
}

// WithPublisher sets the update callback. It runs on the session goroutine
// and must not call back into the session synchronously.
func WithPublisher(fn PublishFunc) Option {
	return func(s *Session) {
		s.publish = fn
	}
}

// WithControllerOptions passes options to the underlying controller.
func WithControllerOptions(opts ...playback.Option) Option {
	return func(s *Session) {
		s.ctrlOpts = append(s.ctrlOpts, opts...)
	}
}

// New creates a session driving sink. Call Start before sending commands.
func New(id string, sink playback.Sink, opts ...Option) *Session {
	s := &Session{
		id:      id,
		publish: func(playback.Update) {},
		jobs:    make(chan func(ctx context.Context)),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctrl = playback.NewController(sink, playback.HistoryFunc(s.recordHistory), s.ctrlOpts...)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Start runs the session goroutine until ctx is cancelled or Close is called.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
	log.Debug().Str("session", s.id).Msg("Session started")
}

// Close stops the session and waits for its goroutine to exit.
func (s *Session) Close() {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}
	cancel()
	<-s.done
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			if s.stopDetector != nil {
				s.stopDetector()
			}
			log.Debug().Str("session", s.id).Msg("Session stopped")
			return
		case job := <-s.jobs:
			job(ctx)
		}
	}
}

// post hands job to the session goroutine without waiting for it to run.
func (s *Session) post(ctx context.Context, job func(ctx context.Context)) error {
	select {
	case s.jobs <- job:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Exec runs cmd on the session goroutine, publishes the resulting update and
// returns it.
func (s *Session) Exec(ctx context.Context, cmd Command) (playback.Update, error) {
	type result struct {
		u   playback.Update
		err error
	}
	ch := make(chan result, 1)

	err := s.post(ctx, func(context.Context) {
		u, err := cmd(s.ctrl)
		s.publish(u)
		ch <- result{u, err}
	})
	if err != nil {
		return playback.Update{}, err
	}

	select {
	case r := <-ch:
		return r.u, r.err
	case <-s.done:
		return playback.Update{}, ErrClosed
	case <-ctx.Done():
		return playback.Update{}, ctx.Err()
	}
}

// Snapshot returns the controller state without publishing.
func (s *Session) Snapshot(ctx context.Context) (playback.Snapshot, error) {
	ch := make(chan playback.Snapshot, 1)
	if err := s.post(ctx, func(context.Context) { ch <- s.ctrl.Snapshot() }); err != nil {
		return playback.Snapshot{}, err
	}
	select {
	case snap := <-ch:
		return snap, nil
	case <-s.done:
		return playback.Snapshot{}, ErrClosed
	case <-ctx.Done():
		return playback.Snapshot{}, ctx.Err()
	}
}

// SetListener switches the identity history is recorded under, for example
// after the listener logs in.
func (s *Session) SetListener(ctx context.Context, listener string) error {
	ch := make(chan struct{})
	if err := s.post(ctx, func(context.Context) {
		s.listener = listener
		close(ch)
	}); err != nil {
		return err
	}
	select {
	case <-ch:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) recordHistory(title string) {
	if s.history == nil || s.listener == "" {
		return
	}
	// Runs on the session goroutine inside a controller call.
	if _, err := s.history.Append(context.Background(), s.listener, title); err != nil {
		log.Error().Err(err).Str("session", s.id).Str("title", title).Msg("Failed to record history")
	}
}

// SetCatalog replaces the controller catalog.
func (s *Session) SetCatalog(ctx context.Context, songs []catalog.Song) (playback.Update, error) {
	return s.Exec(ctx, func(c *playback.Controller) (playback.Update, error) {
		return c.SetCatalog(songs), nil
	})
}

// SelectTrack loads the track at index without starting it.
func (s *Session) SelectTrack(ctx context.Context, index int) (playback.Update, error) {
	return s.Exec(ctx, func(c *playback.Controller) (playback.Update, error) {
		return c.SelectTrack(index)
	})
}

// PlayTrack selects and starts the track at index.
func (s *Session) PlayTrack(ctx context.Context, index int) (playback.Update, error) {
	return s.Exec(ctx, func(c *playback.Controller) (playback.Update, error) {
		return c.PlayTrack(index)
	})
}

// PlayTitle selects and starts the song with the given title.
func (s *Session) PlayTitle(ctx context.Context, title string) (playback.Update, error) {
	return s.Exec(ctx, func(c *playback.Controller) (playback.Update, error) {
		return c.PlayTitle(title)
	})
}

// Play starts the selected track.
func (s *Session) Play(ctx context.Context) (playback.Update, error) {
	return s.Exec(ctx, (*playback.Controller).Play)
}

// Pause pauses playback.
func (s *Session) Pause(ctx context.Context) (playback.Update, error) {
	return s.Exec(ctx, (*playback.Controller).Pause)
}

// Toggle plays or pauses.
func (s *Session) Toggle(ctx context.Context) (playback.Update, error) {
	return s.Exec(ctx, (*playback.Controller).TogglePlayPause)
}

// Next plays the following track.
func (s *Session) Next(ctx context.Context) (playback.Update, error) {
	return s.Exec(ctx, (*playback.Controller).Next)
}

// Prev plays the preceding track.
func (s *Session) Prev(ctx context.Context) (playback.Update, error) {
	return s.Exec(ctx, (*playback.Controller).Prev)
}

// SeekRelative moves the playhead by delta seconds.
func (s *Session) SeekRelative(ctx context.Context, delta float64) (playback.Update, error) {
	return s.Exec(ctx, func(c *playback.Controller) (playback.Update, error) {
		return c.SeekRelative(delta)
	})
}

// SeekToFraction moves the playhead to a fraction of the track.
func (s *Session) SeekToFraction(ctx context.Context, f float64) (playback.Update, error) {
	return s.Exec(ctx, func(c *playback.Controller) (playback.Update, error) {
		return c.SeekToFraction(f)
	})
}

// Notify publishes msg as a notice without changing playback state.
func (s *Session) Notify(ctx context.Context, msg string) error {
	_, err := s.Exec(ctx, func(c *playback.Controller) (playback.Update, error) {
		return playback.Update{
			State:        c.Snapshot(),
			Instructions: []playback.Instruction{{Kind: playback.Notice, Message: msg}},
		}, nil
	})
	return err
}

// HandleSinkEvent delivers a sink notification to the controller.
func (s *Session) HandleSinkEvent(ctx context.Context, ev playback.SinkEvent) (playback.Update, error) {
	return s.Exec(ctx, func(c *playback.Controller) (playback.Update, error) {
		return c.HandleSinkEvent(ev)
	})
}

// EmotionDetected plays a song matching label in emotion mode.
func (s *Session) EmotionDetected(ctx context.Context, label string) (playback.Update, error) {
	return s.Exec(ctx, func(c *playback.Controller) (playback.Update, error) {
		return c.EmotionDetected(label)
	})
}
