package mpd

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"

	"github.com/vibescape/vibescape-backend/internal/domain/playback"
)

const (
	// DefaultProgressInterval is how often progress is reported while playing.
	DefaultProgressInterval = time.Second

	// DefaultDebounceWindow collapses watcher bursts.
	DefaultDebounceWindow = 50 * time.Millisecond
)

// Player is the part of the MPD client the sink drives.
type Player interface {
	Status() (mpd.Attrs, error)
	Play(pos int) error
	Pause(pause bool) error
	SeekTo(seconds float64) error
	Replace(uri string) error
}

// status is the part of the MPD status the sink tracks.
type status struct {
	state    string
	elapsed  float64
	duration float64
	err      string
	at       time.Time
}

func parseStatus(a mpd.Attrs) status {
	s := status{
		state: a["state"],
		err:   a["error"],
	}
	s.elapsed, _ = strconv.ParseFloat(a["elapsed"], 64)
	if d, err := strconv.ParseFloat(a["duration"], 64); err == nil {
		s.duration = d
	} else if _, total, ok := strings.Cut(a["time"], ":"); ok {
		s.duration, _ = strconv.ParseFloat(total, 64)
	}
	return s
}

// transitions returns the sink events implied by moving from prev to next.
// A stop after play means the track ran out, unless MPD reported an error.
func transitions(prev, next status) []playback.SinkEvent {
	var evs []playback.SinkEvent

	failed := next.err != "" && next.err != prev.err
	if failed {
		evs = append(evs, playback.SinkEvent{Type: playback.EventRejected, Err: errors.New(next.err)})
	}
	if next.duration > 0 && next.duration != prev.duration {
		evs = append(evs, playback.SinkEvent{Type: playback.EventLoadedMetadata, Duration: next.duration})
	}

	switch {
	case next.state == "play" && prev.state != "play":
		evs = append(evs, playback.SinkEvent{Type: playback.EventPlaying})
	case prev.state == "play" && next.state == "pause":
		evs = append(evs, playback.SinkEvent{Type: playback.EventPaused})
	case prev.state == "play" && next.state == "stop" && !failed:
		evs = append(evs, playback.SinkEvent{Type: playback.EventEnded})
	}
	return evs
}

// Sink implements playback.Sink on top of MPD. State changes are observed
// from MPD status and delivered through Run.
type Sink struct {
	player    Player
	mediaBase *url.URL
	now       func() time.Time

	mu       sync.Mutex
	observed status
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithMediaBase resolves relative song URIs against base, so MPD can stream
// uploads served over HTTP.
func WithMediaBase(base string) SinkOption {
	return func(s *Sink) {
		if base == "" {
			return
		}
		u, err := url.Parse(strings.TrimRight(base, "/") + "/")
		if err != nil {
			log.Warn().Err(err).Str("base", base).Msg("Ignoring invalid media base")
			return
		}
		s.mediaBase = u
	}
}

// NewSink creates an MPD sink.
func NewSink(player Player, opts ...SinkOption) *Sink {
	s := &Sink{
		player:   player,
		now:      time.Now,
		observed: status{state: "stop"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) resolve(uri string) string {
	if s.mediaBase == nil {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil || u.IsAbs() {
		return uri
	}
	return s.mediaBase.ResolveReference(u).String()
}

// Load replaces the MPD queue with uri. The stop caused by clearing the queue
// is absorbed so it is not reported as the end of a track.
func (s *Sink) Load(uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.player.Replace(s.resolve(uri)); err != nil {
		return err
	}
	s.observed = status{state: "stop", at: s.now()}
	return nil
}

// Play starts or resumes the loaded song.
func (s *Sink) Play() error {
	s.mu.Lock()
	paused := s.observed.state == "pause"
	s.mu.Unlock()

	if paused {
		return s.player.Pause(false)
	}
	return s.player.Play(0)
}

// Pause pauses playback.
func (s *Sink) Pause() error {
	return s.player.Pause(true)
}

// SetCurrentTime seeks within the loaded song.
func (s *Sink) SetCurrentTime(seconds float64) error {
	if err := s.player.SeekTo(seconds); err != nil {
		return err
	}
	s.mu.Lock()
	s.observed.elapsed = seconds
	s.observed.at = s.now()
	s.mu.Unlock()
	return nil
}

// CurrentTime returns the playhead, extrapolated while playing.
func (s *Sink) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.observed.elapsed
	if s.observed.state == "play" && !s.observed.at.IsZero() {
		t += s.now().Sub(s.observed.at).Seconds()
	}
	if s.observed.duration > 0 && t > s.observed.duration {
		t = s.observed.duration
	}
	return t
}

// Duration returns the length of the loaded song, 0 while unknown.
func (s *Sink) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observed.duration
}

// Observe reads the MPD status and returns the events since the last
// observation.
func (s *Sink) Observe() ([]playback.SinkEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attrs, err := s.player.Status()
	if err != nil {
		return nil, err
	}
	next := parseStatus(attrs)
	next.at = s.now()

	evs := transitions(s.observed, next)
	s.observed = next
	return evs, nil
}

func (s *Sink) progress() (playback.SinkEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.observed.state != "play" {
		return playback.SinkEvent{}, false
	}
	return playback.SinkEvent{
		Type:        playback.EventTimeUpdate,
		CurrentTime: s.observed.elapsed,
		Duration:    s.observed.duration,
	}, true
}

// Run observes MPD on every watcher change and at each progress tick, and
// hands the resulting events to emit. It returns when ctx is cancelled or the
// watch channel closes. emit is only called from the Run goroutine.
func (s *Sink) Run(ctx context.Context, changes <-chan string, interval time.Duration, emit func(playback.SinkEvent)) {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}

	refresh := make(chan struct{}, 1)
	debouncer := NewDebouncer(DefaultDebounceWindow, func() {
		select {
		case refresh <- struct{}{}:
		default:
		}
	})
	defer debouncer.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	observe := func() {
		evs, err := s.Observe()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read MPD status")
			return
		}
		for _, ev := range evs {
			emit(ev)
		}
	}

	log.Info().Dur("interval", interval).Msg("MPD sink started")
	observe()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("MPD sink stopped")
			return
		case subsystem, ok := <-changes:
			if !ok {
				log.Warn().Msg("MPD watcher closed")
				return
			}
			log.Debug().Str("subsystem", subsystem).Msg("MPD change")
			debouncer.Trigger()
		case <-refresh:
			observe()
		case <-ticker.C:
			observe()
			if ev, ok := s.progress(); ok {
				emit(ev)
			}
		}
	}
}
