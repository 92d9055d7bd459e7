package playback

import (
	"math"
	"math/rand/v2"

	"github.com/rs/zerolog/log"

	"github.com/vibescape/vibescape-backend/internal/domain/catalog"
)

// noTrack marks that nothing is selected.
const noTrack = -1

// Controller is the playback state machine for one listening session.
// It is not safe for concurrent use; callers serialize access.
type Controller struct {
	sink    Sink
	history HistoryRecorder
	intn    func(n int) int

	songs       []catalog.Song
	current     int
	playing     bool
	emotionMode bool

	pending []Instruction
}

// Option configures a Controller.
type Option func(*Controller)

// WithRandom sets the source used to pick emotion matches.
// fn must return a value in [0, n).
func WithRandom(fn func(n int) int) Option {
	return func(c *Controller) {
		c.intn = fn
	}
}

// NewController creates a controller with an empty catalog.
func NewController(sink Sink, history HistoryRecorder, opts ...Option) *Controller {
	c := &Controller{
		sink:    sink,
		history: history,
		intn:    rand.IntN,
		current: noTrack,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.history == nil {
		c.history = HistoryFunc(func(string) {})
	}
	return c
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		State:        c.state(),
		CurrentIndex: c.current,
		IsPlaying:    c.playing,
		EmotionMode:  c.emotionMode,
		CatalogSize:  len(c.songs),
	}
	if c.hasTrack() {
		song := c.songs[c.current]
		s.Current = &song
		s.CurrentTime = finiteOrZero(c.sink.CurrentTime())
		s.Duration = finiteOrZero(c.sink.Duration())
	}
	return s
}

// Catalog returns the catalog in effect.
func (c *Controller) Catalog() []catalog.Song {
	return c.songs
}

func (c *Controller) state() State {
	switch {
	case len(c.songs) == 0:
		return StateIdle
	case c.current == noTrack:
		return StateLoaded
	case c.playing && c.emotionMode:
		return StateEmotionPlaying
	case c.playing:
		return StatePlaying
	default:
		return StatePaused
	}
}

func (c *Controller) hasTrack() bool {
	return c.current != noTrack && c.current < len(c.songs)
}

func (c *Controller) emit(in Instruction) {
	c.pending = append(c.pending, in)
}

func (c *Controller) flush() Update {
	u := Update{State: c.Snapshot(), Instructions: c.pending}
	c.pending = nil
	return u
}

// SetCatalog replaces the catalog. An empty catalog is ignored so that a
// failed or empty refresh keeps the last known songs. The selected track is
// relocated by title; if it disappeared the sink is paused and the
// selection cleared.
func (c *Controller) SetCatalog(songs []catalog.Song) Update {
	if len(songs) == 0 {
		log.Debug().Int("kept", len(c.songs)).Msg("Ignoring empty catalog")
		return c.flush()
	}

	if c.hasTrack() {
		title := c.songs[c.current].Title
		if idx := catalog.IndexOf(songs, title); idx != noTrack {
			c.current = idx
		} else {
			c.dropCurrent(title)
		}
	}

	c.songs = songs
	c.emit(Instruction{Kind: CatalogChanged, Count: len(songs)})
	return c.flush()
}

func (c *Controller) dropCurrent(title string) {
	if c.playing {
		if err := c.sink.Pause(); err != nil {
			log.Warn().Err(err).Msg("Sink failed to pause removed track")
		}
	}
	log.Info().Str("title", title).Msg("Selected track left the catalog")

	c.current = noTrack
	c.playing = false
	c.emotionMode = false
	c.emit(Instruction{Kind: SetPlaying, Playing: false})
	c.emit(Instruction{Kind: Notice, Message: title + " is no longer available"})
}

// SelectTrack loads the track at index without starting it.
func (c *Controller) SelectTrack(index int) (Update, error) {
	if err := c.selectTrack(index); err != nil {
		return c.flush(), err
	}
	return c.flush(), nil
}

func (c *Controller) selectTrack(index int) error {
	if len(c.songs) == 0 {
		return ErrEmptyCatalog
	}
	if index < 0 || index >= len(c.songs) {
		return &IndexError{Index: index, Len: len(c.songs)}
	}

	song := c.songs[index]
	if err := c.sink.Load(song.File); err != nil {
		log.Warn().Err(err).Str("title", song.Title).Msg("Sink failed to load track")
		c.emit(Instruction{Kind: Notice, Message: "Could not load " + song.Title})
		return &SinkRejectedError{Err: err}
	}

	c.current = index
	c.playing = false
	c.history.Append(song.Title)

	log.Debug().Int("index", index).Str("title", song.Title).Msg("Track selected")

	c.emit(Instruction{Kind: ShowTrack, Song: &song})
	c.emit(Instruction{Kind: SetPlaying, Playing: false})
	c.emit(Instruction{Kind: HistoryAppended, Title: song.Title})
	return nil
}

// PlayTrack selects the track at index and starts it, leaving emotion mode.
func (c *Controller) PlayTrack(index int) (Update, error) {
	if err := c.selectTrack(index); err != nil {
		return c.flush(), err
	}
	c.emotionMode = false
	err := c.play()
	return c.flush(), err
}

// PlayTitle selects the song with the given title and starts it.
func (c *Controller) PlayTitle(title string) (Update, error) {
	if len(c.songs) == 0 {
		return c.flush(), ErrEmptyCatalog
	}
	idx := catalog.IndexOf(c.songs, title)
	if idx == noTrack {
		return c.flush(), ErrUnknownTitle
	}
	return c.PlayTrack(idx)
}

// Play asks the sink to start. It is a no-op when nothing is selected.
// isPlaying only changes once the sink reports EventPlaying.
func (c *Controller) Play() (Update, error) {
	err := c.play()
	return c.flush(), err
}

func (c *Controller) play() error {
	if !c.hasTrack() {
		log.Debug().Msg("Play ignored, no track selected")
		return nil
	}
	if err := c.sink.Play(); err != nil {
		c.reject(err)
		return &SinkRejectedError{Err: err}
	}
	return nil
}

func (c *Controller) reject(err error) {
	c.playing = false
	c.emotionMode = false
	log.Warn().Err(err).Int("index", c.current).Msg("Playback rejected by sink")
	c.emit(Instruction{Kind: SetPlaying, Playing: false})
	c.emit(Instruction{Kind: Notice, Message: "Playback could not start"})
}

// Pause asks the sink to pause.
func (c *Controller) Pause() (Update, error) {
	if !c.hasTrack() {
		return c.flush(), nil
	}
	if err := c.sink.Pause(); err != nil {
		log.Warn().Err(err).Msg("Sink failed to pause")
		c.emit(Instruction{Kind: Notice, Message: "Could not pause playback"})
		return c.flush(), err
	}
	return c.flush(), nil
}

// TogglePlayPause leaves emotion mode and plays or pauses depending on what
// the sink last reported.
func (c *Controller) TogglePlayPause() (Update, error) {
	c.emotionMode = false
	if c.playing {
		return c.Pause()
	}
	return c.Play()
}

// Next moves to the following track, wrapping around, and starts it.
func (c *Controller) Next() (Update, error) {
	return c.step(1)
}

// Prev moves to the preceding track, wrapping around, and starts it.
func (c *Controller) Prev() (Update, error) {
	return c.step(-1)
}

func (c *Controller) step(delta int) (Update, error) {
	n := len(c.songs)
	if n == 0 {
		return c.flush(), nil
	}

	var idx int
	switch {
	case c.hasTrack():
		idx = ((c.current+delta)%n + n) % n
	case delta > 0:
		idx = 0
	default:
		idx = n - 1
	}

	if err := c.selectTrack(idx); err != nil {
		return c.flush(), err
	}
	c.emotionMode = false
	err := c.play()
	return c.flush(), err
}

// HandleSinkEvent reconciles the controller with a sink notification.
func (c *Controller) HandleSinkEvent(ev SinkEvent) (Update, error) {
	switch ev.Type {
	case EventPlaying:
		c.playing = true
		c.emit(Instruction{Kind: SetPlaying, Playing: true})
		c.emit(Instruction{Kind: ShowFullPlayer})

	case EventPaused:
		c.playing = false
		c.emit(Instruction{Kind: SetPlaying, Playing: false})

	case EventEnded:
		c.playing = false
		c.emit(Instruction{Kind: SetPlaying, Playing: false})
		if c.emotionMode {
			c.emotionMode = false
			c.emit(Instruction{Kind: PromptResumeDetection})
			return c.flush(), nil
		}
		return c.step(1)

	case EventTimeUpdate:
		c.emit(Instruction{
			Kind:        Progress,
			CurrentTime: finiteOrZero(ev.CurrentTime),
			Duration:    finiteOrZero(ev.Duration),
		})

	case EventLoadedMetadata:
		c.emit(Instruction{Kind: Duration, Duration: finiteOrZero(ev.Duration)})

	case EventRejected:
		c.reject(ev.Err)
		return c.flush(), &SinkRejectedError{Err: ev.Err}

	default:
		log.Debug().Str("event", string(ev.Type)).Msg("Ignoring unknown sink event")
	}
	return c.flush(), nil
}

// SeekRelative moves the playhead by delta seconds, clamped to the track.
// Nothing happens while the duration is unknown or zero.
func (c *Controller) SeekRelative(delta float64) (Update, error) {
	if !c.hasTrack() {
		return c.flush(), nil
	}
	d := c.sink.Duration()
	if !validDuration(d) {
		return c.flush(), nil
	}
	return c.seek(clamp(c.sink.CurrentTime()+delta, 0, d), d)
}

// SeekToFraction moves the playhead to f of the track, f in [0, 1].
func (c *Controller) SeekToFraction(f float64) (Update, error) {
	if !c.hasTrack() || math.IsNaN(f) {
		return c.flush(), nil
	}
	d := c.sink.Duration()
	if !validDuration(d) {
		return c.flush(), nil
	}
	return c.seek(clamp(f, 0, 1)*d, d)
}

func (c *Controller) seek(t, d float64) (Update, error) {
	if err := c.sink.SetCurrentTime(t); err != nil {
		log.Warn().Err(err).Float64("position", t).Msg("Sink failed to seek")
		return c.flush(), err
	}
	c.emit(Instruction{Kind: Progress, CurrentTime: t, Duration: d})
	return c.flush(), nil
}

// EmotionDetected picks a random song tagged with label and plays it in
// emotion mode. With no matching song the state is left unchanged and a
// NoMatch instruction is emitted.
func (c *Controller) EmotionDetected(label string) (Update, error) {
	matches := catalog.ByEmotion(c.songs, label)
	if len(matches) == 0 {
		log.Info().Str("emotion", label).Msg("No song matches detected emotion")
		c.emit(Instruction{Kind: NoMatch, Emotion: label})
		return c.flush(), nil
	}

	idx := matches[c.intn(len(matches))]
	if err := c.selectTrack(idx); err != nil {
		return c.flush(), err
	}
	c.emotionMode = true
	log.Info().Str("emotion", label).Str("title", c.songs[idx].Title).Msg("Playing song for detected emotion")

	err := c.play()
	return c.flush(), err
}

// StopEmotionMode leaves emotion mode without touching playback.
func (c *Controller) StopEmotionMode() Update {
	c.emotionMode = false
	return c.flush()
}

func validDuration(d float64) bool {
	return !math.IsNaN(d) && !math.IsInf(d, 0) && d > 0
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
