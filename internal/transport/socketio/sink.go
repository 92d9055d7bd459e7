package socketio

import (
	"math"
	"sync"

	"github.com/vibescape/vibescape-backend/internal/domain/playback"
)

// Emitter sends an event to one connected client.
type Emitter interface {
	Emit(event string, args ...any) error
}

// emitterFunc adapts a function to Emitter.
type emitterFunc func(event string, args ...any) error

func (f emitterFunc) Emit(event string, args ...any) error {
	return f(event, args...)
}

// browserSink is the audio element of a browser tab, driven over the socket.
// Commands are fire-and-forget; the tab answers with sink:* reports that are
// fed to the session and also update the cached playhead here.
type browserSink struct {
	out Emitter

	mu       sync.Mutex
	current  float64
	duration float64
}

func newBrowserSink(out Emitter) *browserSink {
	return &browserSink{out: out}
}

func (b *browserSink) Load(uri string) error {
	b.mu.Lock()
	b.current = 0
	b.duration = 0
	b.mu.Unlock()
	return b.out.Emit("sink:load", map[string]any{"uri": uri})
}

func (b *browserSink) Play() error {
	return b.out.Emit("sink:play")
}

func (b *browserSink) Pause() error {
	return b.out.Emit("sink:pause")
}

func (b *browserSink) SetCurrentTime(seconds float64) error {
	if err := b.out.Emit("sink:seek", map[string]any{"seconds": seconds}); err != nil {
		return err
	}
	b.mu.Lock()
	b.current = seconds
	b.mu.Unlock()
	return nil
}

func (b *browserSink) CurrentTime() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *browserSink) Duration() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.duration
}

// observe records the playhead carried by a report from the tab.
func (b *browserSink) observe(ev playback.SinkEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Type {
	case playback.EventTimeUpdate:
		b.current = finite(ev.CurrentTime)
		if d := finite(ev.Duration); d > 0 {
			b.duration = d
		}
	case playback.EventLoadedMetadata:
		b.duration = finite(ev.Duration)
	case playback.EventEnded:
		b.current = b.duration
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
