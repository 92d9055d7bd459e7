package mpd

import (
	"sync"
	"time"
)

// Debouncer collapses bursts of watcher events into one callback. MPD
// reports several "player" changes for a single track switch.
type Debouncer struct {
	window   time.Duration
	callback func()

	mu      sync.Mutex
	pending bool
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer with the given window duration.
func NewDebouncer(window time.Duration, callback func()) *Debouncer {
	return &Debouncer{
		window:   window,
		callback: callback,
	}
}

// Trigger records a change. The callback runs once the window elapses
// without further triggers.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	fire := d.pending && !d.stopped
	d.pending = false
	d.mu.Unlock()

	if fire && d.callback != nil {
		d.callback()
	}
}

// Stop prevents any further callbacks from firing.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = false
}
