package mpd

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCollapsesBurst(t *testing.T) {
	var calls int32
	d := NewDebouncer(50*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Trigger()
	}
	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 callback, got %d", got)
	}
}

func TestDebouncerSeparateWindows(t *testing.T) {
	var calls int32
	d := NewDebouncer(30*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	defer d.Stop()

	d.Trigger()
	time.Sleep(80 * time.Millisecond)
	d.Trigger()
	time.Sleep(80 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected 2 callbacks, got %d", got)
	}
}

func TestDebouncerStopPreventsCallback(t *testing.T) {
	var calls int32
	d := NewDebouncer(30*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })

	d.Trigger()
	d.Stop()
	d.Trigger()
	time.Sleep(80 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("expected no callbacks after Stop, got %d", got)
	}
}
