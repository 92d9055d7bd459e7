package socketio

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/vibescape/vibescape-backend/internal/domain/playback"
)

// payload returns the first event argument as an object.
func payload(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	m, _ := args[0].(map[string]any)
	return m
}

func numberArg(args []any, key string) (float64, bool) {
	if len(args) > 0 {
		if v, ok := args[0].(float64); ok {
			return v, true
		}
	}
	v, ok := payload(args)[key].(float64)
	return v, ok
}

// intArg is numberArg restricted to whole numbers.
func intArg(args []any, key string) (int, bool) {
	v, ok := numberArg(args, key)
	if !ok || v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}

func stringArg(args []any, key string) (string, bool) {
	if len(args) > 0 {
		if v, ok := args[0].(string); ok {
			return v, true
		}
	}
	v, ok := payload(args)[key].(string)
	return v, ok
}

// sinkEventFrom converts a sink:* report from the tab.
func sinkEventFrom(name string, args []any) (playback.SinkEvent, error) {
	kind := playback.SinkEventType(strings.TrimPrefix(name, "sink:"))
	ev := playback.SinkEvent{Type: kind}

	switch kind {
	case playback.EventPlaying, playback.EventPaused, playback.EventEnded:
	case playback.EventTimeUpdate:
		ev.CurrentTime, _ = numberArg(args, "currentTime")
		ev.Duration, _ = payload(args)["duration"].(float64)
	case playback.EventLoadedMetadata:
		ev.Duration, _ = numberArg(args, "duration")
	case playback.EventRejected:
		reason, _ := stringArg(args, "reason")
		if reason == "" {
			reason = "playback rejected"
		}
		ev.Err = errors.New(reason)
	default:
		return ev, fmt.Errorf("unknown sink event %q", name)
	}
	return ev, nil
}
