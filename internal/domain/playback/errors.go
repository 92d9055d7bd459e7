package playback

import (
	"errors"
	"fmt"
)

// ErrEmptyCatalog is returned by operations that need at least one song.
var ErrEmptyCatalog = errors.New("playback: catalog is empty")

// ErrUnknownTitle is returned when a title is not in the catalog.
var ErrUnknownTitle = errors.New("playback: title not in catalog")

// IndexError reports an explicit track index outside the catalog.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("playback: index %d out of range [0, %d)", e.Index, e.Len)
}

// SinkRejectedError reports that the audio sink refused to start playback,
// for example because of an autoplay policy or a missing source.
type SinkRejectedError struct {
	Err error
}

func (e *SinkRejectedError) Error() string {
	if e.Err == nil {
		return "playback: sink rejected playback"
	}
	return "playback: sink rejected playback: " + e.Err.Error()
}

func (e *SinkRejectedError) Unwrap() error {
	return e.Err
}
