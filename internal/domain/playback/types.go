// Package playback provides the playback controller: the state machine that
// owns the current track, the play/pause state and the emotion mode.
package playback

import "github.com/vibescape/vibescape-backend/internal/domain/catalog"

// State is the externally visible controller state.
type State string

// Controller states.
const (
	StateIdle           State = "idle"
	StateLoaded         State = "loaded"
	StatePaused         State = "paused"
	StatePlaying        State = "playing"
	StateEmotionPlaying State = "emotion_playing"
)

// Sink is the audio output the controller drives. Play may succeed and still
// be rejected later; the sink then reports EventRejected.
type Sink interface {
	Load(uri string) error
	Play() error
	Pause() error
	SetCurrentTime(seconds float64) error
	CurrentTime() float64
	Duration() float64
}

// SinkEventType identifies a sink notification.
type SinkEventType string

// Sink notifications.
const (
	EventPlaying        SinkEventType = "playing"
	EventPaused         SinkEventType = "paused"
	EventEnded          SinkEventType = "ended"
	EventTimeUpdate     SinkEventType = "timeupdate"
	EventLoadedMetadata SinkEventType = "loadedmetadata"
	EventRejected       SinkEventType = "rejected"
)

// SinkEvent is a notification from the sink.
type SinkEvent struct {
	Type        SinkEventType
	CurrentTime float64
	Duration    float64
	Err         error
}

// HistoryRecorder persists selected titles.
type HistoryRecorder interface {
	Append(title string)
}

// HistoryFunc adapts a function to HistoryRecorder.
type HistoryFunc func(title string)

// Append calls f.
func (f HistoryFunc) Append(title string) {
	f(title)
}

// InstructionKind identifies a UI update.
type InstructionKind string

// UI instructions emitted by the controller.
const (
	ShowTrack             InstructionKind = "showTrack"
	SetPlaying            InstructionKind = "setPlaying"
	ShowFullPlayer        InstructionKind = "showFullPlayer"
	Progress              InstructionKind = "progress"
	Duration              InstructionKind = "duration"
	HistoryAppended       InstructionKind = "historyAppended"
	CatalogChanged        InstructionKind = "catalogChanged"
	NoMatch               InstructionKind = "noMatch"
	PromptResumeDetection InstructionKind = "promptResumeDetection"
	Notice                InstructionKind = "notice"
)

// Instruction tells the rendering layer what to display.
type Instruction struct {
	Kind        InstructionKind `json:"kind"`
	Song        *catalog.Song   `json:"song,omitempty"`
	Playing     bool            `json:"playing"`
	CurrentTime float64         `json:"currentTime,omitempty"`
	Duration    float64         `json:"duration,omitempty"`
	Title       string          `json:"title,omitempty"`
	Emotion     string          `json:"emotion,omitempty"`
	Count       int             `json:"count,omitempty"`
	Message     string          `json:"message,omitempty"`
}

// Snapshot is a copy of the controller state.
type Snapshot struct {
	State        State         `json:"state"`
	CurrentIndex int           `json:"currentIndex"`
	Current      *catalog.Song `json:"current,omitempty"`
	IsPlaying    bool          `json:"isPlaying"`
	EmotionMode  bool          `json:"emotionMode"`
	CatalogSize  int           `json:"catalogSize"`
	CurrentTime  float64       `json:"currentTime"`
	Duration     float64       `json:"duration"`
}

// Update is the result of a controller call: the new state and the UI
// instructions it produced, in order.
type Update struct {
	State        Snapshot      `json:"state"`
	Instructions []Instruction `json:"instructions"`
}

// Has reports whether the update contains an instruction of the given kind.
func (u Update) Has(kind InstructionKind) bool {
	for _, in := range u.Instructions {
		if in.Kind == kind {
			return true
		}
	}
	return false
}
