package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vibescape/vibescape-backend/internal/domain/catalog"
	"github.com/vibescape/vibescape-backend/internal/domain/history"
	"github.com/vibescape/vibescape-backend/internal/domain/playback"
	"github.com/vibescape/vibescape-backend/internal/domain/session"
)

type fakeSink struct {
	mu      sync.Mutex
	loaded  []string
	plays   int
	current float64
	dur     float64
}

func (f *fakeSink) Load(uri string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = append(f.loaded, uri)
	return nil
}

func (f *fakeSink) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	return nil
}

func (f *fakeSink) Pause() error                   { return nil }
func (f *fakeSink) SetCurrentTime(s float64) error { f.current = s; return nil }
func (f *fakeSink) CurrentTime() float64           { return f.current }
func (f *fakeSink) Duration() float64              { return f.dur }

type stubDetector struct {
	label string
	err   error
	block bool
}

func (d *stubDetector) Detect(ctx context.Context) (string, error) {
	if d.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return d.label, d.err
}

var songs = []catalog.Song{
	{Title: "A", File: "songs/a.mp3", Emotion: "Happy"},
	{Title: "B", File: "songs/b.mp3", Emotion: "Sad"},
	{Title: "C", File: "songs/c.mp3", Emotion: "Happy"},
}

type recorder struct {
	mu      sync.Mutex
	updates []playback.Update
	signal  chan playback.Update
}

func newRecorder() *recorder {
	return &recorder{signal: make(chan playback.Update, 32)}
}

func (r *recorder) publish(u playback.Update) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
	r.signal <- u
}

func (r *recorder) waitFor(t *testing.T, kind playback.InstructionKind) playback.Update {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case u := <-r.signal:
			if u.Has(kind) {
				return u
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", kind)
			return playback.Update{}
		}
	}
}

func startSession(t *testing.T, sink playback.Sink, opts ...session.Option) *session.Session {
	t.Helper()
	s := session.New("s1", sink, opts...)
	s.Start(context.Background())
	t.Cleanup(s.Close)
	return s
}

func TestSessionRunsCommandsInOrder(t *testing.T) {
	sink := &fakeSink{}
	s := startSession(t, sink, session.WithControllerOptions(playback.WithRandom(func(int) int { return 0 })))
	ctx := context.Background()

	if _, err := s.SetCatalog(ctx, songs); err != nil {
		t.Fatalf("SetCatalog failed: %v", err)
	}
	if _, err := s.PlayTrack(ctx, 1); err != nil {
		t.Fatalf("PlayTrack failed: %v", err)
	}
	u, err := s.HandleSinkEvent(ctx, playback.SinkEvent{Type: playback.EventPlaying})
	if err != nil {
		t.Fatalf("HandleSinkEvent failed: %v", err)
	}
	if u.State.State != playback.StatePlaying {
		t.Errorf("expected playing, got %s", u.State.State)
	}

	u, err = s.Next(ctx)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if u.State.CurrentIndex != 2 {
		t.Errorf("expected index 2, got %d", u.State.CurrentIndex)
	}
	if len(sink.loaded) != 2 || sink.loaded[1] != "songs/c.mp3" {
		t.Errorf("unexpected loads: %v", sink.loaded)
	}
}

func TestSessionPublishesUpdates(t *testing.T) {
	rec := newRecorder()
	s := startSession(t, &fakeSink{}, session.WithPublisher(rec.publish))

	if _, err := s.SetCatalog(context.Background(), songs); err != nil {
		t.Fatalf("SetCatalog failed: %v", err)
	}
	u := rec.waitFor(t, playback.CatalogChanged)
	if u.State.CatalogSize != 3 {
		t.Errorf("expected catalog size 3, got %d", u.State.CatalogSize)
	}
}

func TestSessionReturnsControllerErrors(t *testing.T) {
	s := startSession(t, &fakeSink{})
	ctx := context.Background()

	if _, err := s.SelectTrack(ctx, 0); !errors.Is(err, playback.ErrEmptyCatalog) {
		t.Errorf("expected ErrEmptyCatalog, got %v", err)
	}

	s.SetCatalog(ctx, songs)
	_, err := s.SelectTrack(ctx, 7)
	var idxErr *playback.IndexError
	if !errors.As(err, &idxErr) {
		t.Fatalf("expected IndexError, got %v", err)
	}
}

func TestSessionRecordsHistoryPerListener(t *testing.T) {
	store := history.NewStore(history.NewMemoryRepository())
	s := startSession(t, &fakeSink{}, session.WithHistory(store, "guest"))
	ctx := context.Background()

	s.SetCatalog(ctx, songs)
	s.SelectTrack(ctx, 0)
	s.SelectTrack(ctx, 0)

	if err := s.SetListener(ctx, "user-1"); err != nil {
		t.Fatalf("SetListener failed: %v", err)
	}
	s.SelectTrack(ctx, 1)

	guest, _ := store.List(ctx, "guest", 0)
	if len(guest) != 1 || guest[0] != "A" {
		t.Errorf("guest history = %v, want [A]", guest)
	}
	user, _ := store.List(ctx, "user-1", 0)
	if len(user) != 1 || user[0] != "B" {
		t.Errorf("user history = %v, want [B]", user)
	}
}

func TestSessionClosed(t *testing.T) {
	s := session.New("s1", &fakeSink{})
	s.Start(context.Background())
	s.Close()

	if _, err := s.Play(context.Background()); !errors.Is(err, session.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := s.Snapshot(context.Background()); !errors.Is(err, session.ErrClosed) {
		t.Errorf("expected ErrClosed from Snapshot, got %v", err)
	}
}

func TestDetectionPlaysMatchingSong(t *testing.T) {
	rec := newRecorder()
	sink := &fakeSink{}
	s := startSession(t, sink,
		session.WithPublisher(rec.publish),
		session.WithDetector(&stubDetector{label: "Sad"}),
	)
	ctx := context.Background()
	s.SetCatalog(ctx, songs)

	if err := s.StartDetection(ctx); err != nil {
		t.Fatalf("StartDetection failed: %v", err)
	}
	u := rec.waitFor(t, playback.ShowTrack)
	if u.State.CurrentIndex != 1 || !u.State.EmotionMode {
		t.Errorf("expected emotion playback of B, got index %d emotionMode %v", u.State.CurrentIndex, u.State.EmotionMode)
	}
}

func TestDetectionFailurePublishesNotice(t *testing.T) {
	rec := newRecorder()
	s := startSession(t, &fakeSink{},
		session.WithPublisher(rec.publish),
		session.WithDetector(&stubDetector{err: errors.New("camera offline")}),
	)
	ctx := context.Background()
	s.SetCatalog(ctx, songs)

	if err := s.StartDetection(ctx); err != nil {
		t.Fatalf("StartDetection failed: %v", err)
	}
	rec.waitFor(t, playback.Notice)

	snap, _ := s.Snapshot(ctx)
	if snap.State != playback.StateLoaded {
		t.Errorf("expected state unchanged, got %s", snap.State)
	}
}

func TestStopDetectionCancelsScan(t *testing.T) {
	s := startSession(t, &fakeSink{}, session.WithDetector(&stubDetector{block: true}))
	ctx := context.Background()
	s.SetCatalog(ctx, songs)

	if err := s.StartDetection(ctx); err != nil {
		t.Fatalf("StartDetection failed: %v", err)
	}
	u, err := s.StopDetection(ctx)
	if err != nil {
		t.Fatalf("StopDetection failed: %v", err)
	}
	if u.State.EmotionMode {
		t.Error("expected emotion mode off")
	}
}

func TestStartDetectionWithoutDetector(t *testing.T) {
	s := startSession(t, &fakeSink{})
	if err := s.StartDetection(context.Background()); !errors.Is(err, session.ErrNoDetector) {
		t.Errorf("expected ErrNoDetector, got %v", err)
	}
}
