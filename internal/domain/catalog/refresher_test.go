package catalog_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vibescape/vibescape-backend/internal/domain/catalog"
)

// scriptedProvider returns the queued results in order.
type scriptedProvider struct {
	mu      sync.Mutex
	results []providerResult
	calls   int
}

type providerResult struct {
	songs []catalog.Song
	err   error
}

func (p *scriptedProvider) Fetch(ctx context.Context) ([]catalog.Song, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.results) == 0 {
		return nil, errors.New("no more results")
	}
	r := p.results[0]
	p.results = p.results[1:]
	return r.songs, r.err
}

func TestRefresherKeepsLastKnownCatalog(t *testing.T) {
	good := sampleSongs()
	provider := &scriptedProvider{results: []providerResult{
		{songs: good},
		{err: errors.New("network down")},
		{songs: []catalog.Song{}},
	}}
	r := catalog.NewRefresher(provider)

	var updates int
	var failures []error
	r.OnUpdate(func(songs []catalog.Song) { updates++ })
	r.OnFailure(func(err error) { failures = append(failures, err) })

	ctx := context.Background()
	if err := r.Refresh(ctx); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	if err := r.Refresh(ctx); err == nil {
		t.Error("expected error from failing provider")
	}
	if err := r.Refresh(ctx); !errors.Is(err, catalog.ErrEmptyCatalog) {
		t.Errorf("expected ErrEmptyCatalog, got %v", err)
	}

	songs, fetchedAt := r.Songs()
	if len(songs) != len(good) {
		t.Errorf("expected last known catalog of %d songs, got %d", len(good), len(songs))
	}
	if fetchedAt.IsZero() {
		t.Error("expected fetch time to be recorded")
	}
	if updates != 1 {
		t.Errorf("expected 1 update callback, got %d", updates)
	}
	if len(failures) != 2 {
		t.Errorf("expected 2 failure callbacks, got %d", len(failures))
	}
}

func TestRefresherFirstLoadFailureLeavesEmptyCatalog(t *testing.T) {
	provider := &scriptedProvider{results: []providerResult{{err: errors.New("timeout")}}}
	r := catalog.NewRefresher(provider)

	if err := r.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if songs, _ := r.Songs(); len(songs) != 0 {
		t.Errorf("expected empty catalog, got %d songs", len(songs))
	}
}

func TestRefresherAppliesTimeout(t *testing.T) {
	provider := catalog.ProviderFunc(func(ctx context.Context) ([]catalog.Song, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	r := catalog.NewRefresher(provider, catalog.WithFetchTimeout(20*time.Millisecond))

	start := time.Now()
	err := r.Refresh(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("refresh did not honour the fetch timeout")
	}
}

func TestRefresherStartStop(t *testing.T) {
	provider := &scriptedProvider{results: []providerResult{
		{songs: sampleSongs()},
		{songs: sampleSongs()},
		{songs: sampleSongs()},
	}}
	r := catalog.NewRefresher(provider, catalog.WithRefreshInterval(10*time.Millisecond))

	updated := make(chan struct{}, 10)
	r.OnUpdate(func(songs []catalog.Song) { updated <- struct{}{} })

	done := make(chan struct{})
	go func() {
		r.Start(context.Background())
		close(done)
	}()

	select {
	case <-updated:
	case <-time.After(time.Second):
		t.Fatal("refresher did not fetch on start")
	}

	r.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop")
	}
}

func TestRefresherSerializesOverlappingRefreshes(t *testing.T) {
	stale := []catalog.Song{{Title: "Old"}}
	fresh := []catalog.Song{{Title: "Old"}, {Title: "New"}}

	var (
		mu       sync.Mutex
		calls    int
		inFlight int
		maxSeen  int
	)
	entered := make(chan struct{}, 2)
	release := make(chan struct{})

	r := catalog.NewRefresher(catalog.ProviderFunc(func(ctx context.Context) ([]catalog.Song, error) {
		mu.Lock()
		calls++
		call := calls
		inFlight++
		maxSeen = max(maxSeen, inFlight)
		mu.Unlock()
		defer func() {
			mu.Lock()
			inFlight--
			mu.Unlock()
		}()

		entered <- struct{}{}
		if call == 1 {
			<-release
			return stale, nil
		}
		return fresh, nil
	}))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.Refresh(context.Background())
	}()
	<-entered
	go func() {
		defer wg.Done()
		r.Refresh(context.Background())
	}()

	select {
	case <-entered:
		t.Fatal("second fetch started while the first was running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("expected one fetch at a time, saw %d", maxSeen)
	}
	if got, _ := r.Songs(); len(got) != len(fresh) {
		t.Errorf("expected the later fetch to win, got %v", got)
	}
}
