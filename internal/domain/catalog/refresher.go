package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultRefreshInterval is the catalog polling period.
	DefaultRefreshInterval = 60 * time.Second

	// DefaultFetchTimeout bounds a single catalog fetch.
	DefaultFetchTimeout = 10 * time.Second
)

// ErrEmptyCatalog is returned by Refresh when the provider returned no songs.
var ErrEmptyCatalog = errors.New("catalog is empty")

// UpdateFunc receives a freshly fetched, non-empty catalog.
type UpdateFunc func(songs []Song)

// FailureFunc receives fetch failures. The last known catalog is still in effect.
type FailureFunc func(err error)

// Refresher polls a Provider and keeps the last known good catalog.
// A failed or empty fetch never replaces a good catalog.
type Refresher struct {
	provider Provider
	interval time.Duration
	timeout  time.Duration

	// refreshMu serializes fetches so results apply in start order.
	refreshMu sync.Mutex

	mu        sync.RWMutex
	songs     []Song
	fetchedAt time.Time
	onUpdate  []UpdateFunc
	onFailure []FailureFunc
	running   bool
	stopCh    chan struct{}
}

// RefresherOption is a functional option for configuring the refresher.
type RefresherOption func(*Refresher)

// WithRefreshInterval sets the polling interval.
func WithRefreshInterval(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithFetchTimeout sets the per-fetch timeout.
func WithFetchTimeout(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRefresher creates a refresher for the given provider.
func NewRefresher(provider Provider, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		provider: provider,
		interval: DefaultRefreshInterval,
		timeout:  DefaultFetchTimeout,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnUpdate registers a callback for successful refreshes.
func (r *Refresher) OnUpdate(fn UpdateFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onUpdate = append(r.onUpdate, fn)
}

// OnFailure registers a callback for failed refreshes.
func (r *Refresher) OnFailure(fn FailureFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFailure = append(r.onFailure, fn)
}

// Songs returns the last known catalog and when it was fetched.
func (r *Refresher) Songs() ([]Song, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.songs, r.fetchedAt
}

// Refresh fetches the catalog once. On success the new catalog replaces the
// cached one and update callbacks run; otherwise the cached catalog is kept
// and failure callbacks run. Concurrent calls run one after another.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	songs, err := r.provider.Fetch(fetchCtx)
	if err == nil && len(songs) == 0 {
		err = ErrEmptyCatalog
	}

	r.mu.Lock()
	if err != nil {
		cached := len(r.songs)
		failure := append([]FailureFunc(nil), r.onFailure...)
		r.mu.Unlock()

		log.Warn().Err(err).Int("cached", cached).Msg("Catalog refresh failed, keeping last known catalog")
		for _, fn := range failure {
			fn(err)
		}
		return err
	}

	r.songs = songs
	r.fetchedAt = time.Now()
	update := append([]UpdateFunc(nil), r.onUpdate...)
	r.mu.Unlock()

	log.Debug().Int("songs", len(songs)).Msg("Catalog refreshed")
	for _, fn := range update {
		fn(songs)
	}
	return nil
}

// Start refreshes immediately and then on every interval until ctx is
// cancelled or Stop is called.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	stopCh := r.stopCh
	r.mu.Unlock()

	log.Info().Dur("interval", r.interval).Msg("Catalog refresher started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	_ = r.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Catalog refresher stopping (context cancelled)")
			r.setStopped()
			return
		case <-stopCh:
			log.Info().Msg("Catalog refresher stopping (stop requested)")
			r.setStopped()
			return
		case <-ticker.C:
			_ = r.Refresh(ctx)
		}
	}
}

// Stop stops a running refresher.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		close(r.stopCh)
		r.running = false
	}
}

func (r *Refresher) setStopped() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}
