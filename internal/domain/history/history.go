// Package history records which songs a listener played, most recent first.
package history

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// RecentLimit is the number of titles shown in the recently-played view.
const RecentLimit = 6

// Repository persists history entries per listener.
type Repository interface {
	// Front returns the most recent title, ok is false for an empty history.
	Front(ctx context.Context, listener string) (title string, ok bool, err error)
	// Push stores title as the new most recent entry.
	Push(ctx context.Context, listener, title string, playedAt time.Time) error
	// List returns up to limit titles, most recent first. limit <= 0 means all.
	List(ctx context.Context, listener string, limit int) ([]string, error)
	// Clear removes the listener's history.
	Clear(ctx context.Context, listener string) error
}

// Store applies the history rules on top of a Repository.
type Store struct {
	repo Repository
	now  func() time.Time
}

// NewStore creates a history store.
func NewStore(repo Repository) *Store {
	return &Store{repo: repo, now: time.Now}
}

// Append records title as played. Only a duplicate of the current front entry
// is suppressed; an older occurrence stays where it is, so A, B, A yields
// [A, B, A]. It reports whether an entry was added.
func (s *Store) Append(ctx context.Context, listener, title string) (bool, error) {
	front, ok, err := s.repo.Front(ctx, listener)
	if err != nil {
		return false, err
	}
	if ok && front == title {
		return false, nil
	}
	if err := s.repo.Push(ctx, listener, title, s.now()); err != nil {
		return false, err
	}
	log.Debug().Str("listener", listener).Str("title", title).Msg("Recorded play history")
	return true, nil
}

// List returns the raw history, most recent first.
func (s *Store) List(ctx context.Context, listener string, limit int) ([]string, error) {
	return s.repo.List(ctx, listener, limit)
}

// Recent returns the recently-played view: distinct titles, most recent
// first, at most RecentLimit of them.
func (s *Store) Recent(ctx context.Context, listener string) ([]string, error) {
	titles, err := s.repo.List(ctx, listener, 0)
	if err != nil {
		return nil, err
	}
	return Distinct(titles, RecentLimit), nil
}

// Clear removes the listener's history.
func (s *Store) Clear(ctx context.Context, listener string) error {
	if err := s.repo.Clear(ctx, listener); err != nil {
		return err
	}
	log.Info().Str("listener", listener).Msg("Play history cleared")
	return nil
}

// Distinct keeps the first occurrence of every title, up to limit entries.
// limit <= 0 means no limit.
func Distinct(titles []string, limit int) []string {
	out := lo.Uniq(titles)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DefaultMemoryLimit caps the entries kept per listener in memory.
const DefaultMemoryLimit = 100

// MemoryRepository keeps history in memory. It backs guest listeners whose
// history does not outlive the process. Each listener keeps at most limit
// entries; older ones are dropped.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[string][]string
	limit   int
}

// NewMemoryRepository creates an empty in-memory repository keeping
// DefaultMemoryLimit entries per listener.
func NewMemoryRepository() *MemoryRepository {
	return NewMemoryRepositoryWithLimit(DefaultMemoryLimit)
}

// NewMemoryRepositoryWithLimit creates an empty in-memory repository keeping
// at most limit entries per listener. limit <= 0 means no cap.
func NewMemoryRepositoryWithLimit(limit int) *MemoryRepository {
	return &MemoryRepository{entries: make(map[string][]string), limit: limit}
}

// Len returns the number of listeners with history.
func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Front implements Repository.
func (m *MemoryRepository) Front(ctx context.Context, listener string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	titles := m.entries[listener]
	if len(titles) == 0 {
		return "", false, nil
	}
	return titles[0], true, nil
}

// Push implements Repository.
func (m *MemoryRepository) Push(ctx context.Context, listener, title string, playedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	titles := append([]string{title}, m.entries[listener]...)
	if m.limit > 0 && len(titles) > m.limit {
		titles = titles[:m.limit]
	}
	m.entries[listener] = titles
	return nil
}

// List implements Repository.
func (m *MemoryRepository) List(ctx context.Context, listener string, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	titles := m.entries[listener]
	if limit > 0 && len(titles) > limit {
		titles = titles[:limit]
	}
	return append([]string(nil), titles...), nil
}

// Clear implements Repository.
func (m *MemoryRepository) Clear(ctx context.Context, listener string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, listener)
	return nil
}

// GuestPrefix marks listeners without an account.
const GuestPrefix = "guest:"

// GuestListener returns the listener id for an anonymous connection.
func GuestListener(connID string) string {
	return GuestPrefix + connID
}

// IsGuest reports whether listener is anonymous.
func IsGuest(listener string) bool {
	return strings.HasPrefix(listener, GuestPrefix)
}

// SplitRepository keeps guest history apart from account history.
type SplitRepository struct {
	Guests Repository
	Users  Repository
}

func (r SplitRepository) pick(listener string) Repository {
	if IsGuest(listener) {
		return r.Guests
	}
	return r.Users
}

// Front implements Repository.
func (r SplitRepository) Front(ctx context.Context, listener string) (string, bool, error) {
	return r.pick(listener).Front(ctx, listener)
}

// Push implements Repository.
func (r SplitRepository) Push(ctx context.Context, listener, title string, playedAt time.Time) error {
	return r.pick(listener).Push(ctx, listener, title, playedAt)
}

// List implements Repository.
func (r SplitRepository) List(ctx context.Context, listener string, limit int) ([]string, error) {
	return r.pick(listener).List(ctx, listener, limit)
}

// Clear implements Repository.
func (r SplitRepository) Clear(ctx context.Context, listener string) error {
	return r.pick(listener).Clear(ctx, listener)
}
