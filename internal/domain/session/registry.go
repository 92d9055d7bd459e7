package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/vibescape/vibescape-backend/internal/domain/catalog"
)

// CatalogUnavailable is the notice shown when a catalog refresh fails.
const CatalogUnavailable = "Could not refresh the song list, showing the last known songs"

// Registry tracks live sessions so catalog updates reach all of them.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	songs    []catalog.Song
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers s and hands it the latest catalog, if any.
func (r *Registry) Add(ctx context.Context, s *Session) {
	r.mu.Lock()
	r.sessions[s.ID()] = s
	songs := r.songs
	r.mu.Unlock()

	if len(songs) > 0 {
		if _, err := s.SetCatalog(ctx, songs); err != nil {
			log.Warn().Err(err).Str("session", s.ID()).Msg("Failed to seed session catalog")
		}
	}
}

// Remove unregisters the session with id and returns it.
func (r *Registry) Remove(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[id]
	delete(r.sessions, id)
	return s
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Songs returns the latest catalog seen by the registry.
func (r *Registry) Songs() []catalog.Song {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.songs
}

func (r *Registry) live() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Notify sends msg as a notice to every session.
func (r *Registry) Notify(ctx context.Context, msg string) {
	live := r.live()
	for _, s := range live {
		if err := s.Notify(ctx, msg); err != nil && !errors.Is(err, ErrClosed) {
			log.Warn().Err(err).Str("session", s.ID()).Msg("Failed to deliver notice")
		}
	}
	log.Debug().Str("message", msg).Int("sessions", len(live)).Msg("Notice distributed")
}

// SetCatalog stores songs and forwards them to every session. An empty
// catalog is ignored.
func (r *Registry) SetCatalog(ctx context.Context, songs []catalog.Song) {
	if len(songs) == 0 {
		return
	}

	r.mu.Lock()
	r.songs = songs
	r.mu.Unlock()
	live := r.live()

	for _, s := range live {
		if _, err := s.SetCatalog(ctx, songs); err != nil && !errors.Is(err, ErrClosed) {
			log.Warn().Err(err).Str("session", s.ID()).Msg("Failed to update session catalog")
		}
	}
	log.Debug().Int("songs", len(songs)).Int("sessions", len(live)).Msg("Catalog distributed")
}
