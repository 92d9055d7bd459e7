// Package rest provides the JSON HTTP API.
package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vibescape/vibescape-backend/internal/domain/account"
	"github.com/vibescape/vibescape-backend/internal/domain/catalog"
	"github.com/vibescape/vibescape-backend/internal/domain/history"
	"github.com/vibescape/vibescape-backend/internal/domain/library"
)

// SongStore persists uploaded songs.
type SongStore interface {
	catalog.Provider
	CreateSong(ctx context.Context, s catalog.Song) (catalog.Song, error)
	DeleteSong(ctx context.Context, id string) (catalog.Song, error)
}

// Handler manages the HTTP interface.
type Handler struct {
	songs     SongStore
	accounts  *account.Service
	history   *history.Store
	library   *library.Service
	publicDir string
	changed   func()
	router    *http.ServeMux
}

// Option configures a Handler.
type Option func(*Handler)

// WithCatalogChanged sets a hook run after a song is uploaded or deleted.
func WithCatalogChanged(fn func()) Option {
	return func(h *Handler) {
		h.changed = fn
	}
}

// NewHandler initializes the HTTP adapter and sets up routes. Uploaded files
// are written below publicDir.
func NewHandler(songs SongStore, accounts *account.Service, hist *history.Store, lib *library.Service, publicDir string, opts ...Option) *Handler {
	h := &Handler{
		songs:     songs,
		accounts:  accounts,
		history:   hist,
		library:   lib,
		publicDir: publicDir,
		changed:   func() {},
		router:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.routes()

	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	// Songs
	h.router.HandleFunc("GET /api/songs", h.ListSongs)
	h.router.HandleFunc("GET /api/songs/search", h.SearchSongs)
	h.router.HandleFunc("POST /api/upload", h.UploadSong)
	h.router.HandleFunc("DELETE /api/songs/{id}", h.DeleteSong)
	h.router.HandleFunc("GET /api/artists", h.ListArtists)
	h.router.HandleFunc("GET /api/artists/{artist}/songs", h.ArtistSongs)
	h.router.HandleFunc("GET /api/genres/{genre}", h.GenreSongs)

	// Accounts
	h.router.HandleFunc("POST /api/register", h.Register)
	h.router.HandleFunc("POST /api/login", h.Login)
	h.router.HandleFunc("POST /api/forgot-password", h.ForgotPassword)
	h.router.HandleFunc("POST /api/reset-password", h.ResetPassword)

	// Signed-in listener
	h.router.Handle("GET /api/user/profile", h.requireUser(h.GetProfile))
	h.router.Handle("PUT /api/user/profile", h.requireUser(h.UpdateProfile))
	h.router.Handle("PUT /api/user/change-password", h.requireUser(h.ChangePassword))
	h.router.Handle("GET /api/user/history", h.requireUser(h.GetHistory))
	h.router.Handle("DELETE /api/user/history", h.requireUser(h.ClearHistory))
	h.router.Handle("GET /api/user/recent", h.requireUser(h.GetRecent))
	h.router.Handle("GET /api/user/favourites", h.requireUser(h.GetFavourites))
	h.router.Handle("POST /api/user/favourites", h.requireUser(h.AddFavourite))
	h.router.Handle("DELETE /api/user/favourites/{title}", h.requireUser(h.RemoveFavourite))
	h.router.Handle("GET /api/user/playlists", h.requireUser(h.GetPlaylists))
	h.router.Handle("POST /api/user/playlists", h.requireUser(h.AddToPlaylist))
}

type claimsKey struct{}

// requireUser rejects requests without a valid bearer token.
func (h *Handler) requireUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required.")
			return
		}
		claims, err := h.accounts.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token.")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next(w, r.WithContext(ctx))
	})
}

func userFrom(r *http.Request) *account.Claims {
	c, _ := r.Context().Value(claimsKey{}).(*account.Claims)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v) == nil
}
