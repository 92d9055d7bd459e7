package rest

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/vibescape/vibescape-backend/internal/domain/account"
	"github.com/vibescape/vibescape-backend/internal/domain/library"
)

// GetProfile handles GET /api/user/profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.accounts.Profile(r.Context(), userFrom(r).UserID)
	if errors.Is(err, account.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found.")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server error.")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProfile handles PUT /api/user/profile
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if !decode(w, r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	p, err := h.accounts.UpdateProfile(r.Context(), userFrom(r).UserID, req.Username, req.Email)
	switch {
	case errors.Is(err, account.ErrUserExists):
		writeError(w, http.StatusBadRequest, "User with that email or username already exists.")
	case errors.Is(err, account.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found.")
	case err != nil:
		log.Error().Err(err).Msg("Profile update failed")
		writeError(w, http.StatusInternalServerError, "Server error.")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"message": "Profile updated.", "profile": p})
	}
}

// ChangePassword handles PUT /api/user/change-password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if !decode(w, r, &req) || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	err := h.accounts.ChangePassword(r.Context(), userFrom(r).UserID, req.CurrentPassword, req.NewPassword)
	switch {
	case errors.Is(err, account.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "Current password is incorrect.")
	case errors.Is(err, account.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found.")
	case err != nil:
		log.Error().Err(err).Msg("Password change failed")
		writeError(w, http.StatusInternalServerError, "Server error.")
	default:
		writeMessage(w, http.StatusOK, "Password changed.")
	}
}

// GetHistory handles GET /api/user/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	titles, err := h.history.List(r.Context(), userFrom(r).UserID, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server error.")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(titles))
}

// ClearHistory handles DELETE /api/user/history
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.history.Clear(r.Context(), userFrom(r).UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "Server error.")
		return
	}
	writeMessage(w, http.StatusOK, "History cleared.")
}

// GetRecent handles GET /api/user/recent
func (h *Handler) GetRecent(w http.ResponseWriter, r *http.Request) {
	titles, err := h.history.Recent(r.Context(), userFrom(r).UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server error.")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(titles))
}

// GetFavourites handles GET /api/user/favourites
func (h *Handler) GetFavourites(w http.ResponseWriter, r *http.Request) {
	titles, err := h.library.Favourites(r.Context(), userFrom(r).UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server error.")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(titles))
}

// AddFavourite handles POST /api/user/favourites
func (h *Handler) AddFavourite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if !decode(w, r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	added, err := h.library.AddFavourite(r.Context(), userFrom(r).UserID, req.Title)
	if errors.Is(err, library.ErrEmptyTitle) {
		writeError(w, http.StatusBadRequest, "Song title is required.")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server error.")
		return
	}
	if !added {
		writeMessage(w, http.StatusOK, "Already in favourites.")
		return
	}
	writeMessage(w, http.StatusCreated, "Added to favourites.")
}

// RemoveFavourite handles DELETE /api/user/favourites/{title}
func (h *Handler) RemoveFavourite(w http.ResponseWriter, r *http.Request) {
	removed, err := h.library.RemoveFavourite(r.Context(), userFrom(r).UserID, r.PathValue("title"))
	if errors.Is(err, library.ErrEmptyTitle) {
		writeError(w, http.StatusBadRequest, "Song title is required.")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server error.")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "Not in favourites.")
		return
	}
	writeMessage(w, http.StatusOK, "Removed from favourites.")
}

// GetPlaylists handles GET /api/user/playlists
func (h *Handler) GetPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.library.Playlists(r.Context(), userFrom(r).UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server error.")
		return
	}
	if playlists == nil {
		playlists = []library.Playlist{}
	}
	writeJSON(w, http.StatusOK, playlists)
}

// AddToPlaylist handles POST /api/user/playlists
func (h *Handler) AddToPlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Title string `json:"title"`
	}
	if !decode(w, r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	added, err := h.library.AddToPlaylist(r.Context(), userFrom(r).UserID, req.Name, req.Title)
	switch {
	case errors.Is(err, library.ErrEmptyName), errors.Is(err, library.ErrEmptyTitle):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Server error.")
	case !added:
		writeMessage(w, http.StatusOK, "Song already in playlist.")
	default:
		writeMessage(w, http.StatusCreated, "Added to playlist.")
	}
}

func nonNil(titles []string) []string {
	if titles == nil {
		return []string{}
	}
	return titles
}
