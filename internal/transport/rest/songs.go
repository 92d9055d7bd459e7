package rest

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vibescape/vibescape-backend/internal/domain/catalog"
)

// maxUploadMemory is held in memory before multipart parts spill to disk.
const maxUploadMemory = 32 << 20

// upload fields and the public subdirectory each one is stored in.
var uploadDirs = map[string]string{
	"song":        "songs",
	"albumArt":    "songpic",
	"artistImage": "artistpic",
}

// ListSongs handles GET /api/songs
func (h *Handler) ListSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := h.songs.Fetch(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list songs")
		writeError(w, http.StatusInternalServerError, "Error fetching songs.")
		return
	}
	if songs == nil {
		songs = []catalog.Song{}
	}
	writeJSON(w, http.StatusOK, songs)
}

// SearchSongs handles GET /api/songs/search?q=
func (h *Handler) SearchSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := h.songs.Fetch(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching songs.")
		return
	}
	found := catalog.Search(songs, r.URL.Query().Get("q"))
	if found == nil {
		found = []catalog.Song{}
	}
	writeJSON(w, http.StatusOK, found)
}

// ListArtists handles GET /api/artists
func (h *Handler) ListArtists(w http.ResponseWriter, r *http.Request) {
	songs, err := h.songs.Fetch(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching songs.")
		return
	}
	artists := catalog.Artists(songs)
	if artists == nil {
		artists = []catalog.Artist{}
	}
	writeJSON(w, http.StatusOK, artists)
}

// ArtistSongs handles GET /api/artists/{artist}/songs
func (h *Handler) ArtistSongs(w http.ResponseWriter, r *http.Request) {
	h.filtered(w, r, func(songs []catalog.Song) []catalog.Song {
		return catalog.ByArtist(songs, r.PathValue("artist"))
	})
}

// GenreSongs handles GET /api/genres/{genre}
func (h *Handler) GenreSongs(w http.ResponseWriter, r *http.Request) {
	h.filtered(w, r, func(songs []catalog.Song) []catalog.Song {
		return catalog.ByGenre(songs, r.PathValue("genre"))
	})
}

func (h *Handler) filtered(w http.ResponseWriter, r *http.Request, keep func([]catalog.Song) []catalog.Song) {
	songs, err := h.songs.Fetch(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching songs.")
		return
	}
	out := keep(songs)
	if out == nil {
		out = []catalog.Song{}
	}
	writeJSON(w, http.StatusOK, out)
}

// UploadSong handles POST /api/upload
func (h *Handler) UploadSong(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload form.")
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["song"]) == 0 {
		writeError(w, http.StatusBadRequest, "Audio file is required.")
		return
	}
	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		writeError(w, http.StatusBadRequest, "Title is required.")
		return
	}

	var staged []*stagedUpload
	discard := func() {
		for _, st := range staged {
			st.discard()
		}
	}
	paths := map[string]string{}
	for field, dir := range uploadDirs {
		files := r.MultipartForm.File[field]
		if len(files) == 0 {
			continue
		}
		st, err := h.stageUpload(files[0], dir)
		if err != nil {
			log.Error().Err(err).Str("field", field).Msg("Failed to store upload")
			discard()
			writeError(w, http.StatusInternalServerError, "Server error during upload.")
			return
		}
		staged = append(staged, st)
		paths[field] = st.rel
	}

	song, err := h.songs.CreateSong(r.Context(), catalog.Song{
		Title:     title,
		Artist:    strings.TrimSpace(r.FormValue("artist")),
		Genre:     strings.TrimSpace(r.FormValue("genre")),
		Emotion:   strings.TrimSpace(r.FormValue("emotion")),
		File:      paths["song"],
		Art:       paths["albumArt"],
		ArtistArt: paths["artistImage"],
	})
	if err != nil {
		discard()
		if errors.Is(err, catalog.ErrDuplicateTitle) {
			writeError(w, http.StatusConflict, "A song with that title already exists.")
			return
		}
		log.Error().Err(err).Msg("Failed to save song")
		writeError(w, http.StatusInternalServerError, "Server error during upload.")
		return
	}

	for i, st := range staged {
		if err := st.commit(); err != nil {
			log.Error().Err(err).Str("path", st.rel).Msg("Failed to move upload into place")
			for _, left := range staged[i:] {
				left.discard()
			}
			h.removeFiles(relPaths(staged[:i])...)
			if _, derr := h.songs.DeleteSong(r.Context(), song.ID); derr != nil {
				log.Error().Err(derr).Str("id", song.ID).Msg("Failed to roll back song")
			}
			writeError(w, http.StatusInternalServerError, "Server error during upload.")
			return
		}
	}

	h.changed()
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Song uploaded successfully!",
		"song":    song,
	})
}

// DeleteSong handles DELETE /api/songs/{id}
func (h *Handler) DeleteSong(w http.ResponseWriter, r *http.Request) {
	song, err := h.songs.DeleteSong(r.Context(), r.PathValue("id"))
	if errors.Is(err, catalog.ErrSongNotFound) {
		writeError(w, http.StatusNotFound, "Song not found.")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete song")
		writeError(w, http.StatusInternalServerError, "Server error during deletion.")
		return
	}

	h.removeFiles(song.File, song.Art, song.ArtistArt)
	h.changed()
	writeMessage(w, http.StatusOK, "Song deleted successfully.")
}

// stagedUpload is an upload written to a temporary file next to its final
// location. Nothing under the final name is touched until commit.
type stagedUpload struct {
	tmp   string
	final string
	rel   string
}

func (st *stagedUpload) commit() error {
	return os.Rename(st.tmp, st.final)
}

func (st *stagedUpload) discard() {
	if err := os.Remove(st.tmp); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", st.tmp).Msg("Failed to remove staged upload")
	}
}

func relPaths(staged []*stagedUpload) []string {
	rels := make([]string, len(staged))
	for i, st := range staged {
		rels[i] = st.rel
	}
	return rels
}

// stageUpload copies fh into a temporary file below publicDir/dir and picks
// the public path it will take: its base name, or a suffixed variant when a
// file of that name already exists.
func (h *Handler) stageUpload(fh *multipart.FileHeader, dir string) (*stagedUpload, error) {
	name := filepath.Base(filepath.Clean("/" + fh.Filename))
	if name == "/" || name == "." {
		return nil, fmt.Errorf("invalid file name %q", fh.Filename)
	}

	target := filepath.Join(h.publicDir, dir)
	if err := os.MkdirAll(target, 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst, err := os.CreateTemp(target, ".upload-*")
	if err != nil {
		return nil, err
	}
	st := &stagedUpload{tmp: dst.Name()}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		st.discard()
		return nil, err
	}
	if err := dst.Close(); err != nil {
		st.discard()
		return nil, err
	}

	name = freeName(target, name)
	st.final = filepath.Join(target, name)
	st.rel = path.Join(dir, name)
	return st, nil
}

// freeName returns name, or name with a short random suffix if it is taken.
func freeName(dir, name string) string {
	if _, err := os.Stat(filepath.Join(dir, name)); os.IsNotExist(err) {
		return name
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "-" + uuid.NewString()[:8] + ext
}

// removeFiles deletes uploaded files. Default artwork is shared and kept.
func (h *Handler) removeFiles(rels ...string) {
	for _, rel := range rels {
		if rel == "" || strings.Contains(rel, "default.png") {
			continue
		}
		full := filepath.Join(h.publicDir, filepath.FromSlash(path.Clean("/"+rel)))
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", full).Msg("Failed to remove file")
		}
	}
}
