package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kozaktomas/orchid/internal/config"
	"github.com/kozaktomas/orchid/internal/constants"
	"github.com/kozaktomas/orchid/internal/database"
	"github.com/kozaktomas/orchid/internal/fingerprint"
	"go.uber.org/zap"
)

// PhotosHandler serves photo resources and files.
type PhotosHandler struct {
	config *config.Config
	logger *zap.Logger
}

// NewPhotosHandler creates a new photos handler.
func NewPhotosHandler(cfg *config.Config, logger *zap.Logger) *PhotosHandler {
	return &PhotosHandler{config: cfg, logger: logger}
}

// PhotoResponse represents a photo in API responses.
type PhotoResponse struct {
	ID           int64  `json:"id"`
	OriginalName string `json:"original_name"`
	ContentType  string `json:"content_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	PHash        string `json:"phash"`
	DHash        string `json:"dhash"`
	ImageURL     string `json:"image_url"`
	ThumbURL     string `json:"thumb_url"`
	Owned        bool   `json:"owned"`
	CreatedAt    string `json:"created_at"`
}

func photoToResponse(p *database.Photo, session string) PhotoResponse {
	h := fingerprint.Hashes{PHash: p.PHash, DHash: p.DHash}
	base := "/api/v1/photos/" + strconv.FormatInt(p.ID, 10)
	return PhotoResponse{
		ID:           p.ID,
		OriginalName: p.OriginalName,
		ContentType:  p.ContentType,
		Width:        p.Width,
		Height:       p.Height,
		PHash:        h.PHashHex(),
		DHash:        h.DHashHex(),
		ImageURL:     base + "/image",
		ThumbURL:     base + "/thumb",
		Owned:        session != "" && p.SessionID == session,
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
	}
}

func photosToResponse(photos []database.Photo, session string) []PhotoResponse {
	out := make([]PhotoResponse, len(photos))
	for i := range photos {
		out[i] = photoToResponse(&photos[i], session)
	}
	return out
}

// List returns a page of photos, newest first.
func (h *PhotosHandler) List(w http.ResponseWriter, r *http.Request) {
	photos := getPhotoWriter(w, r)
	if photos == nil {
		return
	}
	limit, offset := parsePage(r)

	list, err := photos.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list photos")
		return
	}
	count, err := photos.Count(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count photos")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":  count,
		"limit":  limit,
		"offset": offset,
		"photos": photosToResponse(list, sessionID(r)),
	})
}

// Get returns a single photo.
func (h *PhotosHandler) Get(w http.ResponseWriter, r *http.Request) {
	photos := getPhotoWriter(w, r)
	if photos == nil {
		return
	}
	photo := loadPhoto(w, r, photos)
	if photo == nil {
		return
	}
	respondJSON(w, http.StatusOK, photoToResponse(photo, sessionID(r)))
}

// Image serves the uploaded photo file.
func (h *PhotosHandler) Image(w http.ResponseWriter, r *http.Request) {
	photos := getPhotoWriter(w, r)
	if photos == nil {
		return
	}
	photo := loadPhoto(w, r, photos)
	if photo == nil {
		return
	}
	h.serveFile(w, r, photo.FileName, photo.ContentType)
}

// Thumb serves the JPEG thumbnail of a photo.
func (h *PhotosHandler) Thumb(w http.ResponseWriter, r *http.Request) {
	photos := getPhotoWriter(w, r)
	if photos == nil {
		return
	}
	photo := loadPhoto(w, r, photos)
	if photo == nil {
		return
	}
	h.serveFile(w, r, photo.ThumbName(), "image/jpeg")
}

func (h *PhotosHandler) serveFile(w http.ResponseWriter, r *http.Request, name, contentType string) {
	f, err := os.Open(filepath.Join(h.config.Media.Dir, filepath.Base(name)))
	if err != nil {
		respondError(w, http.StatusNotFound, "file not found")
		return
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, name, stat.ModTime(), f)
}

// Delete removes a photo owned by the visitor session together with its
// files, identities and phenotype.
func (h *PhotosHandler) Delete(w http.ResponseWriter, r *http.Request) {
	photos := getPhotoWriter(w, r)
	if photos == nil {
		return
	}
	photo := loadPhoto(w, r, photos)
	if photo == nil {
		return
	}
	if session := sessionID(r); session == "" || photo.SessionID != session {
		respondError(w, http.StatusForbidden, "photo belongs to another session")
		return
	}

	if phenotypes, err := database.GetPhenotypeWriter(r.Context()); err == nil {
		if err := phenotypes.Delete(r.Context(), photo.ID); err != nil {
			h.logger.Warn("failed to delete phenotype", zap.Int64("photo_id", photo.ID), zap.Error(err))
		}
	}
	if err := photos.Delete(r.Context(), photo.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete photo")
		return
	}

	for _, name := range []string{photo.FileName, photo.ThumbName()} {
		err := os.Remove(filepath.Join(h.config.Media.Dir, name))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			h.logger.Warn("failed to remove media file", zap.String("file", name), zap.Error(err))
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": photo.ID})
}

// SimilarPhoto is a photo with its phenotype distance to the query photo.
type SimilarPhoto struct {
	PhotoResponse
	Distance float64 `json:"distance"`
}

// Similar returns the photos nearest to a photo by phenotype.
func (h *PhotosHandler) Similar(w http.ResponseWriter, r *http.Request) {
	photos := getPhotoWriter(w, r)
	if photos == nil {
		return
	}
	photo := loadPhoto(w, r, photos)
	if photo == nil {
		return
	}
	phenotypes, err := database.GetPhenotypeReader(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, errStorageUnavailable)
		return
	}

	stored, err := phenotypes.Get(r.Context(), photo.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load phenotype")
		return
	}
	if stored == nil {
		respondError(w, http.StatusNotFound, "photo has not been identified yet")
		return
	}

	limit := queryInt(r, "limit", constants.DefaultSimilarLimit, constants.MaxSimilarLimit)
	if limit == 0 {
		limit = constants.DefaultSimilarLimit
	}
	matches, distances, err := phenotypes.FindSimilar(r.Context(), stored.Phenotype, limit+1)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "similarity search failed")
		return
	}

	session := sessionID(r)
	results := make([]SimilarPhoto, 0, limit)
	for i, m := range matches {
		if m.PhotoID == photo.ID || len(results) == limit {
			continue
		}
		p, err := photos.Get(r.Context(), m.PhotoID)
		if err != nil || p == nil {
			continue
		}
		results = append(results, SimilarPhoto{PhotoResponse: photoToResponse(p, session), Distance: distances[i]})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"photo_id": photo.ID,
		"results":  results,
	})
}

// SessionData lists the IDs of photos owned by the visitor session.
func (h *PhotosHandler) SessionData(w http.ResponseWriter, r *http.Request) {
	photos := getPhotoWriter(w, r)
	if photos == nil {
		return
	}
	list, err := photos.ListBySession(r.Context(), sessionID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list photos")
		return
	}
	ids := make([]int64, len(list))
	for i, p := range list {
		ids[i] = p.ID
	}
	respondJSON(w, http.StatusOK, map[string]any{"photos": ids})
}

// Library returns the photos owned by the visitor session.
func (h *PhotosHandler) Library(w http.ResponseWriter, r *http.Request) {
	photos := getPhotoWriter(w, r)
	if photos == nil {
		return
	}
	session := sessionID(r)
	list, err := photos.ListBySession(r.Context(), session)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list photos")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":  len(list),
		"photos": photosToResponse(list, session),
	})
}
