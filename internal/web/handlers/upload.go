package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/kozaktomas/orchid/internal/config"
	"github.com/kozaktomas/orchid/internal/constants"
	"github.com/kozaktomas/orchid/internal/database"
	"github.com/kozaktomas/orchid/internal/features"
	"github.com/kozaktomas/orchid/internal/fingerprint"
	"go.uber.org/zap"
)

// UploadHandler handles photo uploads.
type UploadHandler struct {
	config *config.Config
	logger *zap.Logger
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(cfg *config.Config, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{config: cfg, logger: logger}
}

// Duplicate pairs an uploaded photo with an earlier photo of the same
// session that has a near-identical dHash.
type Duplicate struct {
	PhotoID     int64 `json:"photo_id"`
	DuplicateOf int64 `json:"duplicate_of"`
	Distance    int   `json:"distance"`
}

// UploadError reports a file that was not stored.
type UploadError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

var errNotAnImage = errors.New("not an image")

// saveUploadedFile copies a multipart file into the media directory under
// a random name that keeps the original extension. Returns the new name
// and the sniffed content type.
func saveUploadedFile(fh *multipart.FileHeader, mediaDir string) (string, string, error) {
	if !features.IsImageFile(fh.Filename) {
		return "", "", errNotAnImage
	}

	file, err := fh.Open()
	if err != nil {
		return "", "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", "", fmt.Errorf("failed to read file: %w", err)
	}
	contentType := http.DetectContentType(head[:n])
	if !strings.HasPrefix(contentType, "image/") {
		return "", "", errNotAnImage
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", "", fmt.Errorf("failed to rewind file: %w", err)
	}

	name := uuid.New().String() + strings.ToLower(filepath.Ext(fh.Filename))
	out, err := os.Create(filepath.Join(mediaDir, name)) //nolint:gosec // name is generated
	if err != nil {
		return "", "", errors.New("failed to create media file")
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		return "", "", errors.New("failed to save file")
	}
	if err := out.Close(); err != nil {
		return "", "", errors.New("failed to save file")
	}
	return name, contentType, nil
}

// storePhoto decodes a saved upload, writes its thumbnail and inserts the
// photo record.
func (h *UploadHandler) storePhoto(r *http.Request, photos database.PhotoWriter, fh *multipart.FileHeader, session string) (*database.Photo, error) {
	name, contentType, err := saveUploadedFile(fh, h.config.Media.Dir)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(h.config.Media.Dir, name)

	photo, err := func() (*database.Photo, error) {
		img, err := features.Load(path)
		if err != nil {
			return nil, errNotAnImage
		}
		thumb, err := fingerprint.Thumbnail(img, constants.ThumbnailSize)
		if err != nil {
			return nil, err
		}
		p := &database.Photo{
			FileName:     name,
			OriginalName: filepath.Base(fh.Filename),
			ContentType:  contentType,
			Width:        img.Bounds().Dx(),
			Height:       img.Bounds().Dy(),
			SessionID:    session,
		}
		if err := os.WriteFile(filepath.Join(h.config.Media.Dir, p.ThumbName()), thumb, 0o644); err != nil { //nolint:gosec // thumbnails are public
			return nil, errors.New("failed to save thumbnail")
		}
		hashes := fingerprint.Compute(img)
		p.PHash, p.DHash = hashes.PHash, hashes.DHash
		if err := photos.Create(r.Context(), p); err != nil {
			_ = os.Remove(filepath.Join(h.config.Media.Dir, p.ThumbName()))
			return nil, errors.New("failed to store photo")
		}
		return p, nil
	}()
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return photo, nil
}

// findDuplicate returns the closest earlier photo within the duplicate threshold.
func findDuplicate(photo *database.Photo, earlier []database.Photo) *Duplicate {
	var best *Duplicate
	for _, e := range earlier {
		if e.ID == photo.ID || !fingerprint.Similar(photo.DHash, e.DHash, constants.DuplicateHashDistance) {
			continue
		}
		d := fingerprint.HammingDistance(photo.DHash, e.DHash)
		if best == nil || d < best.Distance {
			best = &Duplicate{PhotoID: photo.ID, DuplicateOf: e.ID, Distance: d}
		}
	}
	return best
}

// Upload stores the multipart "files" in the media directory and records
// them as photos of the visitor session. Near-duplicates of photos already
// in the session are stored as well and reported.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp files

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no files provided")
		return
	}

	photos := getPhotoWriter(w, r)
	if photos == nil {
		return
	}
	if err := os.MkdirAll(h.config.Media.Dir, 0o755); err != nil { //nolint:gosec // media is public
		respondError(w, http.StatusInternalServerError, "media directory not available")
		return
	}

	session := sessionID(r)
	earlier, err := photos.ListBySession(r.Context(), session)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list photos")
		return
	}

	stored := make([]PhotoResponse, 0, len(files))
	duplicates := make([]Duplicate, 0)
	failed := make([]UploadError, 0)
	for _, fh := range files {
		photo, err := h.storePhoto(r, photos, fh, session)
		if err != nil {
			h.logger.Info("upload rejected", zap.String("file", sanitizeForLog(fh.Filename)), zap.Error(err))
			failed = append(failed, UploadError{File: filepath.Base(fh.Filename), Error: err.Error()})
			continue
		}
		if d := findDuplicate(photo, earlier); d != nil {
			duplicates = append(duplicates, *d)
		}
		earlier = append(earlier, *photo)
		stored = append(stored, photoToResponse(photo, session))
	}

	status := http.StatusCreated
	if len(stored) == 0 {
		status = http.StatusBadRequest
	}
	respondJSON(w, status, map[string]any{
		"uploaded":   len(stored),
		"photos":     stored,
		"duplicates": duplicates,
		"errors":     failed,
	})
}
