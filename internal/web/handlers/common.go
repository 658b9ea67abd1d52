package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/orchid/internal/constants"
	"github.com/kozaktomas/orchid/internal/database"
	"github.com/kozaktomas/orchid/internal/web/middleware"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

const errStorageUnavailable = "photo storage not available"

var errInvalidID = errors.New("invalid id")

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// parseID reads a positive integer URL parameter.
func parseID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// queryInt reads a non-negative integer query parameter, clamped to max.
func queryInt(r *http.Request, name string, def, maxVal int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return def
	}
	return min(n, maxVal)
}

// parsePage reads limit and offset query parameters.
func parsePage(r *http.Request) (limit, offset int) {
	limit = queryInt(r, "limit", constants.DefaultPageSize, constants.MaxPageSize)
	if limit == 0 {
		limit = constants.DefaultPageSize
	}
	offset = queryInt(r, "offset", 0, math.MaxInt)
	return limit, offset
}

func getPhotoWriter(w http.ResponseWriter, r *http.Request) database.PhotoWriter {
	writer, err := database.GetPhotoWriter(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, errStorageUnavailable)
		return nil
	}
	return writer
}

func getIdentityWriter(w http.ResponseWriter, r *http.Request) database.IdentityWriter {
	writer, err := database.GetIdentityWriter(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, errStorageUnavailable)
		return nil
	}
	return writer
}

// loadPhoto resolves the {id} URL parameter to a stored photo, writing an
// error response and returning nil when it cannot.
func loadPhoto(w http.ResponseWriter, r *http.Request, photos database.PhotoReader) *database.Photo {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid photo id")
		return nil
	}
	photo, err := photos.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load photo")
		return nil
	}
	if photo == nil {
		respondError(w, http.StatusNotFound, "photo not found")
		return nil
	}
	return photo
}

// sessionID returns the visitor session ID, or "" outside the session middleware.
func sessionID(r *http.Request) string {
	if s := middleware.GetSessionFromContext(r.Context()); s != nil {
		return s.ID
	}
	return ""
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"database": database.IsInitialized(),
	})
}
