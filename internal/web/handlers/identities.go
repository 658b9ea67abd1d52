package handlers

import (
	"net/http"

	"github.com/kozaktomas/orchid/internal/database"
)

// IdentitiesHandler serves identity resources.
type IdentitiesHandler struct{}

// NewIdentitiesHandler creates a new identities handler.
func NewIdentitiesHandler() *IdentitiesHandler {
	return &IdentitiesHandler{}
}

// List returns a page of identities.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	identities := getIdentityWriter(w, r)
	if identities == nil {
		return
	}
	limit, offset := parsePage(r)

	list, err := identities.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list identities")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"limit":      limit,
		"offset":     offset,
		"identities": toIdentityResponses(list),
	})
}

// Get returns a single identity.
func (h *IdentitiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid identity id")
		return
	}
	identities := getIdentityWriter(w, r)
	if identities == nil {
		return
	}

	identity, err := identities.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load identity")
		return
	}
	if identity == nil {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	respondJSON(w, http.StatusOK, toIdentityResponses([]database.Identity{*identity})[0])
}
