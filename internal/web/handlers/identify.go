package handlers

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"net/http"
	"path/filepath"

	"github.com/kozaktomas/orchid/internal/config"
	"github.com/kozaktomas/orchid/internal/constants"
	"github.com/kozaktomas/orchid/internal/database"
	"github.com/kozaktomas/orchid/internal/features"
	"github.com/kozaktomas/orchid/internal/trainer"
	"go.uber.org/zap"
)

// Identifier classifies a decoded photo.
type Identifier interface {
	ClassifyImage(img image.Image, name string, maxError float64) (*trainer.Identification, error)
}

var errNoIdentifier = errors.New("classifier not configured")

// IdentifyHandler runs the classifier on stored photos.
type IdentifyHandler struct {
	config     *config.Config
	identifier Identifier
	logger     *zap.Logger
}

// NewIdentifyHandler creates a new identify handler. A nil identifier
// makes identification requests fail with 503.
func NewIdentifyHandler(cfg *config.Config, identifier Identifier, logger *zap.Logger) *IdentifyHandler {
	return &IdentifyHandler{config: cfg, identifier: identifier, logger: logger}
}

type identityResponse struct {
	ID      int64   `json:"id"`
	PhotoID int64   `json:"photo_id"`
	Rank    string  `json:"rank"`
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Error   float64 `json:"error"`
}

func toIdentityResponses(identities []database.Identity) []identityResponse {
	out := make([]identityResponse, len(identities))
	for i, id := range identities {
		out[i] = identityResponse{
			ID:      id.ID,
			PhotoID: id.PhotoID,
			Rank:    id.Rank,
			Name:    id.Name,
			Score:   id.Score,
			Error:   id.Error,
		}
	}
	return out
}

// Identify classifies a photo and replaces its identities.
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	if h.identifier == nil {
		respondError(w, http.StatusServiceUnavailable, errNoIdentifier.Error())
		return
	}
	photos := getPhotoWriter(w, r)
	if photos == nil {
		return
	}
	photo := loadPhoto(w, r, photos)
	if photo == nil {
		return
	}

	identities, err := identifyPhoto(r.Context(), h.config, h.identifier, photo, h.logger)
	if err != nil {
		h.logger.Warn("identification failed", zap.Int64("photo_id", photo.ID), zap.Error(err))
		respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("identification failed: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"photo_id":   photo.ID,
		"identities": toIdentityResponses(identities),
	})
}

// PhotoIdentities returns the stored identities of a photo.
func (h *IdentifyHandler) PhotoIdentities(w http.ResponseWriter, r *http.Request) {
	photos := getPhotoWriter(w, r)
	if photos == nil {
		return
	}
	photo := loadPhoto(w, r, photos)
	if photo == nil {
		return
	}
	identities := getIdentityWriter(w, r)
	if identities == nil {
		return
	}

	list, err := identities.ListByPhoto(r.Context(), photo.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load identities")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"photo_id":   photo.ID,
		"identities": toIdentityResponses(list),
	})
}

// identifyPhoto classifies the photo file, stores its phenotype for
// similarity search and replaces its identities with the ranked classes.
func identifyPhoto(ctx context.Context, cfg *config.Config, identifier Identifier, photo *database.Photo, logger *zap.Logger) ([]database.Identity, error) {
	path := filepath.Join(cfg.Media.Dir, photo.FileName)
	img, err := features.Load(path)
	if err != nil {
		return nil, err
	}
	result, err := identifier.ClassifyImage(img, path, cfg.Classifier.MaxError)
	if err != nil {
		return nil, err
	}

	if phenotypes, err := database.GetPhenotypeWriter(ctx); err == nil {
		if err := phenotypes.Save(ctx, photo.ID, database.ToFloat32(result.Phenotype)); err != nil {
			logger.Warn("failed to store phenotype", zap.Int64("photo_id", photo.ID), zap.Error(err))
		}
	}

	identities := make([]database.Identity, len(result.Classes))
	for i, c := range result.Classes {
		identities[i] = database.Identity{
			Rank:  result.Rank,
			Name:  c.Class,
			Score: c.Value,
			Error: math.Pow(constants.CodewordPositive-c.Value, 2),
		}
	}

	writer, err := database.GetIdentityWriter(ctx)
	if err != nil {
		return nil, err
	}
	return writer.Replace(ctx, photo.ID, identities)
}
