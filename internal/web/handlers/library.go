package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/orchid/internal/config"
	"github.com/kozaktomas/orchid/internal/database"
	"go.uber.org/zap"
)

// LibraryHandler runs batch identification over the photos of a visitor session.
type LibraryHandler struct {
	config     *config.Config
	identifier Identifier
	jobManager *JobManager
	logger     *zap.Logger
}

// NewLibraryHandler creates a new library handler.
func NewLibraryHandler(cfg *config.Config, identifier Identifier, jm *JobManager, logger *zap.Logger) *LibraryHandler {
	return &LibraryHandler{config: cfg, identifier: identifier, jobManager: jm, logger: logger}
}

// IdentifyRequest selects photos of the session. Empty means all of them.
type IdentifyRequest struct {
	PhotoIDs []int64 `json:"photo_ids"`
}

// StartIdentify starts a background job identifying session photos.
func (h *LibraryHandler) StartIdentify(w http.ResponseWriter, r *http.Request) {
	if h.identifier == nil {
		respondError(w, http.StatusServiceUnavailable, errNoIdentifier.Error())
		return
	}

	var req IdentifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	photos := getPhotoWriter(w, r)
	if photos == nil {
		return
	}
	session := sessionID(r)
	if active := h.jobManager.ActiveJob(session); active != nil {
		respondError(w, http.StatusConflict, "an identification job is already running")
		return
	}

	owned, err := photos.ListBySession(r.Context(), session)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list photos")
		return
	}
	var ids []int64
	for _, p := range owned {
		if len(req.PhotoIDs) == 0 || slices.Contains(req.PhotoIDs, p.ID) {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		respondError(w, http.StatusBadRequest, "no photos to identify")
		return
	}
	slices.Sort(ids)

	job, created := h.jobManager.CreateSessionJob(uuid.New().String(), session, ids)
	if !created {
		respondError(w, http.StatusConflict, "an identification job is already running")
		return
	}
	go h.runIdentifyJob(job)

	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id":       job.ID,
		"total_photos": job.TotalPhotos,
		"status":       string(JobStatusPending),
	})
}

// lookupOwnedJob returns the job if it belongs to the request session.
func (h *LibraryHandler) lookupOwnedJob(r *http.Request, id string) *IdentifyJob {
	job := h.jobManager.GetJob(id)
	if job == nil || job.SessionID != sessionID(r) {
		return nil
	}
	return job
}

// Status returns the status of an identify job.
func (h *LibraryHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.lookupOwnedJob(r, chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams job events via SSE.
func (h *LibraryHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.lookupOwnedJob(r, id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job.(*IdentifyJob).Snapshot()
		},
	)
}

// Cancel cancels an identify job.
func (h *LibraryHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.lookupOwnedJob(r, chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// runIdentifyJob identifies the job photos one by one, emitting a progress
// event per photo. A failing photo is recorded and the job continues.
func (h *LibraryHandler) runIdentifyJob(job *IdentifyJob) {
	ctx, cancel := context.WithCancel(context.Background())
	job.setCancel(cancel)
	defer cancel()

	job.mu.Lock()
	if job.Status == JobStatusCancelled {
		job.mu.Unlock()
		return
	}
	job.Status = JobStatusRunning
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "started", Message: "Identification started"})

	photos, err := database.GetPhotoReader(ctx)
	if err != nil {
		h.failJob(job, err)
		return
	}

	result := &IdentifyJobResult{}
	for i, id := range job.PhotoIDs {
		if ctx.Err() != nil {
			return
		}

		identities, err := h.identifyOne(ctx, photos, id)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("photo %d: %v", id, err))
			h.logger.Warn("identification failed", zap.String("job_id", job.ID), zap.Int64("photo_id", id), zap.Error(err))
		} else {
			result.Identified++
		}

		job.mu.Lock()
		job.ProcessedPhotos = i + 1
		job.mu.Unlock()

		data := map[string]any{
			"photo_id":  id,
			"processed": i + 1,
			"total":     job.TotalPhotos,
		}
		if err != nil {
			data["error"] = err.Error()
		} else {
			data["identities"] = toIdentityResponses(identities)
		}
		job.SendEvent(JobEvent{Type: "progress", Data: data})
	}

	if job.finish(JobStatusCompleted, result, "") {
		job.SendEvent(JobEvent{Type: "completed", Message: "Identification completed", Data: result})
	}
}

func (h *LibraryHandler) identifyOne(ctx context.Context, photos database.PhotoReader, id int64) ([]database.Identity, error) {
	photo, err := photos.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if photo == nil {
		return nil, errors.New("photo not found")
	}
	return identifyPhoto(ctx, h.config, h.identifier, photo, h.logger)
}

func (h *LibraryHandler) failJob(job *IdentifyJob, err error) {
	if job.finish(JobStatusFailed, nil, err.Error()) {
		job.SendEvent(JobEvent{Type: "failed", Message: err.Error()})
	}
}
