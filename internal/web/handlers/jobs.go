package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/orchid/internal/constants"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IdentifyJob identifies the photos of a visitor session in the background.
type IdentifyJob struct {
	EventBroadcaster

	ID              string             `json:"id"`
	SessionID       string             `json:"-"`
	PhotoIDs        []int64            `json:"photo_ids"`
	Status          JobStatus          `json:"status"`
	TotalPhotos     int                `json:"total_photos"`
	ProcessedPhotos int                `json:"processed_photos"`
	Error           string             `json:"error,omitempty"`
	StartedAt       time.Time          `json:"started_at"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	Result          *IdentifyJobResult `json:"result,omitempty"`
}

// IdentifyJobResult summarizes a finished job.
type IdentifyJobResult struct {
	Identified int      `json:"identified"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

// GetStatus returns the current job status (implements SSEJob).
func (j *IdentifyJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Snapshot returns a copy of the job fields safe to encode while the job runs.
func (j *IdentifyJob) Snapshot() IdentifyJob {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return IdentifyJob{
		ID:              j.ID,
		PhotoIDs:        j.PhotoIDs,
		Status:          j.Status,
		TotalPhotos:     j.TotalPhotos,
		ProcessedPhotos: j.ProcessedPhotos,
		Error:           j.Error,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
		Result:          j.Result,
	}
}

// Cancel cancels the job.
func (j *IdentifyJob) Cancel() {
	j.mu.Lock()
	if isJobTerminal(j.Status) {
		j.mu.Unlock()
		return
	}
	j.Status = JobStatusCancelled
	now := time.Now()
	j.CompletedAt = &now
	j.mu.Unlock()
	j.EventBroadcaster.Cancel()
}

// finish moves a running job to a terminal state unless it was cancelled.
func (j *IdentifyJob) finish(status JobStatus, result *IdentifyJobResult, errMsg string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status == JobStatusCancelled {
		return false
	}
	now := time.Now()
	j.Status = status
	j.Result = result
	j.Error = errMsg
	j.CompletedAt = &now
	return true
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners. A full listener skips the
// event, except a terminal one, which replaces the oldest pending event.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	terminal := isTerminalEvent(event.Type)
	for _, listener := range b.listeners {
		deliver(listener, event, terminal)
	}
}

func deliver(listener chan JobEvent, event JobEvent, force bool) {
	for {
		select {
		case listener <- event:
			return
		default:
		}
		if !force {
			return
		}
		select {
		case <-listener:
		default:
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

func (b *EventBroadcaster) setCancel(cancel context.CancelFunc) {
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async jobs.
type JobManager struct {
	jobs map[string]*IdentifyJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*IdentifyJob),
	}
}

// CreateSessionJob creates a pending identify job unless the session already
// has an active one, which is returned with false instead.
func (m *JobManager) CreateSessionJob(id, sessionID string, photoIDs []int64) (*IdentifyJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if active := m.activeJobLocked(sessionID); active != nil {
		return active, false
	}
	job := newIdentifyJob(id, sessionID, photoIDs)
	m.jobs[id] = job
	return job, true
}

func newIdentifyJob(id, sessionID string, photoIDs []int64) *IdentifyJob {
	return &IdentifyJob{
		ID:          id,
		SessionID:   sessionID,
		PhotoIDs:    photoIDs,
		Status:      JobStatusPending,
		TotalPhotos: len(photoIDs),
		StartedAt:   time.Now(),
	}
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *IdentifyJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ActiveJob returns the pending or running job of a session, if any.
func (m *JobManager) ActiveJob(sessionID string) *IdentifyJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeJobLocked(sessionID)
}

func (m *JobManager) activeJobLocked(sessionID string) *IdentifyJob {
	for _, job := range m.jobs {
		if job.SessionID == sessionID && !isJobTerminal(job.GetStatus()) {
			return job
		}
	}
	return nil
}

// Prune removes terminal jobs completed before the cutoff.
func (m *JobManager) Prune(before time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, job := range m.jobs {
		snap := job.Snapshot()
		if isJobTerminal(snap.Status) && snap.CompletedAt != nil && snap.CompletedAt.Before(before) {
			delete(m.jobs, id)
			n++
		}
	}
	return n
}
