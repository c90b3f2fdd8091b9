package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/Rescribe/core/convert"
	"github.com/FocuswithJustin/Rescribe/internal/logging"
	"github.com/FocuswithJustin/Rescribe/internal/validation"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Finished reports whether the status is terminal.
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job represents an asynchronous conversion job.
type Job struct {
	ID          string         `json:"id"`
	Status      JobStatus      `json:"status"`
	Progress    int            `json:"progress"` // 0-100
	Stage       string         `json:"stage,omitempty"`
	From        string         `json:"from,omitempty"`
	To          string         `json:"to"`
	Filename    string         `json:"filename,omitempty"`
	Result      *ConvertResult `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
	CompletedAt string         `json:"completed_at,omitempty"`

	ctx      context.Context
	cancel   context.CancelFunc
	created  time.Time
	finished time.Time
}

// JobStore manages conversion jobs in memory.
type JobStore struct {
	jobs map[string]*Job
	ttl  time.Duration
	mu   sync.RWMutex

	// OnPendingCount is called with the number of unfinished jobs whenever
	// it may have changed. Optional.
	OnPendingCount func(int)
}

// NewJobStore creates a new job store. Finished jobs older than ttl are
// dropped; a zero ttl keeps them until deleted.
func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

// Create creates a new pending job.
func (s *JobStore) Create(params ConversionParams, filename string) Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now().UTC()

	job := &Job{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		From:      params.From,
		To:        params.To,
		Filename:  filename,
		CreatedAt: now.Format(time.RFC3339),
		UpdatedAt: now.Format(time.RFC3339),
		ctx:       ctx,
		cancel:    cancel,
		created:   now,
	}

	s.jobs[job.ID] = job
	s.notifyLocked()
	return *job
}

// Get retrieves a snapshot of a job by ID.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return Job{}, false
	}
	return *job, true
}

// Update updates a job's status and progress. Updates to a finished job
// are ignored so that a cancellation is not overwritten by its runner.
func (s *JobStore) Update(id string, status JobStatus, progress int, result *ConvertResult, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}
	if job.Status.Finished() {
		return nil
	}

	now := time.Now().UTC()
	job.Status = status
	job.Progress = progress
	job.UpdatedAt = now.Format(time.RFC3339)

	if result != nil {
		job.Result = result
		job.From, job.To = result.From, result.To
	}

	if errMsg != "" {
		job.Error = errMsg
	}

	if status.Finished() {
		job.CompletedAt = now.Format(time.RFC3339)
		job.finished = now
		job.cancel()
	}

	s.notifyLocked()
	return nil
}

// SetStage records the pipeline stage a running job has reached.
func (s *JobStore) SetStage(id, stage string, progress int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists || job.Status.Finished() {
		return
	}
	job.Stage = stage
	if progress > job.Progress {
		job.Progress = progress
	}
	job.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

// Delete removes a job from the store, cancelling it if still running.
func (s *JobStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	job.cancel()
	delete(s.jobs, id)
	s.notifyLocked()
	return nil
}

// List returns snapshots of all jobs, oldest first.
func (s *JobStore) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	slices.SortFunc(jobs, func(a, b Job) int {
		if c := a.created.Compare(b.created); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return jobs
}

// Cancel cancels a pending or running job.
func (s *JobStore) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	if job.Status.Finished() {
		return fmt.Errorf("job cannot be cancelled (status: %s)", job.Status)
	}

	job.cancel()

	now := time.Now().UTC()
	job.Status = JobStatusCancelled
	job.Error = "Job cancelled by user"
	job.UpdatedAt = now.Format(time.RFC3339)
	job.CompletedAt = now.Format(time.RFC3339)
	job.finished = now

	s.notifyLocked()
	return nil
}

// CancelAll cancels every unfinished job.
func (s *JobStore) CancelAll() {
	s.mu.RLock()
	var ids []string
	for id, job := range s.jobs {
		if !job.Status.Finished() {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range ids {
		s.Cancel(id)
	}
}

func (s *JobStore) purgeLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := time.Now().Add(-s.ttl)
	for id, job := range s.jobs {
		if job.Status.Finished() && job.finished.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}

func (s *JobStore) notifyLocked() {
	if s.OnPendingCount == nil {
		return
	}
	n := 0
	for _, job := range s.jobs {
		if !job.Status.Finished() {
			n++
		}
	}
	s.OnPendingCount(n)
}

// runJob executes a conversion job in a goroutine. Stage events of the
// run move the job's progress forward.
func (s *Server) runJob(job Job, req convert.Request) {
	go func() {
		if job.ctx.Err() != nil {
			return
		}
		s.jobs.Update(job.ID, JobStatusRunning, 5, nil, "")

		conv := *s.converter
		conv.Observer = convert.Observers{
			s.converter.Observer,
			convert.ObserverFunc(func(e convert.Event) {
				if !e.Failed() {
					s.jobs.SetStage(job.ID, e.Stage, stageProgress[e.Stage])
				}
			}),
		}

		ctx := logging.WithRequestID(job.ctx, job.ID)
		res, err := conv.Convert(ctx, req)
		if job.ctx.Err() != nil {
			logging.InfoContext(ctx, "job finished after cancellation", "job_id", job.ID)
			return
		}
		if err != nil {
			_, code := errorStatus(err)
			s.jobs.Update(job.ID, JobStatusFailed, 100, nil, code+": "+err.Error())
			return
		}

		result, err := s.convertResult(res)
		if err != nil {
			s.jobs.Update(job.ID, JobStatusFailed, 100, nil, "STORE_FAILED: "+err.Error())
			return
		}
		s.jobs.Update(job.ID, JobStatusCompleted, 100, result, "")
	}()
}

// handleJobs handles POST /jobs - create a conversion job - and GET /jobs -
// list jobs.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jobs := s.jobs.List()
		respondList(w, jobs, len(jobs))
		return
	case http.MethodPost:
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and POST are allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.maxUploadSize())
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}

	if req.To == "" {
		respondError(w, http.StatusBadRequest, "MISSING_PARAMS", "to is required")
		return
	}

	var input []byte
	switch strings.ToLower(req.Encoding) {
	case "", encodingUTF8:
		input = []byte(req.Input)
	case encodingBase64:
		data, err := base64.StdEncoding.DecodeString(req.Input)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "input is not valid base64")
			return
		}
		input = data
	default:
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("unknown encoding %q", req.Encoding))
		return
	}

	if req.Filename != "" {
		if err := validation.ValidateFilename(req.Filename); err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_FILENAME", "Invalid filename provided")
			return
		}
	}

	convReq, err := buildRequest(input, req.Filename, req.ConversionParams)
	if err != nil {
		respondConversionError(w, err)
		return
	}

	job := s.jobs.Create(req.ConversionParams, req.Filename)
	s.runJob(job, convReq)

	respond(w, http.StatusCreated, job)
}

// handleJobByID handles GET /jobs/{id} - get job status - and DELETE
// /jobs/{id} - cancel a running job or remove a finished one.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		job, exists := s.jobs.Get(id)
		if !exists {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
			return
		}
		respond(w, http.StatusOK, job)
	case http.MethodDelete:
		s.deleteJob(w, id)
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and DELETE are allowed")
	}
}

func (s *Server) deleteJob(w http.ResponseWriter, id string) {
	job, exists := s.jobs.Get(id)
	if !exists {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
		return
	}

	if job.Status.Finished() {
		if err := s.jobs.Delete(id); err != nil {
			respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		respond(w, http.StatusOK, map[string]string{"message": "Job deleted"})
		return
	}

	if err := s.jobs.Cancel(id); err != nil {
		respondError(w, http.StatusConflict, "CANCEL_FAILED", err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]string{"message": "Job cancelled"})
}

// handleJobOutput handles GET /jobs/{id}/output, returning the converted
// document of a completed job as is.
func (s *Server) handleJobOutput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	job, exists := s.jobs.Get(id)
	if !exists {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
		return
	}
	if job.Status != JobStatusCompleted || job.Result == nil {
		respondError(w, http.StatusConflict, "JOB_NOT_COMPLETE",
			fmt.Sprintf("Job is %s", job.Status))
		return
	}

	w.Header().Set("Content-Type", job.Result.MimeType)
	w.Header().Set("X-Rescribe-Run-ID", job.Result.RunID)
	w.Header().Set("X-Rescribe-Loss-Class", job.Result.LossClass)
	w.Header().Set("X-Rescribe-Warnings", strconv.Itoa(len(job.Result.Warnings)))
	w.WriteHeader(http.StatusOK)
	w.Write(job.Result.raw)
}

func jobID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "MISSING_ID", "Job ID is required")
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Job ID must be a UUID")
		return "", false
	}
	return id, true
}
