package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/slidecast/slidecast/internal/models"
	"github.com/slidecast/slidecast/internal/store"
	"github.com/slidecast/slidecast/internal/worker"
)

type Handler struct {
	jobs         store.JobStore
	orchestrator *worker.Orchestrator
	validate     *validator.Validate
}

func NewHandler(jobs store.JobStore, orchestrator *worker.Orchestrator) *Handler {
	return &Handler{
		jobs:         jobs,
		orchestrator: orchestrator,
		validate:     validator.New(),
	}
}

// CreateJob handles POST /v1/jobs: validate the canonical request, register
// the job, and return its id immediately. Nothing is created on a bad
// request.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req models.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.register(w, r, req)
}

// CreateJobN8N handles POST /v1/jobs/n8n: the legacy automation payload,
// converted to the canonical schema at the boundary.
func (h *Handler) CreateJobN8N(w http.ResponseWriter, r *http.Request) {
	var legacy models.N8NRequest
	if err := json.NewDecoder(r.Body).Decode(&legacy); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(legacy); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	h.register(w, r, models.FromN8N(legacy))
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request, req models.CreateJobRequest) {
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	job, err := h.orchestrator.Register(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to register job")
		return
	}

	respondJSON(w, http.StatusAccepted, models.CreateJobResponse{
		JobID: job.ID,
		State: job.State,
	})
}

// GetJob handles GET /v1/jobs/{id}. Reading status never mutates the job.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := h.jobs.Get(jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Job not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load job")
		return
	}

	respondJSON(w, http.StatusOK, models.StatusOf(job))
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"jobs":   h.jobs.Len(),
	})
}

// validationMessage flattens the first validator error into something a
// client can act on.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		switch f.Tag() {
		case "required", "min":
			return "Missing required field: " + f.Field()
		case "url":
			return "Field " + f.Field() + " must be a valid URL"
		}
		return "Invalid value for field: " + f.Field()
	}
	return "Invalid request"
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
