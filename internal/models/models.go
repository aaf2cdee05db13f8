package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Enums
type JobState string

const (
	JobStateRegistered  JobState = "registered"
	JobStateDownloading JobState = "downloading"
	JobStateProcessing  JobState = "processing"
	JobStateUploading   JobState = "uploading"
	JobStateCompleted   JobState = "completed"
	JobStateFailed      JobState = "failed"
)

// IsTerminal reports whether a job in this state accepts no further mutation.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

type CaptionPosition string

const (
	CaptionTop    CaptionPosition = "top"
	CaptionCenter CaptionPosition = "center"
	CaptionBottom CaptionPosition = "bottom"
)

// Models

// SlideSpec is one slide's declared inputs before any asset resolution.
// Order within Job.Slides defines the video sequence.
type SlideSpec struct {
	ImageRef     string       `json:"image_ref"`
	NarrationRef string       `json:"narration_ref,omitempty"`
	Caption      *CaptionSpec `json:"caption,omitempty"`
}

type CaptionSpec struct {
	Text     string          `json:"text"`
	Color    string          `json:"color,omitempty"`
	Position CaptionPosition `json:"position,omitempty"`
	FontSize int             `json:"font_size,omitempty"` // 0 = derive from text length
}

// Job is the unit of work. Its mutable fields are owned exclusively by the
// worker task that runs the job; everyone else reads snapshots via the store.
type Job struct {
	ID         uuid.UUID   `json:"id"`
	RequestID  string      `json:"request_id"`
	State      JobState    `json:"state"`
	Slides     []SlideSpec `json:"slides"`
	MusicRef   string      `json:"music_ref,omitempty"`
	WebhookURL string      `json:"webhook_url"`
	Error      string      `json:"error,omitempty"`      // set only in failed state
	ResultURL  string      `json:"result_url,omitempty"` // set only in completed state
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// CaptionLayer is a caption after line-wrapping and styling defaults,
// ready for the renderer.
type CaptionLayer struct {
	Lines    []string
	FontSize int
	Color    string
	Position CaptionPosition
}

// ResolvedClip is one slide after asset acquisition and duration resolution.
// Owned by a single pipeline run, never shared across jobs.
type ResolvedClip struct {
	Index         int
	ImagePath     string
	NarrationPath string // empty = no narration, span is silent
	Caption       *CaptionLayer
	Duration      float64 // seconds, always > 0
}

// RenderSpec is the complete description handed to the renderer.
// Immutable once constructed.
type RenderSpec struct {
	OutputPath         string
	Width              int
	Height             int
	FPS                int
	Clips              []ResolvedClip
	AudioPath          string // master audio track, empty = silent output
	TransitionDuration float64
}

// TotalDuration returns the sum of all clip durations in seconds.
func (s RenderSpec) TotalDuration() float64 {
	var total float64
	for _, c := range s.Clips {
		total += c.Duration
	}
	return total
}

// DTOs for the API

type SlideRequest struct {
	ImageRef     string       `json:"image_ref" validate:"required"`
	NarrationRef string       `json:"narration_ref,omitempty"`
	Caption      *CaptionSpec `json:"caption,omitempty"`
}

type CreateJobRequest struct {
	RequestID  string         `json:"request_id,omitempty"`
	Slides     []SlideRequest `json:"slides" validate:"required,min=1,dive"`
	MusicRef   string         `json:"music_ref,omitempty"`
	WebhookURL string         `json:"webhook_url" validate:"required,url"`
}

type CreateJobResponse struct {
	JobID uuid.UUID `json:"job_id"`
	State JobState  `json:"state"`
}

type JobStatusResponse struct {
	JobID     uuid.UUID `json:"job_id"`
	RequestID string    `json:"request_id,omitempty"`
	State     JobState  `json:"state"`
	ResultURL string    `json:"result_url,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WebhookPayload is POSTed to the job's webhook URL on terminal state.
type WebhookPayload struct {
	JobID       uuid.UUID `json:"job_id"`
	RequestID   string    `json:"request_id,omitempty"`
	Success     bool      `json:"success"`
	VideoURL    string    `json:"video_url,omitempty"`
	VideoBase64 string    `json:"video_base64,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// NewJob builds a registered job from a validated request.
func NewJob(req CreateJobRequest) *Job {
	id := uuid.New()
	requestID := SanitizeRequestID(req.RequestID)
	if requestID == "" {
		requestID = id.String()
	}

	slides := make([]SlideSpec, len(req.Slides))
	for i, s := range req.Slides {
		slides[i] = SlideSpec{
			ImageRef:     s.ImageRef,
			NarrationRef: s.NarrationRef,
			Caption:      s.Caption,
		}
	}

	now := time.Now()
	return &Job{
		ID:         id,
		RequestID:  requestID,
		State:      JobStateRegistered,
		Slides:     slides,
		MusicRef:   req.MusicRef,
		WebhookURL: req.WebhookURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// StatusOf builds the status DTO for a job snapshot.
func StatusOf(j *Job) JobStatusResponse {
	return JobStatusResponse{
		JobID:     j.ID,
		RequestID: j.RequestID,
		State:     j.State,
		ResultURL: j.ResultURL,
		Error:     j.Error,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// SanitizeRequestID reduces a caller-supplied correlation key to a
// filesystem-safe token. Anything outside [A-Za-z0-9._-] becomes '_'.
func SanitizeRequestID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	// Guard against path tricks like "." or ".."
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return ""
	}
	if len(out) > 64 {
		out = out[:64]
	}
	return out
}
