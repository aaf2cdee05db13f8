package store

import (
	"errors"

	"github.com/google/uuid"

	"github.com/slidecast/slidecast/internal/models"
)

// ErrNotFound is returned for unknown or already-evicted job ids.
var ErrNotFound = errors.New("job not found")

// JobStore is the process-wide job table. Each job's record is mutated only
// by its own worker task, so implementations need atomic per-key operations
// but no broader locking discipline.
type JobStore interface {
	// Create registers a new job record.
	Create(job *models.Job) error

	// Get returns a snapshot of the job. Reading never mutates state.
	Get(id uuid.UUID) (*models.Job, error)

	// Update applies mutate to the stored record atomically and returns the
	// resulting snapshot. Terminal jobs are immutable: updates against a
	// completed or failed job are ignored and the current snapshot returned.
	Update(id uuid.UUID, mutate func(*models.Job)) (*models.Job, error)

	// Evict removes the record. Idempotent.
	Evict(id uuid.UUID)

	// Len reports the number of live records (for health/diagnostics).
	Len() int
}
