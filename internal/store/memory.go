package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slidecast/slidecast/internal/logger"
	"github.com/slidecast/slidecast/internal/models"
)

// MemoryStore keeps job records in a mutex-guarded map and evicts them on a
// fixed retention window after creation. Eviction is time-based, not LRU —
// job lifetimes are bounded, so age is the only signal that matters.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[uuid.UUID]*models.Job
	retention time.Duration
	log       *logger.Logger
	stop      chan struct{}
	stopOnce  sync.Once
}

const janitorInterval = time.Minute

func NewMemoryStore(retention time.Duration) *MemoryStore {
	s := &MemoryStore{
		jobs:      make(map[uuid.UUID]*models.Job),
		retention: retention,
		log:       logger.New("store"),
		stop:      make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *MemoryStore) Create(job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = snapshot(job)
	return nil
}

func (s *MemoryStore) Get(id uuid.UUID) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return snapshot(job), nil
}

func (s *MemoryStore) Update(id uuid.UUID, mutate func(*models.Job)) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !job.State.IsTerminal() {
		mutate(job)
		job.UpdatedAt = time.Now()
	}
	return snapshot(job), nil
}

func (s *MemoryStore) Evict(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Close stops the janitor goroutine.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.evictExpired(time.Now())
		}
	}
}

// evictExpired removes jobs created before now-retention. Split out so tests
// can drive it with a synthetic clock.
func (s *MemoryStore) evictExpired(now time.Time) {
	cutoff := now.Add(-s.retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			s.log.Debugf("evicted job %s (age > %s)", id, s.retention)
		}
	}
}

// snapshot copies a job record so callers never share the stored pointer.
// Slides are immutable after registration, so a shallow slice copy is enough.
func snapshot(j *models.Job) *models.Job {
	cp := *j
	cp.Slides = append([]models.SlideSpec(nil), j.Slides...)
	return &cp
}
