package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/terra-clan/puzzle-engine/internal/models"
)

type memoryJob struct {
	job       models.Job
	expiresAt time.Time
}

// MemoryStore keeps jobs and the pregen cache in process memory
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	jobs  map[string]*memoryJob
	cache map[models.PuzzleType][]*models.Puzzle
}

// NewMemoryStore creates an in-memory store. A non-positive ttl uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:   ttl,
		now:   time.Now,
		jobs:  make(map[string]*memoryJob),
		cache: make(map[models.PuzzleType][]*models.Puzzle),
	}
}

// lookup returns a live job, dropping it if expired. Caller holds mu.
func (s *MemoryStore) lookup(id string) (*memoryJob, bool) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	if !s.now().Before(j.expiresAt) {
		delete(s.jobs, id)
		return nil, false
	}
	return j, true
}

// sweep drops every expired job. Caller holds mu.
func (s *MemoryStore) sweep() {
	now := s.now()
	for id, j := range s.jobs {
		if !now.Before(j.expiresAt) {
			delete(s.jobs, id)
		}
	}
}

func (s *MemoryStore) Create(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	if _, ok := s.jobs[id]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, id)
	}

	now := s.now()
	s.jobs[id] = &memoryJob{
		job: models.Job{
			ID:        id,
			Status:    models.JobPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		expiresAt: now.Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) Complete(_ context.Context, id string, puzzle *models.Puzzle) error {
	return s.finish(id, func(j *models.Job) {
		j.Status = models.JobCompleted
		j.Puzzle = puzzle
	})
}

func (s *MemoryStore) Fail(_ context.Context, id string, msg string) error {
	return s.finish(id, func(j *models.Job) {
		j.Status = models.JobError
		j.Error = msg
	})
}

func (s *MemoryStore) finish(id string, apply func(*models.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if j.job.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrJobTerminal, id)
	}

	apply(&j.job)
	j.job.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	job := j.job
	return &job, nil
}

func (s *MemoryStore) TryPop(_ context.Context, t models.PuzzleType) (*models.Puzzle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.cache[t]
	if len(queue) == 0 {
		return nil, nil
	}
	p := queue[0]
	s.cache[t] = queue[1:]
	return p, nil
}

func (s *MemoryStore) Push(_ context.Context, p *models.Puzzle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[p.Type] = append(s.cache[p.Type], p)
	return nil
}

func (s *MemoryStore) Size(_ context.Context, t models.PuzzleType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache[t]), nil
}
