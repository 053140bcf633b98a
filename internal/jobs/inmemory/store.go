package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/yagudaev/openfinance-sub000/internal/jobs"
)

// Store is an in-memory implementation of JobStore.
// It is safe for concurrent use. Data is lost on service restart.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]jobs.Job
}

// NewStore creates a new in-memory job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]jobs.Job),
	}
}

// SaveJob saves or updates a job snapshot in memory.
func (s *Store) SaveJob(ctx context.Context, job jobs.Job) error {
	if job.GetID() == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.GetID()] = job.Clone()
	return nil
}

// GetJob retrieves a job by ID from memory.
func (s *Store) GetJob(ctx context.Context, jobID string) (jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	return job.Clone(), nil
}

// ListJobs retrieves jobs with optional filtering from memory.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []jobs.Job
	for _, job := range s.jobs {
		if filter.Type != "" && job.GetType() != filter.Type {
			continue
		}
		if filter.Status != "" && job.GetStatus() != filter.Status {
			continue
		}
		result = append(result, job.Clone())
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []jobs.Job{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

var _ jobs.JobStore = (*Store)(nil)
