package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and embedded setups.
type MemoryStore struct {
	mu   sync.Mutex
	jobs []Job
}

// NewMemoryStore creates an empty in-memory queue store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Enqueue appends a new pending job.
func (s *MemoryStore) Enqueue(_ context.Context, kind JobKind, payload map[string]any) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	job := Job{
		ID:         uuid.New(),
		Kind:       kind,
		Payload:    payload,
		Status:     StatusPending,
		EnqueuedAt: now,
		UpdatedAt:  now,
	}
	s.jobs = append(s.jobs, job)
	return &job, nil
}

// ClaimNextPending claims the first pending job in enqueue order.
func (s *MemoryStore) ClaimNextPending(_ context.Context) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.jobs {
		if s.jobs[i].Status != StatusPending {
			continue
		}
		s.jobs[i].Status = StatusProcessing
		s.jobs[i].UpdatedAt = time.Now().UTC()
		claimed := s.jobs[i]
		return &claimed, nil
	}
	return nil, nil
}

// MarkCompleted transitions a job to completed.
func (s *MemoryStore) MarkCompleted(_ context.Context, id uuid.UUID) error {
	return s.update(id, func(j *Job) {
		j.Status = StatusCompleted
		j.Error = ""
	})
}

// MarkFailed transitions a job to failed and records the error.
func (s *MemoryStore) MarkFailed(_ context.Context, id uuid.UUID, msg string) error {
	return s.update(id, func(j *Job) {
		j.Status = StatusFailed
		j.Attempts++
		j.Error = msg
	})
}

// Snapshot returns a copy of all jobs. Test helper.
func (s *MemoryStore) Snapshot() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

func (s *MemoryStore) update(id uuid.UUID, mutate func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.jobs {
		if s.jobs[i].ID != id {
			continue
		}
		mutate(&s.jobs[i])
		s.jobs[i].UpdatedAt = time.Now().UTC()
		return nil
	}
	return fmt.Errorf("job %s not found", id)
}
