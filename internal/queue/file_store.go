package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FileStore persists the queue as a single JSON list on disk. Every
// operation reads and rewrites the whole list. A missing or corrupt file is
// treated as an empty queue, not an error.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed queue store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, "queue.json")}
}

func (s *FileStore) read() []Job {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var list []Job
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return list
}

func (s *FileStore) write(list []Job) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure queue dir: %w", err)
	}
	raw, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal queue: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("write queue: %w", err)
	}
	return nil
}

// Enqueue appends a new pending job.
func (s *FileStore) Enqueue(_ context.Context, kind JobKind, payload map[string]any) (*Job, error) {
	now := time.Now().UTC()
	job := Job{
		ID:         uuid.New(),
		Kind:       kind,
		Payload:    payload,
		Status:     StatusPending,
		EnqueuedAt: now,
		UpdatedAt:  now,
	}
	list := append(s.read(), job)
	if err := s.write(list); err != nil {
		return nil, err
	}
	return &job, nil
}

// ClaimNextPending claims the first pending job in stored order.
func (s *FileStore) ClaimNextPending(_ context.Context) (*Job, error) {
	list := s.read()
	for i := range list {
		if list[i].Status != StatusPending {
			continue
		}
		list[i].Status = StatusProcessing
		list[i].UpdatedAt = time.Now().UTC()
		if err := s.write(list); err != nil {
			return nil, err
		}
		claimed := list[i]
		return &claimed, nil
	}
	return nil, nil
}

// MarkCompleted transitions a job to completed.
func (s *FileStore) MarkCompleted(_ context.Context, id uuid.UUID) error {
	return s.update(id, func(j *Job) {
		j.Status = StatusCompleted
		j.Error = ""
	})
}

// MarkFailed transitions a job to failed and records the error.
func (s *FileStore) MarkFailed(_ context.Context, id uuid.UUID, msg string) error {
	return s.update(id, func(j *Job) {
		j.Status = StatusFailed
		j.Attempts++
		j.Error = msg
	})
}

func (s *FileStore) update(id uuid.UUID, mutate func(*Job)) error {
	list := s.read()
	for i := range list {
		if list[i].ID != id {
			continue
		}
		mutate(&list[i])
		list[i].UpdatedAt = time.Now().UTC()
		return s.write(list)
	}
	return fmt.Errorf("job %s not found", id)
}
