// Package queue provides the durable job queue consumed by the worker loop.
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a queued job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// JobKind identifies the work a job describes.
type JobKind string

// KindExtractPDF is the only job kind the pipeline currently handles.
const KindExtractPDF JobKind = "extract_pdf"

// Job is a unit of queued work.
type Job struct {
	ID         uuid.UUID      `json:"id"`
	Kind       JobKind        `json:"kind"`
	Payload    map[string]any `json:"payload"`
	Status     JobStatus      `json:"status"`
	Attempts   int            `json:"attempts"`
	Error      string         `json:"error,omitempty"`
	EnqueuedAt time.Time      `json:"enqueuedAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Store is the queue abstraction injected into the worker loop.
//
// Implementations are single-writer: claim is a read-modify-write with no
// cross-process lock, so only one worker process may run against a store.
type Store interface {
	// Enqueue appends a new job in pending state.
	Enqueue(ctx context.Context, kind JobKind, payload map[string]any) (*Job, error)
	// ClaimNextPending transitions the first pending job (in enqueue order)
	// to processing and returns it. Returns (nil, nil) when no pending job
	// exists.
	ClaimNextPending(ctx context.Context) (*Job, error)
	// MarkCompleted transitions a processing job to completed and clears
	// its error.
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	// MarkFailed transitions a job to failed, increments its attempt count
	// and records the error message. Failed jobs are terminal; re-processing
	// requires a new enqueue.
	MarkFailed(ctx context.Context, id uuid.UUID, msg string) error
}
