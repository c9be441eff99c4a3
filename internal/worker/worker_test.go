package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearbasin/planengine/internal/observability"
	"github.com/clearbasin/planengine/internal/queue"
)

func TestLoop_RunOnceDispatchesByKind(t *testing.T) {
	store := queue.NewMemoryStore()
	ctx := context.Background()

	job, err := store.Enqueue(ctx, queue.KindExtractPDF, map[string]any{"uploadId": "u1"})
	require.NoError(t, err)

	var got *queue.Job
	loop := NewLoop(store, time.Millisecond, observability.Nop())
	loop.Register(queue.KindExtractPDF, ProcessorFunc(func(_ context.Context, j *queue.Job) error {
		got = j
		return nil
	}))

	claimed, err := loop.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, claimed)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)

	jobs := store.Snapshot()
	require.Len(t, jobs, 1)
	assert.Equal(t, queue.StatusCompleted, jobs[0].Status)
}

func TestLoop_UnknownKindFailsJobNotLoop(t *testing.T) {
	store := queue.NewMemoryStore()
	ctx := context.Background()

	_, err := store.Enqueue(ctx, queue.JobKind("bogus"), nil)
	require.NoError(t, err)

	loop := NewLoop(store, time.Millisecond, observability.Nop())
	claimed, err := loop.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, claimed)

	jobs := store.Snapshot()
	require.Len(t, jobs, 1)
	assert.Equal(t, queue.StatusFailed, jobs[0].Status)
	assert.Contains(t, jobs[0].Error, "unknown job kind")
	assert.Equal(t, 1, jobs[0].Attempts)
}

func TestLoop_ProcessorErrorMarksFailed(t *testing.T) {
	store := queue.NewMemoryStore()
	ctx := context.Background()

	_, err := store.Enqueue(ctx, queue.KindExtractPDF, nil)
	require.NoError(t, err)

	loop := NewLoop(store, time.Millisecond, observability.Nop())
	loop.Register(queue.KindExtractPDF, ProcessorFunc(func(context.Context, *queue.Job) error {
		return errors.New("source document unreadable")
	}))

	_, err = loop.RunOnce(ctx)
	require.NoError(t, err)

	jobs := store.Snapshot()
	assert.Equal(t, queue.StatusFailed, jobs[0].Status)
	assert.Equal(t, "source document unreadable", jobs[0].Error)
}

func TestLoop_ProcessorPanicIsContained(t *testing.T) {
	store := queue.NewMemoryStore()
	ctx := context.Background()

	_, err := store.Enqueue(ctx, queue.KindExtractPDF, nil)
	require.NoError(t, err)

	loop := NewLoop(store, time.Millisecond, observability.Nop())
	loop.Register(queue.KindExtractPDF, ProcessorFunc(func(context.Context, *queue.Job) error {
		panic("malformed page tree")
	}))

	_, err = loop.RunOnce(ctx)
	require.NoError(t, err)

	jobs := store.Snapshot()
	assert.Equal(t, queue.StatusFailed, jobs[0].Status)
	assert.Contains(t, jobs[0].Error, "processor panic")
}

func TestLoop_RunStopsOnContextCancel(t *testing.T) {
	store := queue.NewMemoryStore()
	loop := NewLoop(store, time.Millisecond, observability.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
}
