package queue

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_ClaimExhaustsInEnqueueOrder(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()

	first, err := store.Enqueue(ctx, KindExtractPDF, map[string]any{"uploadId": "a"})
	require.NoError(t, err)
	second, err := store.Enqueue(ctx, KindExtractPDF, map[string]any{"uploadId": "b"})
	require.NoError(t, err)

	claimed1, err := store.ClaimNextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed1)
	assert.Equal(t, first.ID, claimed1.ID)
	assert.Equal(t, StatusProcessing, claimed1.Status)

	claimed2, err := store.ClaimNextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed2)
	assert.Equal(t, second.ID, claimed2.ID)

	// Each job is claimed exactly once.
	claimed3, err := store.ClaimNextPending(ctx)
	require.NoError(t, err)
	assert.Nil(t, claimed3)
}

func TestFileStore_EmptyAndCorruptQueueReturnNone(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()

	job, err := store.ClaimNextPending(ctx)
	require.NoError(t, err)
	assert.Nil(t, job)

	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "queue.json"), []byte("{not json"), 0o644))

	job, err = store.ClaimNextPending(ctx)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestFileStore_MarkCompletedClearsError(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()

	job, err := store.Enqueue(ctx, KindExtractPDF, nil)
	require.NoError(t, err)

	_, err = store.ClaimNextPending(ctx)
	require.NoError(t, err)

	require.NoError(t, store.MarkFailed(ctx, job.ID, "boom"))
	list := store.read()
	require.Len(t, list, 1)
	assert.Equal(t, StatusFailed, list[0].Status)
	assert.Equal(t, 1, list[0].Attempts)
	assert.Equal(t, "boom", list[0].Error)

	require.NoError(t, store.MarkCompleted(ctx, job.ID))
	list = store.read()
	assert.Equal(t, StatusCompleted, list[0].Status)
	assert.Empty(t, list[0].Error)
	// Attempts only increment on failure.
	assert.Equal(t, 1, list[0].Attempts)
}

func TestFileStore_StatePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	_, err := NewFileStore(dir).Enqueue(ctx, KindExtractPDF, map[string]any{"uploadId": "x"})
	require.NoError(t, err)

	reopened := NewFileStore(dir)
	job, err := reopened.ClaimNextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "x", job.Payload["uploadId"])
}
