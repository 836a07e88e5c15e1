//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/course-rag/internal/course"
)

const testDim = 8

// setupTestStorage creates a storage instance on a throwaway collection.
// Skips test if Qdrant is not running.
func setupTestStorage(t *testing.T) *QdrantStorage {
	ctx := context.Background()
	storage, err := NewQdrantStorage(ctx, QdrantConfig{
		Host:       "localhost",
		Port:       6334,
		Collection: "course_syllabus_test_" + uuid.NewString()[:8],
	})
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	require.NoError(t, storage.EnsureCollection(ctx, testDim), "Failed to ensure collection")
	t.Cleanup(func() {
		_ = storage.client.DeleteCollection(context.Background(), storage.collection)
		storage.Close()
	})
	return storage
}

func unitVector(hot int) []float32 {
	v := make([]float32, testDim)
	v[hot] = 1
	return v
}

func TestQdrant_UpsertAndQueryRoundTrip(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	id := uuid.NewString()
	err := storage.Upsert(ctx, []Entry{{
		ID:      id,
		Vector:  unitVector(0),
		Content: "期中考试 1 定于 7月17日 晚上7-9点进行",
		Metadata: course.Metadata{
			Chapter:    "期中考试 1",
			Topic:      "python, functions, control",
			Difficulty: course.Intermediate,
			Week:       course.IntPtr(3),
			Type:       course.Exam,
		},
		Generation: "g1",
	}})
	require.NoError(t, err)

	matches, err := storage.Query(ctx, unitVector(0), 3)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, id, m.ID)
	assert.InDelta(t, 1.0, m.Score, 1e-4)
	assert.Equal(t, "期中考试 1", m.Metadata.Chapter)
	assert.Equal(t, course.Exam, m.Metadata.Type)
	assert.Equal(t, course.Intermediate, m.Metadata.Difficulty)
	require.NotNil(t, m.Metadata.Week)
	assert.Equal(t, 3, *m.Metadata.Week)
}

func TestQdrant_BatchUpsertAndDeleteStale(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	// 250 entries span more than one upsert batch.
	entries := make([]Entry, 250)
	for i := range entries {
		gen := "old"
		if i%2 == 0 {
			gen = "new"
		}
		entries[i] = Entry{
			ID:         uuid.NewString(),
			Vector:     unitVector(i % testDim),
			Content:    "chunk",
			Metadata:   course.Metadata{Chapter: "batch", Type: course.Lecture},
			Generation: gen,
		}
	}
	require.NoError(t, storage.Upsert(ctx, entries))

	n, err := storage.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250, n)

	require.NoError(t, storage.DeleteStale(ctx, "new"))
	n, err = storage.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 125, n)
}

func TestQdrant_DimensionValidation(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	err := storage.Upsert(ctx, []Entry{{ID: uuid.NewString(), Vector: make([]float32, 3), Content: "x"}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = storage.Query(ctx, make([]float32, 3), 3)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestQdrant_MissingCollectionQueriesEmpty(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.client.DeleteCollection(ctx, storage.collection))

	matches, err := storage.Query(ctx, unitVector(1), 3)
	require.NoError(t, err)
	assert.Empty(t, matches)

	n, err := storage.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQdrant_ClearRecreatesCollection(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.Upsert(ctx, []Entry{{
		ID: uuid.NewString(), Vector: unitVector(2), Content: "x", Generation: "g",
	}}))
	require.NoError(t, storage.Clear(ctx))

	n, err := storage.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Collection is usable again after clear.
	require.NoError(t, storage.Upsert(ctx, []Entry{{
		ID: uuid.NewString(), Vector: unitVector(2), Content: "y", Generation: "g",
	}}))
}

func TestQdrant_EnsureCollectionRecreatesOnNewDimension(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	dim, err := storage.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, testDim, dim)

	require.NoError(t, storage.Upsert(ctx, []Entry{{
		ID: uuid.NewString(), Vector: unitVector(1), Content: "x", Generation: "g",
	}}))

	require.NoError(t, storage.EnsureCollection(ctx, 4))

	dim, err = storage.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, dim)

	n, err := storage.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "old vectors are dropped with the collection")

	require.NoError(t, storage.Upsert(ctx, []Entry{{
		ID: uuid.NewString(), Vector: []float32{0, 1, 0, 0}, Content: "y", Generation: "g",
	}}))
}
