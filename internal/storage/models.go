// Package storage is the vector index client: it stores chunk vectors with their
// content and metadata, and answers top-k cosine similarity queries.
package storage

import (
	"context"
	"fmt"

	"github.com/bull/course-rag/internal/course"
)

// DefaultCollection is the collection (or table) holding all syllabus chunks.
const DefaultCollection = "course_syllabus"

// Entry is the persisted unit of the index: one per chunk ID.
// Content rides along with the metadata so queries never need a second lookup.
type Entry struct {
	ID         string
	Vector     []float32
	Content    string
	Metadata   course.Metadata
	Generation string // index build that wrote this entry
}

// Match is a query hit with its cosine similarity score.
type Match struct {
	ID       string
	Score    float64
	Content  string
	Metadata course.Metadata
}

// Index is the contract the pipeline has with a vector store.
type Index interface {
	// EnsureCollection prepares the store for vectors of the given size. Idempotent.
	EnsureCollection(ctx context.Context, dim int) error
	// Upsert writes entries, replacing any existing entry with the same ID.
	Upsert(ctx context.Context, entries []Entry) error
	// Query returns at most topK entries ordered by descending cosine similarity.
	// An empty or missing index yields no matches and no error.
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	// DeleteStale removes every entry not written by the given generation.
	DeleteStale(ctx context.Context, keepGeneration string) error
	// Clear removes all entries.
	Clear(ctx context.Context) error
	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)
	// Dimension returns the vector size the store is laid out for, or 0 when
	// nothing has been stored or created yet.
	Dimension(ctx context.Context) (int, error)
	Health(ctx context.Context) error
	Close() error
}

func validateEntries(entries []Entry, dim int) error {
	for i, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("%w: entry %d has no id", ErrInvalidEntry, i)
		}
		if e.Content == "" {
			return fmt.Errorf("%w: entry %s has no content", ErrInvalidEntry, e.ID)
		}
		if dim > 0 && len(e.Vector) != dim {
			return fmt.Errorf("%w: entry %s has %d dimensions, expected %d",
				ErrDimensionMismatch, e.ID, len(e.Vector), dim)
		}
	}
	return nil
}
