package storage

import (
	"context"
	"sync"
)

// MemoryStorage is an in-process index using brute-force cosine similarity.
// It keeps the fixed payload record, not the caller's Entry, so it behaves like
// the remote stores with respect to metadata coercion.
type MemoryStorage struct {
	mu      sync.RWMutex
	dim     int
	entries map[string]memoryEntry
}

type memoryEntry struct {
	vector  []float32
	payload payload
}

// NewMemoryStorage creates an empty in-memory index.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStorage) EnsureCollection(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dim != dim {
		// A new vector size invalidates everything stored so far.
		s.dim = dim
		s.entries = make(map[string]memoryEntry)
	}
	return nil
}

func (s *MemoryStorage) Upsert(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateEntries(entries, s.dim); err != nil {
		return err
	}
	for _, e := range entries {
		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)
		s.entries[e.ID] = memoryEntry{vector: vec, payload: payloadFor(e)}
	}
	return nil
}

func (s *MemoryStorage) Query(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 || limit <= 0 {
		return nil, nil
	}
	if s.dim > 0 && len(vector) != s.dim {
		return nil, ErrDimensionMismatch
	}

	matches := make([]Match, 0, len(s.entries))
	for id, e := range s.entries {
		matches = append(matches, Match{
			ID:       id,
			Score:    cosine(vector, e.vector),
			Content:  e.payload.Content,
			Metadata: e.payload.metadata(),
		})
	}
	return topK(matches, limit), nil
}

func (s *MemoryStorage) DeleteStale(ctx context.Context, keepGeneration string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if e.payload.Generation != keepGeneration {
			delete(s.entries, id)
		}
	}
	return nil
}

func (s *MemoryStorage) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]memoryEntry)
	return nil
}

func (s *MemoryStorage) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *MemoryStorage) Dimension(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return 0, nil
	}
	return s.dim, nil
}

func (s *MemoryStorage) Health(ctx context.Context) error { return nil }

func (s *MemoryStorage) Close() error { return nil }

var _ Index = (*MemoryStorage)(nil)
