// Package embedding turns text into fixed-dimension, L2-normalized vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

var (
	// ErrModelLoad wraps any failure to load the embedding model. It is retryable.
	ErrModelLoad = errors.New("embedding model load failed")

	// ErrEmptyEmbedding is returned when a model produces no vector for an input.
	ErrEmptyEmbedding = errors.New("model returned no embedding")
)

// Model is a loaded embedding model.
type Model interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Loader loads a Model. It is called at most once per successful load.
type Loader func(ctx context.Context) (Model, error)

// Embedder lazily loads a Model on first use and caches it for the process lifetime.
// Concurrent first callers share a single load; a failed load is not cached.
// Loaded and ModelName never wait for a load in progress.
type Embedder struct {
	loader Loader

	loadMu sync.Mutex
	model  atomic.Pointer[loadedModel]
}

type loadedModel struct {
	Model
}

// NewEmbedder creates an Embedder that loads its model with loader.
func NewEmbedder(loader Loader) *Embedder {
	return &Embedder{loader: loader}
}

// Initialize loads the model if it is not loaded yet. Safe for concurrent use.
func (e *Embedder) Initialize(ctx context.Context) error {
	_, err := e.loaded(ctx)
	return err
}

func (e *Embedder) loaded(ctx context.Context) (Model, error) {
	if m := e.model.Load(); m != nil {
		return m.Model, nil
	}

	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	if m := e.model.Load(); m != nil {
		return m.Model, nil
	}

	model, err := e.loader(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	if model == nil {
		return nil, fmt.Errorf("%w: loader returned no model", ErrModelLoad)
	}
	e.model.Store(&loadedModel{Model: model})
	return model, nil
}

// Loaded reports whether the model has been loaded.
func (e *Embedder) Loaded() bool {
	return e.model.Load() != nil
}

// Dimension returns the vector size, loading the model if needed.
func (e *Embedder) Dimension(ctx context.Context) (int, error) {
	model, err := e.loaded(ctx)
	if err != nil {
		return 0, err
	}
	return model.Dimension(), nil
}

// ModelName returns the loaded model name, or "" before the first load.
func (e *Embedder) ModelName() string {
	m := e.model.Load()
	if m == nil {
		return ""
	}
	return m.Name()
}

// Embed returns the vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per text, in input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model, err := e.loaded(ctx)
	if err != nil {
		return nil, err
	}

	vectors, err := model.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed with %s: %w", model.Name(), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed with %s: got %d vectors for %d texts", model.Name(), len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("text %d: %w", i, ErrEmptyEmbedding)
		}
	}
	return vectors, nil
}

// normalize scales v to unit length in place. Zero vectors are left as is.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
