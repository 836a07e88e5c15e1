// Package retriever turns a question into the most similar indexed chunks.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bull/course-rag/internal/course"
	"github.com/bull/course-rag/internal/storage"
)

// DefaultTopK is used when a caller asks for zero or fewer results.
const DefaultTopK = 3

var (
	ErrEmbedQuery = errors.New("embed query")
	ErrStoreQuery = errors.New("query vector store")
)

// QueryEmbedder embeds a single question.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever embeds questions and queries the vector index. It holds no cache.
type Retriever struct {
	embedder QueryEmbedder
	index    storage.Index
	minScore float64
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithMinScore drops matches scoring below min. Zero disables the filter.
func WithMinScore(min float64) Option {
	return func(r *Retriever) { r.minScore = min }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Retriever) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Retriever over the given embedder and index.
func New(embedder QueryEmbedder, index storage.Index, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: embedder,
		index:    index,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns at most topK chunks ordered by descending similarity.
// An empty index yields an empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) ([]course.ScoredChunk, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedQuery, err)
	}

	matches, err := r.index.Query(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreQuery, err)
	}

	chunks := make([]course.ScoredChunk, 0, len(matches))
	for _, m := range matches {
		if r.minScore > 0 && m.Score < r.minScore {
			continue
		}
		chunks = append(chunks, course.ScoredChunk{
			Chunk: course.Chunk{
				ID:       m.ID,
				Content:  m.Content,
				Metadata: m.Metadata,
			},
			Score: m.Score,
		})
	}

	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}

	r.logger.Debug("Retrieved chunks", "topK", topK, "matches", len(matches), "returned", len(chunks))
	return chunks, nil
}
