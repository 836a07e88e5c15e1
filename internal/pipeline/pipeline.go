// Package pipeline orchestrates index builds and question answering over the
// course syllabus.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bull/course-rag/internal/answer"
	"github.com/bull/course-rag/internal/chunker"
	"github.com/bull/course-rag/internal/course"
	"github.com/bull/course-rag/internal/embedding"
	"github.com/bull/course-rag/internal/observability"
	"github.com/bull/course-rag/internal/retriever"
	"github.com/bull/course-rag/internal/sources"
	"github.com/bull/course-rag/internal/storage"
)

// Lifecycle states.
const (
	StateUninitialized = "uninitialized"
	StateIndexing      = "indexing"
	StateReady         = "ready"
)

// DefaultEmbedBatchSize is the number of chunks embedded and upserted per round trip.
const DefaultEmbedBatchSize = 64

// ErrIndexing wraps every failure of an index build.
var ErrIndexing = errors.New("indexing failed")

// Config holds the collaborators of a Pipeline. Chunker, Embedder and Index are required.
type Config struct {
	Chunker     *chunker.Chunker
	Embedder    *embedding.Embedder
	Index       storage.Index
	Retriever   *retriever.Retriever // built from Embedder and Index if nil
	Synthesizer *answer.Synthesizer  // answers with DegradedAnswer if nil
	RealSource  sources.Provider     // used by InitializeFromSource(ctx, true)
	Fallback    sources.Provider     // defaults to sources.MockProvider
	TopK        int                  // defaults to retriever.DefaultTopK
	BatchSize   int                  // defaults to DefaultEmbedBatchSize
	DumpPath    string               // real-source sections are written here when set
	Logger      *slog.Logger
}

// IndexResult contains statistics about an index build.
type IndexResult struct {
	Source        string
	Fallback      bool
	TotalSections int
	TotalChunks   int
	Generation    string
	Duration      time.Duration
}

// Pipeline ties chunking, embedding, storage, retrieval and synthesis together.
// It is safe for concurrent use. Builds are serialized; queries run concurrently
// with each other and with a build.
type Pipeline struct {
	chunker     *chunker.Chunker
	embedder    *embedding.Embedder
	index       storage.Index
	retriever   *retriever.Retriever
	synthesizer *answer.Synthesizer
	realSource  sources.Provider
	fallback    sources.Provider
	topK        int
	batchSize   int
	dumpPath    string
	logger      *slog.Logger

	buildMu sync.Mutex

	mu            sync.RWMutex
	state         string
	chunkCount    int
	lastIndexedAt time.Time
}

// New creates a Pipeline in the uninitialized state.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Chunker == nil || cfg.Embedder == nil || cfg.Index == nil {
		return nil, errors.New("pipeline: chunker, embedder and index are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		chunker:     cfg.Chunker,
		embedder:    cfg.Embedder,
		index:       cfg.Index,
		retriever:   cfg.Retriever,
		synthesizer: cfg.Synthesizer,
		realSource:  cfg.RealSource,
		fallback:    cfg.Fallback,
		topK:        cfg.TopK,
		batchSize:   cfg.BatchSize,
		dumpPath:    cfg.DumpPath,
		logger:      logger,
		state:       StateUninitialized,
	}
	if p.retriever == nil {
		p.retriever = retriever.New(p.embedder, p.index, retriever.WithLogger(logger))
	}
	if p.synthesizer == nil {
		p.synthesizer = answer.NewSynthesizer(nil, answer.WithLogger(logger))
	}
	if p.fallback == nil {
		p.fallback = sources.MockProvider{}
	}
	if p.topK <= 0 {
		p.topK = retriever.DefaultTopK
	}
	if p.batchSize <= 0 {
		p.batchSize = DefaultEmbedBatchSize
	}
	return p, nil
}

// Initialize builds the index from sections. Concurrent calls are serialized.
// On failure the pipeline returns to its previous state and entries already written
// by the failed build stay in the store until the next successful build prunes them.
func (p *Pipeline) Initialize(ctx context.Context, sections []course.Section) (*IndexResult, error) {
	p.buildMu.Lock()
	defer p.buildMu.Unlock()
	return p.build(ctx, sections, "caller")
}

// Reindex rebuilds the index from sections. Entries from earlier builds are
// removed once the new build has been written.
func (p *Pipeline) Reindex(ctx context.Context, sections []course.Section) (*IndexResult, error) {
	return p.Initialize(ctx, sections)
}

// InitializeFromSource builds the index from the real source when useRealSource
// is set, falling back to the fallback provider if the real source fails or is empty.
func (p *Pipeline) InitializeFromSource(ctx context.Context, useRealSource bool) (*IndexResult, error) {
	p.buildMu.Lock()
	defer p.buildMu.Unlock()
	return p.buildFromSource(ctx, useRealSource)
}

func (p *Pipeline) buildFromSource(ctx context.Context, useRealSource bool) (*IndexResult, error) {
	if p.realSource == nil {
		useRealSource = false
	}

	sel, err := sources.Select(ctx, p.realSource, p.fallback, useRealSource, p.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexing, err)
	}

	if p.dumpPath != "" && useRealSource && !sel.Fallback {
		if err := sources.Dump(p.dumpPath, sel.Sections); err != nil {
			p.logger.Warn("Failed to dump sections", "path", p.dumpPath, "error", err)
		} else {
			p.logger.Info("Dumped sections", "path", p.dumpPath, "count", len(sel.Sections))
		}
	}

	result, err := p.build(ctx, sel.Sections, sel.Source)
	if err != nil {
		return nil, err
	}
	result.Fallback = sel.Fallback
	return result, nil
}

// build runs one index build. The caller must hold buildMu.
func (p *Pipeline) build(ctx context.Context, sections []course.Section, source string) (result *IndexResult, err error) {
	start := time.Now()
	ctx, span := observability.StartIndexSpan(ctx, len(sections))
	defer span.End()

	previous := p.setIndexing()
	defer func() {
		if err != nil {
			p.restoreState(previous)
			observability.RecordError(span, err)
			p.logger.Error("Index build failed", "source", source, "error", err)
			err = fmt.Errorf("%w: %w", ErrIndexing, err)
		}
	}()

	for i, s := range sections {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
	}

	chunks := p.chunker.ChunkAll(sections)
	if len(chunks) == 0 {
		return nil, errors.New("no chunks produced")
	}
	p.logger.Info("Starting index build",
		"source", source,
		"sections", len(sections),
		"chunks", len(chunks),
		"max_length", p.chunker.MaxLength(),
	)

	dim, err := p.embedder.Dimension(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.index.EnsureCollection(ctx, dim); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	generation := uuid.New().String()
	for from := 0; from < len(chunks); from += p.batchSize {
		to := min(from+p.batchSize, len(chunks))
		if err := p.indexBatch(ctx, chunks[from:to], generation); err != nil {
			return nil, err
		}
		p.logger.Debug("Indexed batch", "from", from, "to", to)
	}

	if err := p.index.DeleteStale(ctx, generation); err != nil {
		return nil, fmt.Errorf("prune stale entries: %w", err)
	}

	count, err := p.index.Count(ctx)
	if err != nil {
		p.logger.Warn("Could not count index entries, using chunk total", "error", err)
		count = len(chunks)
	}

	indexedAt := time.Now()
	p.mu.Lock()
	p.state = StateReady
	p.chunkCount = count
	p.lastIndexedAt = indexedAt
	p.mu.Unlock()

	result = &IndexResult{
		Source:        source,
		TotalSections: len(sections),
		TotalChunks:   len(chunks),
		Generation:    generation,
		Duration:      time.Since(start),
	}
	observability.RecordIndexResult(span, len(chunks), generation)
	p.logger.Info("Index build complete",
		"source", source,
		"chunks", len(chunks),
		"stored", count,
		"model", p.embedder.ModelName(),
		"duration", result.Duration,
	)
	return result, nil
}

func (p *Pipeline) indexBatch(ctx context.Context, chunks []course.Chunk, generation string) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	entries := make([]storage.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = storage.Entry{
			ID:         c.ID,
			Vector:     vectors[i],
			Content:    c.Content,
			Metadata:   c.Metadata,
			Generation: generation,
		}
	}
	if err := p.index.Upsert(ctx, entries); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

func (p *Pipeline) setIndexing() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	previous := p.state
	p.state = StateIndexing
	return previous
}

func (p *Pipeline) restoreState(state string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
}

func (p *Pipeline) ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state == StateReady
}

// ensureInitialized brings a cold pipeline to Ready. An index left by an earlier
// process is adopted as is; otherwise the fallback sections are indexed.
func (p *Pipeline) ensureInitialized(ctx context.Context) error {
	if p.ready() {
		return nil
	}

	p.buildMu.Lock()
	defer p.buildMu.Unlock()
	if p.ready() {
		return nil
	}

	if count, err := p.index.Count(ctx); err == nil && count > 0 {
		dim, err := p.embedder.Dimension(ctx)
		if err != nil {
			return err
		}
		stored, err := p.index.Dimension(ctx)
		switch {
		case err != nil:
			p.logger.Warn("Could not read stored vector size, rebuilding index", "error", err)
		case stored != 0 && stored != dim:
			p.logger.Warn("Stored vectors do not match the embedding model, rebuilding index",
				"stored_dimension", stored,
				"model_dimension", dim,
				"model", p.embedder.ModelName(),
			)
		default:
			p.mu.Lock()
			p.state = StateReady
			p.chunkCount = count
			p.mu.Unlock()
			p.logger.Info("Adopted existing index", "chunks", count, "model", p.embedder.ModelName())
			return nil
		}
	}

	p.logger.Info("Pipeline not initialized, indexing default sections")
	_, err := p.buildFromSource(ctx, false)
	return err
}

// Query answers a question from the indexed syllabus. It never fails: retrieval
// problems yield an answer without sources and a confidence of 0.
func (p *Pipeline) Query(ctx context.Context, question string) (result course.Answer) {
	ctx, span := observability.StartQuerySpan(ctx, p.topK)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("query panicked: %v", r)
			observability.RecordError(span, err)
			p.logger.Error("Query failed", "error", err)
			result = course.Answer{
				Answer:  answer.QueryFailedAnswer,
				Sources: []course.ScoredChunk{},
			}
		}
	}()

	if err := p.ensureInitialized(ctx); err != nil {
		p.logger.Warn("Initialization before query failed", "error", err)
	}

	chunks, err := p.retriever.Retrieve(ctx, question, p.topK)
	if err != nil {
		observability.RecordError(span, err)
		p.logger.Warn("Retrieval failed, answering without sources", "error", err)
		chunks = nil
	}
	if chunks == nil {
		chunks = []course.ScoredChunk{}
	}

	var confidence float64
	if len(chunks) > 0 && chunks[0].Score > 0 {
		confidence = chunks[0].Score
	}

	result = course.Answer{
		Answer:     p.synthesizer.Synthesize(ctx, question, chunks),
		Sources:    chunks,
		Confidence: confidence,
	}
	observability.RecordQueryResult(span, len(chunks), confidence)
	return result
}

// Status reports the pipeline state without side effects.
func (p *Pipeline) Status() course.Status {
	loaded := p.embedder.Loaded()

	p.mu.RLock()
	defer p.mu.RUnlock()
	return course.Status{
		IsInitialized:     p.state == StateReady,
		HasEmbeddingModel: loaded,
		State:             p.state,
		ChunkCount:        p.chunkCount,
		LastIndexedAt:     p.lastIndexedAt,
	}
}

// Health checks the backing index store.
func (p *Pipeline) Health(ctx context.Context) error {
	return p.index.Health(ctx)
}
