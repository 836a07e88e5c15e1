// Package app assembles the pipeline and its collaborators from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bull/course-rag/internal/answer"
	"github.com/bull/course-rag/internal/chunker"
	"github.com/bull/course-rag/internal/config"
	"github.com/bull/course-rag/internal/embedding"
	ghclient "github.com/bull/course-rag/internal/github"
	"github.com/bull/course-rag/internal/observability"
	"github.com/bull/course-rag/internal/pipeline"
	"github.com/bull/course-rag/internal/retriever"
	"github.com/bull/course-rag/internal/sources"
	"github.com/bull/course-rag/internal/storage"
)

// App owns the long-lived resources of a process.
type App struct {
	Config   *config.Config
	Pipeline *pipeline.Pipeline
	Index    storage.Index
	Logger   *slog.Logger

	tracing *observability.TracerProvider
}

// New wires every component described by cfg. The caller must Close the App.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "course-rag",
		ServiceVersion: "0.1.0",
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	index, err := NewIndex(ctx, cfg.Store)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	embedder := NewEmbedder(cfg.Embedding)

	realSource, err := NewRealSource(ctx, cfg.Source, logger)
	if err != nil {
		_ = index.Close()
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	var fallback sources.Provider = sources.MockProvider{}
	if cfg.Source.File != "" {
		fallback = sources.FileProvider{Path: cfg.Source.File}
	}

	p, err := pipeline.New(pipeline.Config{
		Chunker:  chunker.NewChunker(cfg.RAG.ChunkSize),
		Embedder: embedder,
		Index:    index,
		Retriever: retriever.New(embedder, index,
			retriever.WithMinScore(cfg.RAG.MinScore),
			retriever.WithLogger(logger),
		),
		Synthesizer: answer.NewSynthesizer(NewCompleter(cfg.Completion, logger),
			answer.WithCourse(cfg.RAG.Course),
			answer.WithContextTokens(cfg.RAG.ContextTokens),
			answer.WithLogger(logger),
		),
		RealSource: realSource,
		Fallback:   fallback,
		TopK:       cfg.RAG.TopK,
		DumpPath:   cfg.Source.DumpPath,
		Logger:     logger,
	})
	if err != nil {
		_ = index.Close()
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	logger.Info("Pipeline assembled",
		"store", cfg.Store.Backend,
		"embedding", cfg.Embedding.Provider,
		"fallback", fallback.Name(),
	)

	return &App{
		Config:   cfg,
		Pipeline: p,
		Index:    index,
		Logger:   logger,
		tracing:  tp,
	}, nil
}

// Close releases the index and flushes traces.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.Index.Close(), a.tracing.Shutdown(ctx))
}

// NewIndex opens the configured vector store.
func NewIndex(ctx context.Context, cfg config.StoreConfig) (storage.Index, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return storage.NewMemoryStorage(), nil
	case config.BackendSQLite:
		s, err := storage.NewSQLiteStorage(cfg.SQLite.Path, cfg.SQLite.Table)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case config.BackendQdrant:
		s, err := storage.NewQdrantStorage(ctx, storage.QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey,
			UseTLS:     cfg.Qdrant.UseTLS,
			Collection: cfg.Qdrant.Collection,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to Qdrant at %s:%d: %w", cfg.Qdrant.Host, cfg.Qdrant.Port, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", config.ErrConfiguration, cfg.Backend)
	}
}

// NewEmbedder returns an embedder whose model loads on first use.
func NewEmbedder(cfg config.EmbeddingConfig) *embedding.Embedder {
	switch cfg.Provider {
	case config.EmbeddingOpenAI:
		return embedding.NewEmbedder(embedding.OpenAILoader(embedding.OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimension,
			BatchSize:  cfg.BatchSize,
		}))
	case config.EmbeddingMiniLM:
		return embedding.NewEmbedder(embedding.MiniLMLoader(embedding.MiniLMConfig{
			ModelsDir: cfg.ModelsDir,
			ModelName: cfg.MiniLMModel,
		}))
	default:
		return embedding.NewEmbedder(embedding.LocalLoader(cfg.Dimension))
	}
}

// NewCompleter returns nil when no API key is configured.
func NewCompleter(cfg config.CompletionConfig, logger *slog.Logger) answer.Completer {
	c, err := answer.NewOpenAICompleter(answer.CompleterConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: &cfg.Temperature,
	})
	if err != nil {
		logger.Debug("Completion disabled", "error", err)
		return nil
	}
	return c
}

// NewRealSource builds the course repository provider.
func NewRealSource(ctx context.Context, cfg config.SourceConfig, logger *slog.Logger) (*sources.RepoProvider, error) {
	client, err := ghclient.NewClient(ctx, cfg.GitHubToken)
	if err != nil {
		return nil, fmt.Errorf("create GitHub client: %w", err)
	}
	fetcher := ghclient.NewFetcher(client, ghclient.Repo{
		Owner:    cfg.Owner,
		Name:     cfg.Repo,
		BasePath: cfg.BasePath,
		Ref:      cfg.Ref,
	})
	return sources.NewRepoProvider(fetcher, cfg.MaxPages, logger), nil
}
