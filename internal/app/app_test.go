package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/course-rag/internal/answer"
	"github.com/bull/course-rag/internal/config"
	"github.com/bull/course-rag/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Completion.APIKey = ""
	cfg.Embedding.Provider = config.EmbeddingLocal
	cfg.Tracing.Endpoint = ""
	return cfg
}

func TestNew_SQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Store.Backend = config.BackendSQLite
	cfg.Store.SQLite.Path = filepath.Join(t.TempDir(), "index.db")

	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer a.Close(ctx)

	_, ok := a.Index.(*storage.SQLiteStorage)
	assert.True(t, ok)

	got := a.Pipeline.Query(ctx, "期中考试什么时候")
	require.NotEmpty(t, got.Sources)
	assert.Equal(t, "期中考试 1", got.Sources[0].Metadata.Chapter)
	assert.Equal(t, answer.DegradedAnswer, got.Answer)
	assert.True(t, a.Pipeline.Status().IsInitialized)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedding.Provider = config.EmbeddingOpenAI
	cfg.Embedding.APIKey = ""

	_, err := New(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestNewIndex_Memory(t *testing.T) {
	idx, err := NewIndex(context.Background(), config.StoreConfig{Backend: config.BackendMemory})
	require.NoError(t, err)
	_, ok := idx.(*storage.MemoryStorage)
	assert.True(t, ok)
}

func TestNewIndex_UnknownBackend(t *testing.T) {
	_, err := NewIndex(context.Background(), config.StoreConfig{Backend: "pinecone"})
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestNewEmbedder_LoadsLazily(t *testing.T) {
	for _, provider := range []string{config.EmbeddingLocal, config.EmbeddingMiniLM, config.EmbeddingOpenAI} {
		t.Run(provider, func(t *testing.T) {
			e := NewEmbedder(config.EmbeddingConfig{
				Provider:  provider,
				APIKey:    "sk-test",
				ModelsDir: t.TempDir(),
			})
			require.NotNil(t, e)
			assert.False(t, e.Loaded(), "no model is loaded before first use")
		})
	}
}

func TestNewCompleter_NilWithoutKey(t *testing.T) {
	c := NewCompleter(config.CompletionConfig{}, testLogger())
	assert.Nil(t, c)

	c = NewCompleter(config.CompletionConfig{APIKey: "xai-test"}, testLogger())
	assert.NotNil(t, c)
}

func TestNewRealSource_Name(t *testing.T) {
	p, err := NewRealSource(context.Background(), config.SourceConfig{Owner: "staff", Repo: "site"}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "github:staff/site", p.Name())
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
