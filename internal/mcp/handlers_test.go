package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/course-rag/internal/course"
	"github.com/bull/course-rag/internal/pipeline"
)

type fakeRAG struct {
	answer     course.Answer
	result     *pipeline.IndexResult
	initErr    error
	status     course.Status
	questions  []string
	useRealArg bool
}

func (f *fakeRAG) Query(ctx context.Context, question string) course.Answer {
	f.questions = append(f.questions, question)
	return f.answer
}

func (f *fakeRAG) InitializeFromSource(ctx context.Context, useRealSource bool) (*pipeline.IndexResult, error) {
	f.useRealArg = useRealSource
	return f.result, f.initErr
}

func (f *fakeRAG) Status() course.Status { return f.status }

func TestQueryHandler_FormatsSources(t *testing.T) {
	rag := &fakeRAG{answer: course.Answer{
		Answer: "期中考试在 7月17日。",
		Sources: []course.ScoredChunk{{
			Chunk: course.Chunk{
				ID:      "c1",
				Content: "期中考试 1 定于 7月17日 晚上7-9点进行",
				Metadata: course.Metadata{
					Chapter: "期中考试 1",
					Type:    course.Exam,
					Week:    course.IntPtr(3),
				},
			},
			Score: 0.8123,
		}},
		Confidence: 0.8123,
	}}

	_, out, err := makeQueryHandler(rag)(context.Background(), nil, QueryCourseInput{Question: "  期中考试什么时候  "})
	require.NoError(t, err)

	assert.Equal(t, []string{"期中考试什么时候"}, rag.questions)
	assert.Equal(t, "期中考试在 7月17日。\n\n来源信息：\n1. 期中考试 1 (相似度: 81.2%)", out.Answer)
	assert.Equal(t, 1, out.SourceCount)
	assert.InDelta(t, 0.8123, out.Confidence, 1e-9)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "exam", out.Sources[0].Type)
	assert.Equal(t, 3, *out.Sources[0].Week)
}

func TestQueryHandler_NoSources(t *testing.T) {
	rag := &fakeRAG{answer: course.Answer{Answer: "抱歉", Sources: []course.ScoredChunk{}}}

	_, out, err := makeQueryHandler(rag)(context.Background(), nil, QueryCourseInput{Question: "火星"})
	require.NoError(t, err)
	assert.Equal(t, "抱歉", out.Answer)
	assert.NotNil(t, out.Sources)
	assert.Zero(t, out.SourceCount)
}

func TestQueryHandler_RequiresQuestion(t *testing.T) {
	rag := &fakeRAG{}
	_, _, err := makeQueryHandler(rag)(context.Background(), nil, QueryCourseInput{Question: "   "})
	assert.Error(t, err)
	assert.Empty(t, rag.questions)
}

func TestInitializeHandler(t *testing.T) {
	indexedAt := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	ready := course.Status{IsInitialized: true, State: "ready", ChunkCount: 9, LastIndexedAt: indexedAt}

	t.Run("success with fallback", func(t *testing.T) {
		rag := &fakeRAG{
			result: &pipeline.IndexResult{Source: "mock", Fallback: true, TotalChunks: 9},
			status: ready,
		}
		_, out, err := makeInitializeHandler(rag)(context.Background(), nil, InitializeInput{UseRealSource: true})
		require.NoError(t, err)

		assert.True(t, rag.useRealArg)
		assert.True(t, out.Success)
		assert.True(t, out.Fallback)
		assert.Contains(t, out.Message, "real data")
		assert.Contains(t, out.Message, "used mock")
		assert.Equal(t, 9, out.TotalChunks)
		assert.Equal(t, "2026-07-01T12:00:00Z", out.Status.LastIndexedAt)
	})

	t.Run("failure is reported in output", func(t *testing.T) {
		rag := &fakeRAG{
			initErr: errors.New("indexing failed: store unreachable"),
			status:  course.Status{State: "uninitialized"},
		}
		_, out, err := makeInitializeHandler(rag)(context.Background(), nil, InitializeInput{})
		require.NoError(t, err)
		assert.False(t, out.Success)
		assert.Contains(t, out.Message, "store unreachable")
		assert.False(t, out.Status.IsInitialized)
	})
}

func TestStatusHandler(t *testing.T) {
	rag := &fakeRAG{status: course.Status{HasEmbeddingModel: true, State: "uninitialized"}}
	_, out, err := makeStatusHandler(rag)(context.Background(), nil, StatusInput{})
	require.NoError(t, err)
	assert.False(t, out.IsInitialized)
	assert.True(t, out.HasEmbeddingModel)
	assert.Equal(t, "RAG system needs initialization", out.Message)
	assert.Empty(t, out.LastIndexedAt)
}

func TestNewServer_RegistersTools(t *testing.T) {
	s := NewServer(&Config{RAG: &fakeRAG{}})
	assert.NotNil(t, s.MCPServer())
}
