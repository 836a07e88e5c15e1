package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/course-rag/internal/answer"
	"github.com/bull/course-rag/internal/course"
)

// makeQueryHandler creates the query_course tool handler.
// The pipeline never fails a query, so the only error is a missing question.
func makeQueryHandler(rag RAG) func(
	context.Context, *mcp.CallToolRequest, QueryCourseInput,
) (*mcp.CallToolResult, QueryCourseOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input QueryCourseInput) (
		*mcp.CallToolResult, QueryCourseOutput, error,
	) {
		question := strings.TrimSpace(input.Question)
		if question == "" {
			return nil, QueryCourseOutput{}, errors.New("question is required")
		}

		result := rag.Query(ctx, question)

		sources := make([]Source, 0, len(result.Sources))
		for _, s := range result.Sources {
			sources = append(sources, Source{
				Chapter:    s.Metadata.Chapter,
				Type:       string(s.Metadata.Type),
				Week:       s.Metadata.Week,
				Similarity: s.Score,
				Content:    s.Content,
			})
		}

		return nil, QueryCourseOutput{
			Answer:      answer.FormatSources(result),
			Confidence:  result.Confidence,
			SourceCount: len(sources),
			Sources:     sources,
		}, nil
	}
}

// makeInitializeHandler creates the initialize_rag tool handler.
// A failed build is reported in the output rather than as a tool error so the
// caller still sees the current status.
func makeInitializeHandler(rag RAG) func(
	context.Context, *mcp.CallToolRequest, InitializeInput,
) (*mcp.CallToolResult, InitializeOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input InitializeInput) (
		*mcp.CallToolResult, InitializeOutput, error,
	) {
		kind := "mock"
		if input.UseRealSource {
			kind = "real"
		}

		result, err := rag.InitializeFromSource(ctx, input.UseRealSource)
		if err != nil {
			return nil, InitializeOutput{
				Success:       false,
				Message:       fmt.Sprintf("RAG system initialization with %s data failed: %v", kind, err),
				UseRealSource: input.UseRealSource,
				Status:        statusOutput(rag.Status()),
			}, nil
		}

		message := fmt.Sprintf("RAG system reinitialized with %s data", kind)
		if result.Fallback {
			message += fmt.Sprintf(" (real source unavailable, used %s)", result.Source)
		}

		return nil, InitializeOutput{
			Success:       true,
			Message:       message,
			UseRealSource: input.UseRealSource,
			Source:        result.Source,
			Fallback:      result.Fallback,
			TotalChunks:   result.TotalChunks,
			Status:        statusOutput(rag.Status()),
		}, nil
	}
}

// makeStatusHandler creates the get_rag_status tool handler.
func makeStatusHandler(rag RAG) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		return nil, statusOutput(rag.Status()), nil
	}
}

func statusOutput(s course.Status) StatusOutput {
	out := StatusOutput{
		IsInitialized:     s.IsInitialized,
		HasEmbeddingModel: s.HasEmbeddingModel,
		State:             s.State,
		ChunkCount:        s.ChunkCount,
		Message:           "RAG system needs initialization",
	}
	if s.IsInitialized {
		out.Message = "RAG system is ready"
	}
	if !s.LastIndexedAt.IsZero() {
		out.LastIndexedAt = s.LastIndexedAt.UTC().Format(time.RFC3339)
	}
	return out
}
