package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/course-rag/internal/course"
	"github.com/bull/course-rag/internal/pipeline"
)

// RAG is the pipeline surface the tools need.
type RAG interface {
	Query(ctx context.Context, question string) course.Answer
	InitializeFromSource(ctx context.Context, useRealSource bool) (*pipeline.IndexResult, error)
	Status() course.Status
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
	rag    RAG
}

// Config holds server dependencies.
type Config struct {
	RAG RAG
	// Course names the course in tool descriptions. Defaults to "CS61A".
	Course string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	courseName := cfg.Course
	if courseName == "" {
		courseName = "CS61A"
	}

	impl := &mcp.Implementation{
		Name:    "course-rag-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name: "query_course",
		Description: "Query " + courseName + " course information from the syllabus. Use this tool when users ask " +
			"about course content, assignments, exams, policies, or any other course-related information.",
	}, makeQueryHandler(cfg.RAG))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "initialize_rag",
		Description: "Rebuild the " + courseName + " syllabus index, optionally from the live course repository.",
	}, makeInitializeHandler(cfg.RAG))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_rag_status",
		Description: "Get the current status of the " + courseName + " syllabus index including chunk count and last index time.",
	}, makeStatusHandler(cfg.RAG))

	return &Server{
		server: server,
		rag:    cfg.RAG,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
