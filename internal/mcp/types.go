// Package mcp exposes the course RAG pipeline as Model Context Protocol tools.
package mcp

// QueryCourseInput defines the input parameters for the query_course tool.
type QueryCourseInput struct {
	// Question is the student's question about the course.
	Question string `json:"question" jsonschema:"The question about the course"`
}

// QueryCourseOutput contains the grounded answer.
type QueryCourseOutput struct {
	// Answer is the generated reply followed by the numbered source list.
	Answer string `json:"answer"`
	// Confidence is the similarity of the best source (0-1).
	Confidence float64 `json:"confidence"`
	// SourceCount is the number of retrieved chunks.
	SourceCount int `json:"sources"`
	// Sources lists the chunks the answer is grounded on, best first.
	Sources []Source `json:"source_chunks"`
}

// Source is a single retrieved chunk.
type Source struct {
	Chapter    string  `json:"chapter"`
	Type       string  `json:"type"`
	Week       *int    `json:"week,omitempty"`
	Similarity float64 `json:"similarity"`
	Content    string  `json:"content"`
}

// InitializeInput defines the input parameters for the initialize_rag tool.
type InitializeInput struct {
	// UseRealSource pulls sections from the course repository instead of the bundled set.
	UseRealSource bool `json:"use_real_source,omitempty" jsonschema:"Index pages from the course repository instead of the bundled sections"`
}

// InitializeOutput reports the result of an index build.
type InitializeOutput struct {
	Success       bool         `json:"success"`
	Message       string       `json:"message"`
	UseRealSource bool         `json:"use_real_source"`
	Source        string       `json:"source,omitempty"`
	Fallback      bool         `json:"fallback"`
	TotalChunks   int          `json:"total_chunks"`
	Status        StatusOutput `json:"status"`
}

// StatusInput defines the input parameters for the get_rag_status tool.
// This tool takes no parameters.
type StatusInput struct{}

// StatusOutput mirrors the pipeline status.
type StatusOutput struct {
	IsInitialized     bool   `json:"is_initialized"`
	HasEmbeddingModel bool   `json:"has_embedding_model"`
	State             string `json:"state"`
	ChunkCount        int    `json:"chunk_count"`
	// LastIndexedAt is RFC 3339, empty before the first build.
	LastIndexedAt string `json:"last_indexed_at,omitempty"`
	Message       string `json:"message"`
}
