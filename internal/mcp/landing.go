package mcp

import (
	"html/template"
	"net/http"
)

var landingTemplate = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Course}} Syllabus Assistant</title>
<style>
  *, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #0f172a; color: #e2e8f0; min-height: 100vh; display: flex; align-items: center; justify-content: center; }
  .card { max-width: 600px; width: 90%; background: #1e293b; border-radius: 12px; padding: 2.5rem; }
  h1 { font-size: 1.75rem; margin-bottom: 0.5rem; color: #f8fafc; }
  .subtitle { color: #94a3b8; margin-bottom: 1.75rem; }
  .section { margin-bottom: 1.5rem; }
  .section-title { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.1em; color: #64748b; margin-bottom: 0.5rem; }
  a { color: #38bdf8; text-decoration: none; }
  code, .endpoint { font-family: "SF Mono", Menlo, monospace; font-size: 0.9rem; color: #a5b4fc; }
  .dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-right: 0.5rem; background: {{if .Ready}}#22c55e{{else}}#eab308{{end}}; }
</style>
</head>
<body>
<div class="card">
  <h1>{{.Course}} Syllabus Assistant</h1>
  <p class="subtitle">Answers questions about the {{.Course}} syllabus over the Model Context Protocol.</p>

  <div class="section">
    <div class="section-title">Index</div>
    <p><span class="dot"></span>{{.State}} &middot; {{.Chunks}} chunks</p>
  </div>

  <div class="section">
    <div class="section-title">Tools</div>
    <p><code>query_course</code> <code>initialize_rag</code> <code>get_rag_status</code></p>
  </div>

  <div class="section">
    <div class="section-title">Endpoints</div>
    <p><a href="/mcp" class="endpoint">/mcp</a> &middot; MCP Streamable HTTP</p>
    <p><a href="/health" class="endpoint">/health</a> &middot; Health check</p>
  </div>
</div>
</body>
</html>`))

type landingData struct {
	Course string
	State  string
	Chunks int
	Ready  bool
}

// NewLandingHandler returns an HTTP handler that serves the landing page at /.
func NewLandingHandler(courseName string, status StatusReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		s := status.Status()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = landingTemplate.Execute(w, landingData{
			Course: courseName,
			State:  s.State,
			Chunks: s.ChunkCount,
			Ready:  s.IsInitialized,
		})
	}
}
