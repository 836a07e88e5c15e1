// Package main provides the courserag CLI for building and querying the syllabus index.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/course-rag/internal/answer"
	"github.com/bull/course-rag/internal/app"
	"github.com/bull/course-rag/internal/config"
	"github.com/bull/course-rag/internal/observability"
)

var (
	configPath string
	useReal    bool
	dumpPath   string
)

var rootCmd = &cobra.Command{
	Use:   "courserag",
	Short: "Course syllabus question answering",
	Long:  "CLI tool for building the course syllabus index and asking questions against it",
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Rebuild the syllabus index",
	Long: `Chunks, embeds and stores every course section, then removes entries
left by earlier builds.

By default the bundled sections are indexed. With --real the markdown pages of
the course repository are scraped instead, falling back to the bundled sections
if the repository cannot be read.

Environment variables:
  STORE_BACKEND      memory, sqlite or qdrant (default: memory)
  QDRANT_HOST        Qdrant hostname (default: localhost)
  QDRANT_PORT        Qdrant gRPC port (default: 6334)
  SQLITE_PATH        SQLite database file (default: data/course-rag.db)
  EMBEDDING_PROVIDER local, minilm or openai (default: local)
  OPENAI_API_KEY     OpenAI API key (required for openai embeddings)
  GITHUB_TOKEN       GitHub token for higher rate limits (optional)`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question about the course",
	Long: `Answers a question from the indexed syllabus. An empty index is built
from the bundled sections first.

Environment variables:
  XAI_API_KEY  xAI API key for answer generation (optional, a fixed reply is used without it)`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	syncCmd.Flags().BoolVar(&useReal, "real", false, "scrape the course repository instead of using bundled sections")
	syncCmd.Flags().StringVar(&dumpPath, "dump", "", "write scraped sections to this JSON file")

	rootCmd.AddCommand(syncCmd, queryCmd, statusCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dumpPath != "" {
		cfg.Source.DumpPath = dumpPath
	}
	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	return app.New(ctx, cfg, logger)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	fmt.Println("Starting sync...")
	fmt.Println()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if err := a.Index.Health(ctx); err != nil {
		return fmt.Errorf("index store health check failed: %w", err)
	}
	fmt.Printf("Index store (%s) healthy\n", a.Config.Store.Backend)

	source := "bundled sections"
	if useReal {
		source = "course repository " + a.Config.Source.Owner + "/" + a.Config.Source.Repo
	}
	fmt.Println()
	fmt.Printf("Indexing %s...\n", source)

	result, err := a.Pipeline.InitializeFromSource(ctx, useReal)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Sync complete!")
	fmt.Printf("  Source: %s\n", result.Source)
	if result.Fallback {
		fmt.Println("  (course repository unavailable, fell back to bundled sections)")
	}
	fmt.Printf("  Sections: %d\n", result.TotalSections)
	fmt.Printf("  Chunks: %d\n", result.TotalChunks)
	fmt.Printf("  Generation: %s\n", result.Generation)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))
	if a.Config.Source.DumpPath != "" && useReal && !result.Fallback {
		fmt.Printf("  Dumped sections to %s\n", a.Config.Source.DumpPath)
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	question := strings.Join(args, " ")
	result := a.Pipeline.Query(ctx, question)

	fmt.Println(answer.FormatSources(result))
	fmt.Println()
	fmt.Printf("Confidence: %.1f%%\n", result.Confidence*100)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	count, err := a.Index.Count(ctx)
	if err != nil {
		return fmt.Errorf("count index entries: %w", err)
	}

	status := a.Pipeline.Status()
	fmt.Printf("Store: %s\n", a.Config.Store.Backend)
	fmt.Printf("Stored chunks: %d\n", count)
	fmt.Printf("Pipeline state: %s\n", status.State)
	if count == 0 {
		fmt.Println("Index is empty. Run 'courserag sync' to build it.")
	}
	return nil
}
