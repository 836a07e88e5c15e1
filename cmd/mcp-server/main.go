// Package main provides the MCP server entry point for the course syllabus assistant.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/course-rag/internal/app"
	"github.com/bull/course-rag/internal/config"
	mcpserver "github.com/bull/course-rag/internal/mcp"
	"github.com/bull/course-rag/internal/observability"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error("server error", "error", err)
		cancel()
		os.Exit(1)
	}
}

// run owns every resource of the process so that deferred cleanup completes
// before main exits. It returns when ctx is cancelled or a server fails.
func run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("COURSE_RAG_CONFIG"))
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// stdout carries the MCP stream in stdio mode, so logs always go to stderr.
	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer func() {
		closeCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := a.Close(closeCtx); err != nil {
			logger.Warn("Shutdown incomplete", "error", err)
		}
	}()

	server := mcpserver.NewServer(&mcpserver.Config{
		RAG:    a.Pipeline,
		Course: cfg.RAG.Course,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(a.Pipeline, a.Pipeline))
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, &mcpserver.HTTPHandlerOptions{Logger: logger}))
	mux.HandleFunc("/", mcpserver.NewLandingHandler(cfg.RAG.Course, a.Pipeline))

	addr := "0.0.0.0:" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if cfg.Server.HTTP {
		// HTTP mode: serve MCP over HTTP for remote clients
		logger.Info("Starting HTTP server", "addr", addr, "mcp", "/mcp", "health", "/health")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	}

	// Stdio mode: run MCP server over stdin/stdout for local clients.
	// The HTTP health endpoint still runs in the background for local testing.
	go func() {
		logger.Info("Starting health server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Health server error", "error", err)
		}
	}()

	logger.Info("Starting course syllabus MCP server (stdio mode)")
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("MCP server: %w", err)
	}
	return nil
}
