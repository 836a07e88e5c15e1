// Package config loads service configuration from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ErrConfiguration means the process cannot start with the given settings.
var ErrConfiguration = errors.New("invalid configuration")

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendQdrant = "qdrant"
)

// Embedding providers.
const (
	EmbeddingLocal  = "local"
	EmbeddingMiniLM = "minilm"
	EmbeddingOpenAI = "openai"
)

// Config holds all application configuration.
type Config struct {
	Store      StoreConfig      `mapstructure:"store"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Completion CompletionConfig `mapstructure:"completion"`
	Source     SourceConfig     `mapstructure:"source"`
	RAG        RAGConfig        `mapstructure:"rag"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

type StoreConfig struct {
	Backend string       `mapstructure:"backend"`
	Qdrant  QdrantConfig `mapstructure:"qdrant"`
	SQLite  SQLiteConfig `mapstructure:"sqlite"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
	Collection string `mapstructure:"collection"`
}

type SQLiteConfig struct {
	Path  string `mapstructure:"path"`
	Table string `mapstructure:"table"`
}

type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"`
	// Dimension is the local model size, or a shortened size for OpenAI models.
	// Zero keeps each model's default.
	Dimension int    `mapstructure:"dimension"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	BatchSize int    `mapstructure:"batch_size"`

	// MiniLMModel and ModelsDir configure the in-process sentence encoder.
	MiniLMModel string `mapstructure:"minilm_model"`
	ModelsDir   string `mapstructure:"models_dir"`
}

type CompletionConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// SourceConfig selects where sections come from.
type SourceConfig struct {
	Owner       string `mapstructure:"owner"`
	Repo        string `mapstructure:"repo"`
	BasePath    string `mapstructure:"base_path"`
	Ref         string `mapstructure:"ref"`
	GitHubToken string `mapstructure:"github_token"`
	MaxPages    int    `mapstructure:"max_pages"`

	// File replaces the bundled fallback sections with a YAML or JSON file.
	File string `mapstructure:"file"`
	// DumpPath receives the scraped sections as JSON after a real-source build.
	DumpPath string `mapstructure:"dump_path"`
}

type RAGConfig struct {
	Course        string  `mapstructure:"course"`
	ChunkSize     int     `mapstructure:"chunk_size"`
	TopK          int     `mapstructure:"top_k"`
	MinScore      float64 `mapstructure:"min_score"`
	ContextTokens int     `mapstructure:"context_tokens"`
}

type ServerConfig struct {
	// HTTP serves MCP over streamable HTTP; otherwise stdio is used.
	HTTP bool   `mapstructure:"http"`
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// envBindings maps config keys to the conventional variable names used in
// deployments. Every key is also reachable as COURSE_RAG_<KEY>.
var envBindings = map[string][]string{
	"store.backend":           {"STORE_BACKEND"},
	"store.qdrant.host":       {"QDRANT_HOST"},
	"store.qdrant.port":       {"QDRANT_PORT"},
	"store.qdrant.api_key":    {"QDRANT_API_KEY"},
	"store.qdrant.use_tls":    {"QDRANT_USE_TLS"},
	"store.qdrant.collection": {"QDRANT_COLLECTION"},
	"store.sqlite.path":       {"SQLITE_PATH"},
	"embedding.provider":      {"EMBEDDING_PROVIDER"},
	"embedding.api_key":       {"OPENAI_API_KEY"},
	"embedding.model":         {"EMBEDDING_MODEL"},
	"embedding.models_dir":    {"EMBEDDING_MODELS_DIR"},
	"completion.api_key":      {"XAI_API_KEY"},
	"completion.base_url":     {"XAI_BASE_URL"},
	"completion.model":        {"XAI_MODEL"},
	"source.github_token":     {"GITHUB_TOKEN"},
	"server.http":             {"SERVER_MODE"},
	"server.port":             {"PORT"},
	"log.level":               {"LOG_LEVEL"},
	"log.format":              {"LOG_FORMAT"},
	"tracing.endpoint":        {"OTEL_EXPORTER_OTLP_ENDPOINT"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.qdrant.host", "localhost")
	v.SetDefault("store.qdrant.port", 6334)
	v.SetDefault("store.qdrant.api_key", "")
	v.SetDefault("store.qdrant.use_tls", false)
	v.SetDefault("store.qdrant.collection", "course_syllabus")
	v.SetDefault("store.sqlite.path", "data/course-rag.db")
	v.SetDefault("store.sqlite.table", "course_syllabus")

	v.SetDefault("embedding.provider", EmbeddingLocal)
	v.SetDefault("embedding.dimension", 0)
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.batch_size", 0)
	v.SetDefault("embedding.minilm_model", "sentence-transformers/all-MiniLM-L6-v2")
	v.SetDefault("embedding.models_dir", "models")

	v.SetDefault("completion.api_key", "")
	v.SetDefault("completion.base_url", "https://api.x.ai/v1")
	v.SetDefault("completion.model", "grok-2-1212")
	v.SetDefault("completion.max_tokens", 1000)
	v.SetDefault("completion.temperature", 0.7)

	v.SetDefault("source.owner", "Cal-CS-61A-Staff")
	v.SetDefault("source.repo", "cs61a-website")
	v.SetDefault("source.base_path", "src")
	v.SetDefault("source.ref", "")
	v.SetDefault("source.github_token", "")
	v.SetDefault("source.max_pages", 0)
	v.SetDefault("source.file", "")
	v.SetDefault("source.dump_path", "")

	v.SetDefault("rag.course", "CS61A")
	v.SetDefault("rag.chunk_size", 200)
	v.SetDefault("rag.top_k", 3)
	v.SetDefault("rag.min_score", 0.0)
	v.SetDefault("rag.context_tokens", 3000)

	v.SetDefault("server.http", false)
	v.SetDefault("server.port", "8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_rate", 1.0)
}

// Load reads configuration from path (skipped when empty) and the environment.
// Environment values win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("COURSE_RAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envBindings {
		prefixed := "COURSE_RAG_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, envs...)...); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// Validate returns an ErrConfiguration error when a selected backend lacks what it
// needs to start.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("%w: sqlite store requires a path", ErrConfiguration)
		}
	case BackendQdrant:
		if c.Store.Qdrant.Collection == "" {
			return fmt.Errorf("%w: qdrant store requires a collection", ErrConfiguration)
		}
		if c.Store.Qdrant.Host == "" {
			return fmt.Errorf("%w: qdrant store requires a host", ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrConfiguration, c.Store.Backend)
	}

	switch c.Embedding.Provider {
	case EmbeddingLocal, EmbeddingMiniLM:
	case EmbeddingOpenAI:
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("%w: openai embeddings require OPENAI_API_KEY", ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrConfiguration, c.Embedding.Provider)
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrConfiguration, c.Log.Format)
	}
	return nil
}

// Warnings lists settings that degrade behavior without preventing startup.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Completion.APIKey == "" {
		warnings = append(warnings, "completion api_key is empty; answers fall back to a fixed reply")
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2.0 {
		warnings = append(warnings, fmt.Sprintf("completion temperature %.2f is outside recommended range [0.0, 2.0]", c.Completion.Temperature))
	}
	if c.Store.Backend == BackendMemory {
		warnings = append(warnings, "memory store does not persist; the index is rebuilt on every start")
	}
	return warnings
}
