package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultOpenAIModel is the OpenAI model used for generating embeddings.
	DefaultOpenAIModel = "text-embedding-3-small"

	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute rate limits.
	// OpenAI supports up to 2048 texts per batch, but smaller batches reduce TPM pressure.
	DefaultBatchSize = 500
)

// OpenAIConfig configures the remote embedding model.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // optional, for OpenAI-compatible endpoints
	Model   string
	// Dimensions requests shortened vectors from models that support it.
	// Zero keeps the model's native size.
	Dimensions int
	BatchSize  int
}

// OpenAIModel generates embeddings with OpenAI's embeddings API.
// It batches requests and implements exponential backoff on rate limit errors.
type OpenAIModel struct {
	client     *openai.Client
	model      string
	dimensions int // requested size, 0 for native
	dim        int
	batchSize  int
}

// OpenAILoader returns a Loader that builds the client and probes the model once
// to learn its vector size.
func OpenAILoader(cfg OpenAIConfig) Loader {
	return func(ctx context.Context) (Model, error) {
		if cfg.APIKey == "" {
			return nil, errors.New("openai api key not set")
		}
		opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		client := openai.NewClient(opts...)

		m := &OpenAIModel{
			client:     &client,
			model:      cfg.Model,
			dimensions: cfg.Dimensions,
			batchSize:  cfg.BatchSize,
		}
		if m.model == "" {
			m.model = DefaultOpenAIModel
		}
		if m.batchSize <= 0 {
			m.batchSize = DefaultBatchSize
		}

		probe, err := m.embedBatchWithRetry(ctx, []string{"ping"})
		if err != nil {
			return nil, fmt.Errorf("probe %s: %w", m.model, err)
		}
		if len(probe) == 0 || len(probe[0]) == 0 {
			return nil, fmt.Errorf("probe %s: %w", m.model, ErrEmptyEmbedding)
		}
		m.dim = len(probe[0])
		return m, nil
	}
}

func (m *OpenAIModel) Name() string   { return "openai-" + m.model }
func (m *OpenAIModel) Dimension() int { return m.dim }

// Embed generates embeddings for the given texts in batches.
func (m *OpenAIModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var all [][]float32

	for i := 0; i < len(texts); i += m.batchSize {
		end := min(i+m.batchSize, len(texts))

		embeddings, err := m.embedBatchWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, embeddings...)
	}

	return all, nil
}

// embedBatchWithRetry generates embeddings for a single batch with retry logic.
// Retries with exponential backoff on rate limit errors (HTTP 429).
// Other errors are treated as permanent and fail immediately.
func (m *OpenAIModel) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: openai.EmbeddingModel(m.model),
	}
	if m.dimensions > 0 {
		params.Dimensions = openai.Int(int64(m.dimensions))
	}

	operation := func() error {
		resp, err := m.client.Embeddings.New(ctx, params)
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		embeddings = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			embeddings[i] = toFloat32(data.Embedding)
			normalize(embeddings[i])
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return embeddings, err
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts []float64 to []float32.
// OpenAI API returns float64, but storage uses float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
