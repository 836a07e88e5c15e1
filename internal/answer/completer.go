package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultBaseURL points at xAI's OpenAI-compatible API.
	DefaultBaseURL = "https://api.x.ai/v1"
	DefaultModel   = "grok-2-1212"

	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7
)

var (
	// ErrNoContent means the model answered without any usable text.
	ErrNoContent = errors.New("completion returned no content")
	// ErrCompletionFailed wraps transport and API status failures.
	ErrCompletionFailed = errors.New("completion failed")
)

// Prompt is a single-turn chat request.
type Prompt struct {
	System string
	User   string
}

// Completer produces model text for a prompt.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// CompleterConfig configures an OpenAI-compatible chat endpoint.
type CompleterConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	// Temperature is sent as is when set, including 0. Nil uses DefaultTemperature.
	Temperature *float64
}

// OpenAICompleter calls a chat completions endpoint through openai-go.
type OpenAICompleter struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewOpenAICompleter creates a completer. Zero or nil config fields take the package defaults.
func NewOpenAICompleter(cfg CompleterConfig) (*OpenAICompleter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("completion api key not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
	)
	return &OpenAICompleter{
		client:      &client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: temperature,
	}, nil
}

// Complete sends the prompt and returns the first choice's text.
func (c *OpenAICompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if p.System != "" {
		messages = append(messages, openai.SystemMessage(p.System))
	}
	messages = append(messages, openai.UserMessage(p.User))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(c.model),
		MaxTokens:   openai.Int(int64(c.maxTokens)),
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoContent
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrNoContent
	}
	return content, nil
}
