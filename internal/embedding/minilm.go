package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nlpodyssey/cybertron/pkg/models/bert"
	"github.com/nlpodyssey/cybertron/pkg/tasks"
	"github.com/nlpodyssey/cybertron/pkg/tasks/textencoding"
)

const (
	// DefaultMiniLMModel is the sentence-transformers model loaded by MiniLMLoader.
	DefaultMiniLMModel = "sentence-transformers/all-MiniLM-L6-v2"

	// DefaultModelsDir caches downloaded and converted model weights.
	DefaultModelsDir = "models"
)

// MiniLMConfig selects a sentence-transformers text encoder.
type MiniLMConfig struct {
	ModelsDir string
	ModelName string
}

// MiniLMModel runs a BERT-family sentence encoder in process. Token features are
// mean-pooled and the result is L2-normalized.
type MiniLMModel struct {
	name string
	dim  int

	mu      sync.Mutex
	encoder textencoding.Interface
}

// MiniLMLoader returns a Loader that downloads the model on first use (when it is
// not already in ModelsDir), converts it and loads it.
func MiniLMLoader(cfg MiniLMConfig) Loader {
	return func(ctx context.Context) (Model, error) {
		if cfg.ModelsDir == "" {
			cfg.ModelsDir = DefaultModelsDir
		}
		if cfg.ModelName == "" {
			cfg.ModelName = DefaultMiniLMModel
		}

		encoder, err := tasks.Load[textencoding.Interface](&tasks.Config{
			ModelsDir: cfg.ModelsDir,
			ModelName: cfg.ModelName,
		})
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", cfg.ModelName, err)
		}

		m := &MiniLMModel{name: cfg.ModelName, encoder: encoder}
		probe, err := m.encode(ctx, "dimension")
		if err != nil {
			return nil, fmt.Errorf("probe %s: %w", cfg.ModelName, err)
		}
		m.dim = len(probe)
		return m, nil
	}
}

func (m *MiniLMModel) Name() string   { return m.name }
func (m *MiniLMModel) Dimension() int { return m.dim }

// Embed encodes texts one at a time. Blank texts map to the zero vector.
func (m *MiniLMModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			vectors[i] = make([]float32, m.dim)
			continue
		}
		v, err := m.encode(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (m *MiniLMModel) encode(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	resp, err := m.encoder.Encode(ctx, text, int(bert.MeanPooling))
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	v := toFloat32(resp.Vector.Data().F64())
	if len(v) == 0 {
		return nil, ErrEmptyEmbedding
	}
	normalize(v)
	return v, nil
}
