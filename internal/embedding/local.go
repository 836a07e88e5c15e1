package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

const (
	// LocalModelName identifies vectors produced by LocalModel.
	LocalModelName = "local-hashed-bow-v1"

	// LocalDimension is the default LocalModel vector size.
	LocalDimension = 384
)

// LocalModel is an offline embedding model. Each token is hashed to a signed unit
// feature, token features are mean-pooled, and the result is L2-normalized.
//
// Tokens are lower-cased runs of letters and digits for alphabetic scripts, and
// overlapping character bigrams for Han text (a lone Han character is its own token).
type LocalModel struct {
	dim int
}

// NewLocalModel creates a LocalModel. If dim is 0 or negative, LocalDimension is used.
func NewLocalModel(dim int) *LocalModel {
	if dim <= 0 {
		dim = LocalDimension
	}
	return &LocalModel{dim: dim}
}

// LocalLoader returns a Loader for LocalModel.
func LocalLoader(dim int) Loader {
	return func(ctx context.Context) (Model, error) {
		return NewLocalModel(dim), nil
	}
}

func (m *LocalModel) Name() string   { return LocalModelName }
func (m *LocalModel) Dimension() int { return m.dim }

// Embed computes one vector per text. It never fails for valid input.
func (m *LocalModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = m.embedOne(text)
	}
	return out, nil
}

func (m *LocalModel) embedOne(text string) []float32 {
	vec := make([]float32, m.dim)
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return vec
	}
	for _, tok := range tokens {
		idx, sign := m.feature(tok)
		vec[idx] += sign
	}
	n := float32(len(tokens))
	for i := range vec {
		vec[i] /= n
	}
	normalize(vec)
	return vec
}

// feature maps a token to a vector slot and a sign.
func (m *LocalModel) feature(token string) (int, float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum64()
	sign := float32(1)
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(m.dim)), sign
}

// Tokenize splits text into the token-level features used by LocalModel.
func Tokenize(text string) []string {
	var (
		tokens []string
		word   strings.Builder
		han    []rune
	)
	flushWord := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	flushHan := func() {
		switch len(han) {
		case 0:
		case 1:
			tokens = append(tokens, string(han))
		default:
			for i := 0; i+1 < len(han); i++ {
				tokens = append(tokens, string(han[i:i+2]))
			}
		}
		han = han[:0]
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flushWord()
			han = append(han, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushHan()
			word.WriteRune(unicode.ToLower(r))
		default:
			flushWord()
			flushHan()
		}
	}
	flushWord()
	flushHan()
	return tokens
}
