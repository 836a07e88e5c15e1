// Package answer composes a grounded natural-language answer from retrieved chunks.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bull/course-rag/internal/course"
)

// Fixed replies returned instead of model output.
const (
	NoInformationAnswer  = "抱歉，我在 CS61A 课程大纲中没有找到相关信息。"
	CannotGenerateAnswer = "抱歉，无法生成回答。"
	DegradedAnswer       = "基于提供的课程信息，我可以回答你的问题。如果需要更详细的回答，请稍后再试。"

	// QueryFailedAnswer is returned when the query flow itself breaks down.
	QueryFailedAnswer = "抱歉，处理您的问题时出现错误。"
)

// DefaultContextTokens bounds the context block sent to the model.
const DefaultContextTokens = 3000

const (
	systemPrompt = "你是一个 %s 课程的助教，专门回答关于课程内容、作业、考试和政策的问题。"
	userPrompt   = "你是一个 %s 课程的助教。请根据以下课程信息回答学生的问题。\n\n课程信息：\n%s\n\n学生问题：%s\n\n请提供准确、有帮助的回答。如果信息不完整，请说明。"
)

// Synthesizer turns a question plus retrieved chunks into answer text.
type Synthesizer struct {
	completer     Completer
	course        string
	contextTokens int
	logger        *slog.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithCourse sets the course name used in the prompt. Defaults to "CS61A".
func WithCourse(name string) Option {
	return func(s *Synthesizer) { s.course = name }
}

// WithContextTokens sets the context budget in estimated tokens.
func WithContextTokens(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.contextTokens = n
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSynthesizer creates a Synthesizer. A nil completer is allowed: every
// question with context then gets DegradedAnswer.
func NewSynthesizer(completer Completer, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		completer:     completer,
		course:        "CS61A",
		contextTokens: DefaultContextTokens,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize never fails; model errors map onto the fixed replies.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, chunks []course.ScoredChunk) string {
	if len(chunks) == 0 {
		return NoInformationAnswer
	}
	if s.completer == nil {
		return DegradedAnswer
	}

	text, err := s.completer.Complete(ctx, s.BuildPrompt(question, chunks))
	switch {
	case err == nil:
		return text
	case errors.Is(err, ErrNoContent):
		s.logger.Warn("Completion returned no content")
		return CannotGenerateAnswer
	default:
		s.logger.Warn("Completion failed, returning degraded answer", "error", err)
		return DegradedAnswer
	}
}

// BuildPrompt renders the system and user prompts for a question.
func (s *Synthesizer) BuildPrompt(question string, chunks []course.ScoredChunk) Prompt {
	return Prompt{
		System: fmt.Sprintf(systemPrompt, s.course),
		User:   fmt.Sprintf(userPrompt, s.course, s.truncateContext(FormatContext(chunks)), question),
	}
}

// FormatContext renders chunks in retrieval order as labeled blocks.
func FormatContext(chunks []course.ScoredChunk) string {
	blocks := make([]string, len(chunks))
	for i, c := range chunks {
		blocks[i] = fmt.Sprintf("章节: %s\n内容: %s", c.Metadata.Chapter, c.Content)
	}
	return strings.Join(blocks, "\n\n")
}

// truncateContext cuts the context to the token budget.
// Uses rough estimate of 4 characters per token.
func (s *Synthesizer) truncateContext(text string) string {
	maxChars := s.contextTokens * 4

	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}

	s.logger.Warn("Truncating context", "from", len(runes), "to", maxChars, "tokens", s.contextTokens)
	return string(runes[:maxChars])
}

// FormatSources appends a numbered source list with similarity percentages.
func FormatSources(a course.Answer) string {
	if len(a.Sources) == 0 {
		return a.Answer
	}
	var b strings.Builder
	b.WriteString(a.Answer)
	b.WriteString("\n\n来源信息：")
	for i, src := range a.Sources {
		fmt.Fprintf(&b, "\n%d. %s (相似度: %.1f%%)", i+1, src.Metadata.Chapter, src.Score*100)
	}
	return b.String()
}
