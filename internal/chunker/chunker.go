// Package chunker splits syllabus sections into bounded-length, sentence-aligned chunks.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bull/course-rag/internal/course"
)

// DefaultMaxLength is the chunk length bound in characters.
const DefaultMaxLength = 200

// sentenceTerminals covers ASCII and full-width sentence-ending punctuation.
const sentenceTerminals = ".!?。！？"

// Chunker packs whole sentences into chunks no longer than maxLength characters.
// A sentence longer than maxLength is never split and becomes its own chunk.
type Chunker struct {
	maxLength int
	newID     func() string
}

// NewChunker creates a chunker. If maxLength is 0 or negative, DefaultMaxLength is used.
func NewChunker(maxLength int) *Chunker {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Chunker{
		maxLength: maxLength,
		newID:     func() string { return uuid.New().String() },
	}
}

// MaxLength returns the configured chunk length bound.
func (c *Chunker) MaxLength() int {
	return c.maxLength
}

// Chunk splits one section. Every chunk carries the section's metadata and a fresh ID.
func (c *Chunker) Chunk(section course.Section) []course.Chunk {
	texts := Pack(SplitSentences(section.Content), c.maxLength)
	chunks := make([]course.Chunk, 0, len(texts))
	for _, text := range texts {
		chunks = append(chunks, course.Chunk{
			ID:       c.newID(),
			Content:  text,
			Metadata: course.MetadataFor(section),
		})
	}
	return chunks
}

// ChunkAll splits every section in order.
func (c *Chunker) ChunkAll(sections []course.Section) []course.Chunk {
	var chunks []course.Chunk
	for _, section := range sections {
		chunks = append(chunks, c.Chunk(section)...)
	}
	return chunks
}

// SplitSentences splits text at runs of sentence-terminal punctuation.
// Fragments are trimmed and empty fragments are dropped. Terminators are not kept.
func SplitSentences(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return strings.ContainsRune(sentenceTerminals, r)
	})
	sentences := make([]string, 0, len(fields))
	for _, f := range fields {
		if s := strings.TrimSpace(f); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// Pack greedily joins sentences with single spaces while the result fits in maxLength.
// Length is counted in characters, including the separating space.
func Pack(sentences []string, maxLength int) []string {
	var (
		chunks []string
		buf    strings.Builder
		bufLen int
	)
	for _, s := range sentences {
		n := utf8.RuneCountInString(s)
		if bufLen > 0 && bufLen+1+n > maxLength {
			chunks = append(chunks, buf.String())
			buf.Reset()
			bufLen = 0
		}
		if bufLen > 0 {
			buf.WriteByte(' ')
			bufLen++
		}
		buf.WriteString(s)
		bufLen += n
	}
	if bufLen > 0 {
		chunks = append(chunks, buf.String())
	}
	return chunks
}
